package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/medrounds/med-consult-api/databases"
	templates "github.com/medrounds/med-consult-api/templates/html"
)

// Mailer emails case owners when their consultation finishes. It satisfies
// consultation.Notifier and is fire-and-forget: failures are logged, never
// surfaced.
type Mailer struct {
	UDB databases.UserDatabase
}

// ConsultationComplete sends the consultation-complete notification to the
// case owner, if sendgrid is configured
func (m Mailer) ConsultationComplete(caseID, ownerID string) {
	sendgridAPIKey := os.Getenv("SENDGRID_API_KEY")
	if sendgridAPIKey == "" {
		zap.S().Debugw("SENDGRID_API_KEY not set, skipping consultation email", "caseId", caseID)
		return
	}

	user, err := m.UDB.FindOne(context.Background(), bson.M{"_id": ownerID})
	if err != nil {
		zap.S().Warnw("cannot email consultation result, owner lookup failed",
			"caseId", caseID, "ownerId", ownerID, "error", err)
		return
	}

	from := mail.NewEmail("Med Consult", os.Getenv("SENDGRID_FROM_EMAIL"))
	to := mail.NewEmail(user.FullName, user.Email)
	subject := fmt.Sprintf("Consultation complete for case %s", caseID)
	body := fmt.Sprintf("Your multidisciplinary consultation for case %s is complete. Sign in to review the specialist opinions and summary.", caseID)
	message := mail.NewSingleEmail(from, subject, to, body, templates.RenderConsultationEmail(subject, body))

	client := sendgrid.NewSendClient(sendgridAPIKey)
	response, err := client.Send(message)
	if err != nil {
		zap.S().Errorw("failed to send consultation email", "caseId", caseID, "error", err)
		return
	}
	if response.StatusCode >= 200 && response.StatusCode < 300 {
		zap.S().Infow("consultation email sent", "caseId", caseID, "statusCode", response.StatusCode)
	} else {
		zap.S().Warnw("consultation email sent with non-2xx status",
			"caseId", caseID, "statusCode", response.StatusCode, "body", response.Body)
	}
}
