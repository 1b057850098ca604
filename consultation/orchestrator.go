package consultation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/medrounds/med-consult-api/models"
)

// Generation parameters per step, matching the consultation product tier
const (
	opinionMaxTokens   = 200
	opinionTemperature = 0.3
	summaryMaxTokens   = 400
	summaryTemperature = 0.2
)

const (
	initialAssessmentPrompt    = "Please provide your initial assessment of this case"
	specialistAssessmentPrompt = "Please provide your specialist assessment of this case"
	summaryRequestPrompt       = "Please provide the multidisciplinary summary."
)

// RoomStore is the slice of the repository the orchestrator drives. Satisfied
// by *Repository; tests substitute an in-memory store.
type RoomStore interface {
	Room(ctx context.Context, caseID, ownerID string) (*models.Room, error)
	AppendMessage(ctx context.Context, caseID, ownerID, sender string, persona models.Persona, content, kind string) (*models.Message, error)
	SetStage(ctx context.Context, caseID, ownerID string, stage models.Stage) error
	PushOpinion(ctx context.Context, caseID, ownerID, opinion string) error
	SetOpinions(ctx context.Context, caseID, ownerID string, opinions []string) error
}

// Publisher fans appended messages out to live viewers of a case. Optional.
type Publisher interface {
	PublishMessage(caseID string, msg models.Message)
}

// Notifier is told when a full consultation run finishes. Optional,
// fire-and-forget.
type Notifier interface {
	ConsultationComplete(caseID, ownerID string)
}

// ProgressFunc receives incremental progress during a full run: a short status
// line and a monotonically increasing fraction in [0, 1]. It must not block.
type ProgressFunc func(message string, fraction float64)

// Orchestrator drives a case room through the staged consultation workflow:
// initial -> specialists -> summary. Summary is the terminal stage of
// automated progression; afterwards the room is freeform messaging only.
type Orchestrator struct {
	Rooms     RoomStore
	Generator Generator
	Publisher Publisher
	Notifier  Notifier
}

// NewOrchestrator wires an orchestrator over the given store and generator
func NewOrchestrator(rooms RoomStore, gen Generator) *Orchestrator {
	return &Orchestrator{Rooms: rooms, Generator: gen}
}

// StartConsultation moves a room from the initial stage into the specialists
// stage and records the first opinion in the fixed order (the radiologist).
// Valid exactly once per room.
func (o *Orchestrator) StartConsultation(ctx context.Context, caseID, ownerID string, findings []string) (*models.Message, error) {
	room, err := o.Rooms.Room(ctx, caseID, ownerID)
	if err != nil {
		return nil, err
	}
	if room.Stage != models.StageInitial {
		return nil, ErrInvalidStage
	}

	if err := o.Rooms.SetStage(ctx, caseID, ownerID, models.StageSpecialists); err != nil {
		return nil, err
	}
	return o.consultSpecialist(ctx, room, autoRunOrder[0], initialAssessmentPrompt, findings)
}

// AdvanceOneSpecialist records the next opinion in the fixed order
// (radiologist, cardiologist, pulmonologist). Valid only during the
// specialists stage while fewer than three opinions exist; the stage is never
// changed by this call.
func (o *Orchestrator) AdvanceOneSpecialist(ctx context.Context, caseID, ownerID string, findings []string) (*models.Message, error) {
	room, err := o.Rooms.Room(ctx, caseID, ownerID)
	if err != nil {
		return nil, err
	}
	if room.Stage != models.StageSpecialists {
		return nil, ErrInvalidStage
	}
	if len(room.SpecialistOpinions) >= len(autoRunOrder) {
		return nil, ErrOpinionsComplete
	}

	next := autoRunOrder[len(room.SpecialistOpinions)]
	return o.consultSpecialist(ctx, room, next, specialistAssessmentPrompt, findings)
}

// GenerateSummary synthesizes all recorded opinions into the Chief Medical
// Officer's summary message and moves the room to the summary stage. Valid at
// any point with at least one recorded opinion.
func (o *Orchestrator) GenerateSummary(ctx context.Context, caseID, ownerID string, findings []string) (*models.Message, error) {
	room, err := o.Rooms.Room(ctx, caseID, ownerID)
	if err != nil {
		return nil, err
	}
	if len(room.SpecialistOpinions) == 0 {
		return nil, ErrNoOpinions
	}

	msg, err := o.appendSummary(ctx, room, room.SpecialistOpinions, findings)
	if err != nil {
		return nil, err
	}
	if err := o.Rooms.SetStage(ctx, caseID, ownerID, models.StageSummary); err != nil {
		return nil, err
	}
	return msg, nil
}

// RunFullConsultation drives a room through the entire workflow in one call:
// system start message, one opinion per specialist in the fixed order, the
// chief summary, and a system completion message. Generation failures are
// substituted inline and never stop the run; already appended messages are
// never rolled back. Returns false only when the room does not exist at entry.
func (o *Orchestrator) RunFullConsultation(ctx context.Context, caseID, ownerID string, findings []string, progress ProgressFunc) bool {
	room, err := o.Rooms.Room(ctx, caseID, ownerID)
	if err != nil {
		zap.S().Warnw("full consultation aborted, room unavailable",
			"caseId", caseID, "error", err)
		return false
	}

	o.appendAndPublish(ctx, caseID, ownerID, "System", "",
		"**Starting Multidisciplinary Consultation**\n\nOur specialist team is now reviewing your case...",
		models.MessageKindSystem)

	steps := len(autoRunOrder) + 1
	opinions := make([]string, 0, len(autoRunOrder))
	for i, persona := range autoRunOrder {
		sp := specialists[persona]
		if progress != nil {
			progress(sp.StatusLine, float64(i+1)/float64(steps))
		}

		opinion := o.generateOpinion(ctx, persona, room.Description, findings)
		content := fmt.Sprintf("**%s Opinion:**\n\n%s", sp.RoleTitle, opinion)
		o.appendAndPublish(ctx, caseID, ownerID, sp.DisplayName, persona, content, models.MessageKindText)
		opinions = append(opinions, opinion)
	}

	if err := o.Rooms.SetStage(ctx, caseID, ownerID, models.StageSpecialists); err != nil {
		zap.S().Errorw("failed to set specialists stage", "caseId", caseID, "error", err)
	}
	if err := o.Rooms.SetOpinions(ctx, caseID, ownerID, opinions); err != nil {
		zap.S().Errorw("failed to store opinions", "caseId", caseID, "error", err)
	}

	if progress != nil {
		progress(specialists[models.PersonaChiefMedicalOfficer].StatusLine, 0.9)
	}
	if _, err := o.appendSummary(ctx, room, opinions, findings); err != nil {
		zap.S().Errorw("failed to append summary", "caseId", caseID, "error", err)
	}

	o.appendAndPublish(ctx, caseID, ownerID, "System", "",
		"**Consultation Complete**\n\nYour multidisciplinary consultation is now complete. You can ask follow-up questions or discuss the findings with our team.",
		models.MessageKindSystem)

	if err := o.Rooms.SetStage(ctx, caseID, ownerID, models.StageSummary); err != nil {
		zap.S().Errorw("failed to set summary stage", "caseId", caseID, "error", err)
	}

	if progress != nil {
		progress("Consultation complete", 1.0)
	}
	if o.Notifier != nil {
		go o.Notifier.ConsultationComplete(caseID, ownerID)
	}
	return true
}

// consultSpecialist generates one opinion, appends it as that specialist's
// message, and records it on the room's opinion list
func (o *Orchestrator) consultSpecialist(ctx context.Context, room *models.Room, persona models.Persona, userPrompt string, findings []string) (*models.Message, error) {
	opinion := o.generate(ctx, persona, specialistSystemPrompt(persona, room.Description, findings), userPrompt, opinionMaxTokens, opinionTemperature)

	sp := specialists[persona]
	msg, err := o.Rooms.AppendMessage(ctx, room.ID, room.OwnerID, sp.DisplayName, persona, opinion, models.MessageKindText)
	if err != nil {
		return nil, err
	}
	if err := o.Rooms.PushOpinion(ctx, room.ID, room.OwnerID, opinion); err != nil {
		return nil, err
	}
	o.publish(room.ID, msg)
	return msg, nil
}

// appendSummary generates and appends the Chief Medical Officer synthesis
func (o *Orchestrator) appendSummary(ctx context.Context, room *models.Room, opinions []string, findings []string) (*models.Message, error) {
	text := o.generate(ctx, models.PersonaChiefMedicalOfficer,
		summarySystemPrompt(room.Description, opinions, findings),
		summaryRequestPrompt, summaryMaxTokens, summaryTemperature)

	sp := specialists[models.PersonaChiefMedicalOfficer]
	content := fmt.Sprintf("**MULTIDISCIPLINARY SUMMARY**\n\n%s", text)
	msg, err := o.Rooms.AppendMessage(ctx, room.ID, room.OwnerID, sp.DisplayName,
		models.PersonaChiefMedicalOfficer, content, models.MessageKindText)
	if err != nil {
		return nil, err
	}
	o.publish(room.ID, msg)
	return msg, nil
}

func (o *Orchestrator) generateOpinion(ctx context.Context, persona models.Persona, description string, findings []string) string {
	return o.generate(ctx, persona, specialistSystemPrompt(persona, description, findings),
		specialistAssessmentPrompt, opinionMaxTokens, opinionTemperature)
}

// generate calls the external generator and substitutes an inline error string
// on failure so the workflow never blocks on a failed call
func (o *Orchestrator) generate(ctx context.Context, persona models.Persona, systemPrompt, userPrompt string, maxTokens int, temperature float32) string {
	text, err := o.Generator.Generate(ctx, systemPrompt, userPrompt, maxTokens, temperature)
	if err != nil {
		zap.S().Errorw("specialist generation failed",
			"persona", persona, "error", err)
		return fmt.Sprintf("I encountered an error: %v", err)
	}
	return text
}

// appendAndPublish appends a message and logs rather than fails on error; a
// partial log is a valid outcome of a run
func (o *Orchestrator) appendAndPublish(ctx context.Context, caseID, ownerID, sender string, persona models.Persona, content, kind string) {
	msg, err := o.Rooms.AppendMessage(ctx, caseID, ownerID, sender, persona, content, kind)
	if err != nil {
		zap.S().Errorw("failed to append message",
			"caseId", caseID, "sender", sender, "error", err)
		return
	}
	o.publish(caseID, msg)
}

func (o *Orchestrator) publish(caseID string, msg *models.Message) {
	if o.Publisher != nil && msg != nil {
		o.Publisher.PublishMessage(caseID, *msg)
	}
}
