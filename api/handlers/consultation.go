package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/medrounds/med-consult-api/config"
	"github.com/medrounds/med-consult-api/consultation"
	"github.com/medrounds/med-consult-api/models"
)

// runConsultationTimeout bounds one full consultation run; messages appended
// before the deadline stay persisted
const runConsultationTimeout = 10 * time.Minute

// Consultation exported for testing purposes
type Consultation struct {
	Repo         *consultation.Repository
	Orchestrator *consultation.Orchestrator
	Hub          *LiveHub
}

func roomOwnerFilter(caseID, ownerID string) bson.M {
	return bson.M{"_id": caseID, "user_id": ownerID}
}

type createCaseRequest struct {
	CaseID      string `json:"caseId"`
	OwnerID     string `json:"ownerId"`
	CreatorName string `json:"creatorName"`
	Description string `json:"description"`
}

// CreateCaseHandler creates a new case room, idempotently: re-submitting an
// existing (caseId, ownerId) returns the existing room unchanged
func (c Consultation) CreateCaseHandler(w http.ResponseWriter, r *http.Request) {
	var requestBody createCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if requestBody.OwnerID == "" {
		config.ErrorStatus("ownerId is required", http.StatusBadRequest, w, fmt.Errorf("missing ownerId"))
		return
	}

	room, err := c.Repo.Create(r.Context(), requestBody.CaseID, requestBody.OwnerID,
		requestBody.CreatorName, requestBody.Description)
	if errors.Is(err, consultation.ErrMissingFields) {
		config.ErrorStatus("description and creatorName are required", http.StatusBadRequest, w, err)
		return
	}
	if err != nil {
		config.ErrorStatus("failed to create case", http.StatusInternalServerError, w, err)
		return
	}

	b, err := json.Marshal(room)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// CasesByOwnerHandler returns all case rooms owned by the given owner, newest first
func (c Consultation) CasesByOwnerHandler(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		config.ErrorStatus("query param owner_id is required", http.StatusBadRequest, w, fmt.Errorf("missing owner_id"))
		return
	}

	dbResp, err := c.Repo.Rooms(r.Context(), ownerID)
	if err != nil {
		config.ErrorStatus("failed to get cases", http.StatusInternalServerError, w, err)
		return
	}
	if len(dbResp) == 0 {
		dbResp = []models.RoomSummary{}
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// CaseByIDHandler returns one case room scoped by owner
func (c Consultation) CaseByIDHandler(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["case_id"]
	ownerID := r.URL.Query().Get("owner_id")
	zap.S().Debugf("case_id: %v", caseID)

	room, err := c.Repo.Room(r.Context(), caseID, ownerID)
	if errors.Is(err, consultation.ErrRoomNotFound) {
		config.ErrorStatus("case not found", http.StatusNotFound, w, err)
		return
	}
	if err != nil {
		config.ErrorStatus("failed to get case", http.StatusInternalServerError, w, err)
		return
	}

	b, err := json.Marshal(room)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

type joinCaseRequest struct {
	OwnerID         string `json:"ownerId"`
	ParticipantName string `json:"participantName"`
}

// JoinCaseHandler adds a participant to a case room; joining twice is fine
func (c Consultation) JoinCaseHandler(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["case_id"]

	var requestBody joinCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if requestBody.ParticipantName == "" {
		config.ErrorStatus("participantName is required", http.StatusBadRequest, w, fmt.Errorf("missing participantName"))
		return
	}

	joined, err := c.Repo.Join(r.Context(), caseID, requestBody.OwnerID, requestBody.ParticipantName)
	if err != nil {
		config.ErrorStatus("failed to join case", http.StatusInternalServerError, w, err)
		return
	}
	if !joined {
		config.ErrorStatus("case not found", http.StatusNotFound, w, fmt.Errorf("no case %s", caseID))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"joined": true}`))
}

// MessagesHandler returns the most recent messages of a case in chronological order
func (c Consultation) MessagesHandler(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["case_id"]
	ownerID := r.URL.Query().Get("owner_id")

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		zap.S().Debugf("limit not set, using default of 50, err: %v", err)
		limit = 0
	}

	msgs, err := c.Repo.Messages(r.Context(), caseID, ownerID, limit)
	if err != nil {
		config.ErrorStatus("failed to get messages", http.StatusInternalServerError, w, err)
		return
	}
	b, err := json.Marshal(msgs)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

type createMessageRequest struct {
	OwnerID string `json:"ownerId"`
	Sender  string `json:"sender"`
	Content string `json:"content"`
	Kind    string `json:"kind"`
}

// CreateMessageHandler appends a participant message or annotation to a case's
// log and fans it out to live viewers
func (c Consultation) CreateMessageHandler(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["case_id"]

	var requestBody createMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	msg, err := c.Repo.AppendMessage(r.Context(), caseID, requestBody.OwnerID,
		requestBody.Sender, "", requestBody.Content, requestBody.Kind)
	if errors.Is(err, consultation.ErrEmptyMessage) {
		config.ErrorStatus("message content is empty", http.StatusBadRequest, w, err)
		return
	}
	if errors.Is(err, consultation.ErrRoomNotFound) {
		config.ErrorStatus("case not found", http.StatusNotFound, w, err)
		return
	}
	if err != nil {
		config.ErrorStatus("failed to append message", http.StatusInternalServerError, w, err)
		return
	}

	if c.Hub != nil {
		c.Hub.PublishMessage(caseID, *msg)
	}

	b, err := json.Marshal(msg)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

type consultationRequest struct {
	OwnerID  string   `json:"ownerId"`
	Findings []string `json:"findings,omitempty"`
}

// StartConsultationHandler moves a case from the initial stage into the
// specialists stage and records the radiologist's opinion
func (c Consultation) StartConsultationHandler(w http.ResponseWriter, r *http.Request) {
	c.workflowStep(w, r, func(ctx context.Context, caseID string, req consultationRequest) (*models.Message, error) {
		return c.Orchestrator.StartConsultation(ctx, caseID, req.OwnerID, req.Findings)
	})
}

// NextSpecialistHandler records the next specialist opinion in the fixed order
func (c Consultation) NextSpecialistHandler(w http.ResponseWriter, r *http.Request) {
	c.workflowStep(w, r, func(ctx context.Context, caseID string, req consultationRequest) (*models.Message, error) {
		return c.Orchestrator.AdvanceOneSpecialist(ctx, caseID, req.OwnerID, req.Findings)
	})
}

// SummaryHandler synthesizes the recorded opinions into the chief summary and
// closes the automated workflow
func (c Consultation) SummaryHandler(w http.ResponseWriter, r *http.Request) {
	c.workflowStep(w, r, func(ctx context.Context, caseID string, req consultationRequest) (*models.Message, error) {
		return c.Orchestrator.GenerateSummary(ctx, caseID, req.OwnerID, req.Findings)
	})
}

// RunConsultationHandler runs the whole consultation in one call, streaming
// progress events to the case's live feed
func (c Consultation) RunConsultationHandler(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["case_id"]

	var requestBody consultationRequest
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), runConsultationTimeout)
	defer cancel()

	var progress consultation.ProgressFunc
	if c.Hub != nil {
		progress = func(message string, fraction float64) {
			c.Hub.PublishProgress(caseID, message, fraction)
		}
	}

	completed := c.Orchestrator.RunFullConsultation(ctx, caseID, requestBody.OwnerID, requestBody.Findings, progress)
	if !completed {
		config.ErrorStatus("case not found", http.StatusNotFound, w, fmt.Errorf("no case %s", caseID))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"completed": true}`))
}

// workflowStep shares the decode/dispatch/error-mapping shape of the three
// single-step consultation endpoints
func (c Consultation) workflowStep(w http.ResponseWriter, r *http.Request, step func(context.Context, string, consultationRequest) (*models.Message, error)) {
	caseID := mux.Vars(r)["case_id"]

	var requestBody consultationRequest
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	msg, err := step(r.Context(), caseID, requestBody)
	switch {
	case errors.Is(err, consultation.ErrRoomNotFound):
		config.ErrorStatus("case not found", http.StatusNotFound, w, err)
		return
	case errors.Is(err, consultation.ErrInvalidStage),
		errors.Is(err, consultation.ErrOpinionsComplete),
		errors.Is(err, consultation.ErrNoOpinions):
		config.ErrorStatus("consultation stage conflict", http.StatusConflict, w, err)
		return
	case err != nil:
		config.ErrorStatus("consultation step failed", http.StatusInternalServerError, w, err)
		return
	}

	b, err := json.Marshal(msg)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
