package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/medrounds/med-consult-api/api/handlers"
	"github.com/medrounds/med-consult-api/consultation"
	"github.com/medrounds/med-consult-api/databases/mocks"
	"github.com/medrounds/med-consult-api/models"
)

// stubGenerator returns a fixed opinion so no external calls happen in tests
type stubGenerator struct{}

func (stubGenerator) Generate(_ context.Context, _, _ string, _ int, _ float32) (string, error) {
	return "stub opinion", nil
}

func newConsultation(t *testing.T) (handlers.Consultation, *mocks.ConsultationDatabase) {
	db := mocks.NewConsultationDatabase(t)
	repo := consultation.NewRepository(db)
	return handlers.Consultation{
		Repo:         repo,
		Orchestrator: consultation.NewOrchestrator(repo, stubGenerator{}),
	}, db
}

func TestConsultation_CreateCaseHandler(t *testing.T) {
	c, db := newConsultation(t)

	db.On("FindOne", mock.Anything, mock.Anything).Return(nil, mongo.ErrNoDocuments)
	db.On("InsertOne", mock.Anything, mock.AnythingOfType("*models.Room")).Return(nil, nil)

	body := bytes.NewBufferString(`{"caseId": "CASE-001", "ownerId": "owner-a", "creatorName": "Dr. Adams", "description": "persistent cough"}`)
	req, err := http.NewRequest("POST", "/api/v1/case", body)
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(c.CreateCaseHandler)
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)

	var room models.Room
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &room))
	assert.Equal(t, "CASE-001", room.ID)
	assert.Equal(t, models.StageInitial, room.Stage)
}

func TestConsultation_CreateCaseHandlerMissingOwner(t *testing.T) {
	c, _ := newConsultation(t)

	body := bytes.NewBufferString(`{"caseId": "CASE-001", "creatorName": "Dr. Adams", "description": "persistent cough"}`)
	req, err := http.NewRequest("POST", "/api/v1/case", body)
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.CreateCaseHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestConsultation_CreateCaseHandlerMissingDescription(t *testing.T) {
	c, _ := newConsultation(t)

	body := bytes.NewBufferString(`{"caseId": "CASE-001", "ownerId": "owner-a", "creatorName": "Dr. Adams"}`)
	req, err := http.NewRequest("POST", "/api/v1/case", body)
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.CreateCaseHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestConsultation_CaseByIDHandlerNotFound(t *testing.T) {
	c, db := newConsultation(t)

	db.On("FindOne", mock.Anything, mock.Anything).Return(nil, mongo.ErrNoDocuments)

	req, err := http.NewRequest("GET", "/api/v1/case/CASE-404?owner_id=owner-a", nil)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{
		"case_id": "CASE-404",
	})

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.CaseByIDHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestConsultation_CaseByIDHandler(t *testing.T) {
	c, db := newConsultation(t)

	db.On("FindOne", mock.Anything, mock.Anything).
		Return(&models.Room{ID: "CASE-001", OwnerID: "owner-a"}, nil)

	req, err := http.NewRequest("GET", "/api/v1/case/CASE-001?owner_id=owner-a", nil)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{
		"case_id": "CASE-001",
	})

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.CaseByIDHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var room models.Room
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &room))
	assert.Equal(t, "CASE-001", room.ID)
}

func TestConsultation_CasesByOwnerHandlerEmpty(t *testing.T) {
	c, db := newConsultation(t)

	db.On("Find", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)

	req, err := http.NewRequest("GET", "/api/v1/cases?owner_id=owner-a", nil)
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.CasesByOwnerHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "[]", rr.Body.String())
}

func TestConsultation_CasesByOwnerHandlerMissingOwner(t *testing.T) {
	c, _ := newConsultation(t)

	req, err := http.NewRequest("GET", "/api/v1/cases", nil)
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.CasesByOwnerHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestConsultation_CreateMessageHandlerEmptyContent(t *testing.T) {
	c, _ := newConsultation(t)

	body := bytes.NewBufferString(`{"ownerId": "owner-a", "sender": "Dr. Adams", "content": "   "}`)
	req, err := http.NewRequest("POST", "/api/v1/case/CASE-001/messages", body)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{
		"case_id": "CASE-001",
	})

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.CreateMessageHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestConsultation_CreateMessageHandlerNotFound(t *testing.T) {
	c, db := newConsultation(t)

	db.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(int64(0), nil)

	body := bytes.NewBufferString(`{"ownerId": "owner-b", "sender": "Dr. Adams", "content": "hello"}`)
	req, err := http.NewRequest("POST", "/api/v1/case/CASE-001/messages", body)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{
		"case_id": "CASE-001",
	})

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.CreateMessageHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestConsultation_CreateMessageHandler(t *testing.T) {
	c, db := newConsultation(t)

	db.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(int64(1), nil)

	body := bytes.NewBufferString(`{"ownerId": "owner-a", "sender": "Dr. Adams", "content": "what does the shadow mean?"}`)
	req, err := http.NewRequest("POST", "/api/v1/case/CASE-001/messages", body)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{
		"case_id": "CASE-001",
	})

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.CreateMessageHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)

	var msg models.Message
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &msg))
	assert.Equal(t, "Dr. Adams", msg.Sender)
	assert.Equal(t, models.MessageKindText, msg.Kind)
	assert.NotEmpty(t, msg.ID)
}

func TestConsultation_MessagesHandler(t *testing.T) {
	c, db := newConsultation(t)

	room := &models.Room{
		ID:      "CASE-001",
		OwnerID: "owner-a",
		Messages: []models.Message{
			{Content: "first"},
			{Content: "second"},
		},
	}
	db.On("FindOne", mock.Anything, mock.Anything).Return(room, nil)

	req, err := http.NewRequest("GET", "/api/v1/case/CASE-001/messages?owner_id=owner-a&limit=1", nil)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{
		"case_id": "CASE-001",
	})

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.MessagesHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var msgs []models.Message
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &msgs))
	assert.Len(t, msgs, 1)
	assert.Equal(t, "second", msgs[0].Content)
}

func TestConsultation_StartConsultationHandler(t *testing.T) {
	c, db := newConsultation(t)

	room := &models.Room{
		ID:          "CASE-001",
		OwnerID:     "owner-a",
		Description: "persistent cough",
		Stage:       models.StageInitial,
	}
	db.On("FindOne", mock.Anything, mock.Anything).Return(room, nil)
	db.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(int64(1), nil)

	body := bytes.NewBufferString(`{"ownerId": "owner-a"}`)
	req, err := http.NewRequest("POST", "/api/v1/case/CASE-001/consultation/start", body)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{
		"case_id": "CASE-001",
	})

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.StartConsultationHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var msg models.Message
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &msg))
	assert.Equal(t, models.PersonaRadiologist, msg.Persona)
	assert.Contains(t, msg.Content, "stub opinion")
}

func TestConsultation_StartConsultationHandlerWrongStage(t *testing.T) {
	c, db := newConsultation(t)

	room := &models.Room{ID: "CASE-001", OwnerID: "owner-a", Stage: models.StageSummary}
	db.On("FindOne", mock.Anything, mock.Anything).Return(room, nil)

	body := bytes.NewBufferString(`{"ownerId": "owner-a"}`)
	req, err := http.NewRequest("POST", "/api/v1/case/CASE-001/consultation/start", body)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{
		"case_id": "CASE-001",
	})

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.StartConsultationHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestConsultation_NextSpecialistHandlerOpinionsComplete(t *testing.T) {
	c, db := newConsultation(t)

	room := &models.Room{
		ID:                 "CASE-001",
		OwnerID:            "owner-a",
		Stage:              models.StageSpecialists,
		SpecialistOpinions: []string{"a", "b", "c"},
	}
	db.On("FindOne", mock.Anything, mock.Anything).Return(room, nil)

	body := bytes.NewBufferString(`{"ownerId": "owner-a"}`)
	req, err := http.NewRequest("POST", "/api/v1/case/CASE-001/consultation/next", body)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{
		"case_id": "CASE-001",
	})

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.NextSpecialistHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestConsultation_SummaryHandlerNoOpinions(t *testing.T) {
	c, db := newConsultation(t)

	room := &models.Room{ID: "CASE-001", OwnerID: "owner-a", Stage: models.StageSpecialists}
	db.On("FindOne", mock.Anything, mock.Anything).Return(room, nil)

	body := bytes.NewBufferString(`{"ownerId": "owner-a"}`)
	req, err := http.NewRequest("POST", "/api/v1/case/CASE-001/consultation/summary", body)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{
		"case_id": "CASE-001",
	})

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.SummaryHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestConsultation_RunConsultationHandlerNotFound(t *testing.T) {
	c, db := newConsultation(t)

	db.On("FindOne", mock.Anything, mock.Anything).Return(nil, mongo.ErrNoDocuments)

	body := bytes.NewBufferString(`{"ownerId": "owner-a"}`)
	req, err := http.NewRequest("POST", "/api/v1/case/CASE-404/consultation/run", body)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{
		"case_id": "CASE-404",
	})

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.RunConsultationHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestConsultation_JoinCaseHandlerNotFound(t *testing.T) {
	c, db := newConsultation(t)

	db.On("FindOne", mock.Anything, mock.Anything).Return(nil, mongo.ErrNoDocuments)

	body := bytes.NewBufferString(`{"ownerId": "owner-a", "participantName": "Dr. Baker"}`)
	req, err := http.NewRequest("POST", "/api/v1/case/CASE-404/join", body)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{
		"case_id": "CASE-404",
	})

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.JoinCaseHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}
