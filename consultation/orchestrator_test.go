package consultation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/medrounds/med-consult-api/models"
)

// memStore keeps rooms in memory with the same (caseId, ownerId) scoping the
// mongo-backed repository enforces
type memStore struct {
	mu    sync.Mutex
	rooms map[string]*models.Room
}

func newMemStore() *memStore {
	return &memStore{rooms: map[string]*models.Room{}}
}

func (s *memStore) key(caseID, ownerID string) string {
	return caseID + "/" + ownerID
}

func (s *memStore) add(room *models.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[s.key(room.ID, room.OwnerID)] = room
}

func (s *memStore) Room(_ context.Context, caseID, ownerID string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[s.key(caseID, ownerID)]
	if !ok {
		return nil, ErrRoomNotFound
	}
	copied := *room
	return &copied, nil
}

func (s *memStore) AppendMessage(_ context.Context, caseID, ownerID, sender string, persona models.Persona, content, kind string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyMessage
	}
	if kind == "" {
		kind = models.MessageKindText
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[s.key(caseID, ownerID)]
	if !ok {
		return nil, ErrRoomNotFound
	}
	msg := models.Message{
		ID:        uuid.New().String(),
		Sender:    sender,
		Persona:   persona,
		Content:   content,
		Kind:      kind,
		Timestamp: time.Now().UTC(),
	}
	room.Messages = append(room.Messages, msg)
	return &msg, nil
}

func (s *memStore) SetStage(_ context.Context, caseID, ownerID string, stage models.Stage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok := s.rooms[s.key(caseID, ownerID)]; ok {
		room.Stage = stage
	}
	return nil
}

func (s *memStore) PushOpinion(_ context.Context, caseID, ownerID, opinion string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok := s.rooms[s.key(caseID, ownerID)]; ok {
		room.SpecialistOpinions = append(room.SpecialistOpinions, opinion)
	}
	return nil
}

func (s *memStore) SetOpinions(_ context.Context, caseID, ownerID string, opinions []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok := s.rooms[s.key(caseID, ownerID)]; ok {
		room.SpecialistOpinions = opinions
	}
	return nil
}

// stubGenerator returns a canned response per call and can fail on chosen
// call indexes (zero based)
type stubGenerator struct {
	calls  int
	failOn map[int]error
}

func (g *stubGenerator) Generate(_ context.Context, _, _ string, _ int, _ float32) (string, error) {
	idx := g.calls
	g.calls++
	if err, ok := g.failOn[idx]; ok {
		return "", err
	}
	return fmt.Sprintf("generated opinion %d", idx), nil
}

func testRoom() *models.Room {
	return &models.Room{
		ID:                 "CASE-001",
		OwnerID:            "owner-a",
		Creator:            "Dr. Adams",
		Description:        "persistent cough, 3 weeks",
		Participants:       RoomParticipants("Dr. Adams"),
		Stage:              models.StageInitial,
		SpecialistOpinions: []string{},
	}
}

func TestRunFullConsultationMessageOrder(t *testing.T) {
	store := newMemStore()
	store.add(testRoom())
	o := NewOrchestrator(store, &stubGenerator{})

	completed := o.RunFullConsultation(context.Background(), "CASE-001", "owner-a", nil, nil)
	assert.True(t, completed)

	room, err := store.Room(context.Background(), "CASE-001", "owner-a")
	assert.NoError(t, err)

	// start, three specialists in fixed order, chief summary, completion
	assert.Len(t, room.Messages, 6)
	assert.Equal(t, "System", room.Messages[0].Sender)
	assert.Equal(t, models.PersonaRadiologist, room.Messages[1].Persona)
	assert.Equal(t, models.PersonaCardiologist, room.Messages[2].Persona)
	assert.Equal(t, models.PersonaPulmonologist, room.Messages[3].Persona)
	assert.Equal(t, models.PersonaChiefMedicalOfficer, room.Messages[4].Persona)
	assert.Equal(t, "System", room.Messages[5].Sender)

	assert.Contains(t, room.Messages[1].Content, "**Radiologist Opinion:**")
	assert.Contains(t, room.Messages[4].Content, "**MULTIDISCIPLINARY SUMMARY**")
	assert.Equal(t, models.MessageKindSystem, room.Messages[0].Kind)
	assert.Equal(t, models.MessageKindSystem, room.Messages[5].Kind)

	assert.Equal(t, models.StageSummary, room.Stage)
	assert.Len(t, room.SpecialistOpinions, 3)
}

func TestRunFullConsultationMissingRoom(t *testing.T) {
	store := newMemStore()
	o := NewOrchestrator(store, &stubGenerator{})

	completed := o.RunFullConsultation(context.Background(), "CASE-404", "owner-a", nil, nil)
	assert.False(t, completed)
}

func TestRunFullConsultationSurvivesGenerationFailure(t *testing.T) {
	store := newMemStore()
	store.add(testRoom())

	// second call is the cardiologist step
	gen := &stubGenerator{failOn: map[int]error{1: errors.New("model unavailable")}}
	o := NewOrchestrator(store, gen)

	completed := o.RunFullConsultation(context.Background(), "CASE-001", "owner-a", nil, nil)
	assert.True(t, completed)

	room, _ := store.Room(context.Background(), "CASE-001", "owner-a")
	assert.Len(t, room.Messages, 6)
	assert.Contains(t, room.Messages[2].Content, "I encountered an error: model unavailable")
	assert.Equal(t, models.StageSummary, room.Stage)
}

func TestRunFullConsultationProgress(t *testing.T) {
	store := newMemStore()
	store.add(testRoom())
	o := NewOrchestrator(store, &stubGenerator{})

	var fractions []float64
	progress := func(message string, fraction float64) {
		assert.NotEmpty(t, message)
		fractions = append(fractions, fraction)
	}

	o.RunFullConsultation(context.Background(), "CASE-001", "owner-a", nil, progress)

	assert.Equal(t, []float64{0.25, 0.5, 0.75, 0.9, 1.0}, fractions)
	for i := 1; i < len(fractions); i++ {
		assert.Greater(t, fractions[i], fractions[i-1])
	}
}

func TestStartConsultation(t *testing.T) {
	store := newMemStore()
	store.add(testRoom())
	o := NewOrchestrator(store, &stubGenerator{})

	msg, err := o.StartConsultation(context.Background(), "CASE-001", "owner-a", nil)
	assert.NoError(t, err)
	assert.Equal(t, models.PersonaRadiologist, msg.Persona)
	assert.Equal(t, "Dr. Michael Rodriguez (Radiologist)", msg.Sender)

	room, _ := store.Room(context.Background(), "CASE-001", "owner-a")
	assert.Equal(t, models.StageSpecialists, room.Stage)
	assert.Len(t, room.SpecialistOpinions, 1)
}

func TestStartConsultationOnlyOnce(t *testing.T) {
	store := newMemStore()
	store.add(testRoom())
	o := NewOrchestrator(store, &stubGenerator{})

	_, err := o.StartConsultation(context.Background(), "CASE-001", "owner-a", nil)
	assert.NoError(t, err)

	_, err = o.StartConsultation(context.Background(), "CASE-001", "owner-a", nil)
	assert.ErrorIs(t, err, ErrInvalidStage)
}

func TestAdvanceOneSpecialistOrder(t *testing.T) {
	store := newMemStore()
	store.add(testRoom())
	o := NewOrchestrator(store, &stubGenerator{})

	_, err := o.StartConsultation(context.Background(), "CASE-001", "owner-a", nil)
	assert.NoError(t, err)

	msg, err := o.AdvanceOneSpecialist(context.Background(), "CASE-001", "owner-a", nil)
	assert.NoError(t, err)
	assert.Equal(t, models.PersonaCardiologist, msg.Persona)

	msg, err = o.AdvanceOneSpecialist(context.Background(), "CASE-001", "owner-a", nil)
	assert.NoError(t, err)
	assert.Equal(t, models.PersonaPulmonologist, msg.Persona)

	_, err = o.AdvanceOneSpecialist(context.Background(), "CASE-001", "owner-a", nil)
	assert.ErrorIs(t, err, ErrOpinionsComplete)
}

func TestAdvanceOneSpecialistRequiresSpecialistsStage(t *testing.T) {
	store := newMemStore()
	store.add(testRoom())
	o := NewOrchestrator(store, &stubGenerator{})

	_, err := o.AdvanceOneSpecialist(context.Background(), "CASE-001", "owner-a", nil)
	assert.ErrorIs(t, err, ErrInvalidStage)
}

func TestGenerateSummaryRequiresOpinions(t *testing.T) {
	store := newMemStore()
	store.add(testRoom())
	o := NewOrchestrator(store, &stubGenerator{})

	_, err := o.GenerateSummary(context.Background(), "CASE-001", "owner-a", nil)
	assert.ErrorIs(t, err, ErrNoOpinions)
}

func TestGenerateSummaryMovesToSummaryStage(t *testing.T) {
	store := newMemStore()
	store.add(testRoom())
	o := NewOrchestrator(store, &stubGenerator{})

	_, err := o.StartConsultation(context.Background(), "CASE-001", "owner-a", nil)
	assert.NoError(t, err)

	msg, err := o.GenerateSummary(context.Background(), "CASE-001", "owner-a", nil)
	assert.NoError(t, err)
	assert.Equal(t, models.PersonaChiefMedicalOfficer, msg.Persona)
	assert.Contains(t, msg.Content, "**MULTIDISCIPLINARY SUMMARY**")

	room, _ := store.Room(context.Background(), "CASE-001", "owner-a")
	assert.Equal(t, models.StageSummary, room.Stage)
}

func TestStartConsultationMissingRoom(t *testing.T) {
	store := newMemStore()
	o := NewOrchestrator(store, &stubGenerator{})

	_, err := o.StartConsultation(context.Background(), "CASE-404", "owner-a", nil)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}
