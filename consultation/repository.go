package consultation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/medrounds/med-consult-api/databases"
	"github.com/medrounds/med-consult-api/models"
)

const defaultMessageLimit = 50

const welcomeTemplate = `**Multidisciplinary Consultation Started**

Case: %q

**Consultation Process:**
1. Present your case and questions
2. Get opinions from 3-4 specialists
3. Receive a unified summary in simple language
4. Discuss next steps

Ready to begin the consultation!`

// Repository is the persistence layer for case rooms. Every read and write is
// keyed by (caseId, ownerId); rooms belonging to a different owner are
// indistinguishable from rooms that do not exist.
type Repository struct {
	DB databases.ConsultationDatabase
}

// NewRepository initializes a repository over the consultation database
func NewRepository(db databases.ConsultationDatabase) *Repository {
	return &Repository{DB: db}
}

func roomFilter(caseID, ownerID string) bson.M {
	return bson.M{"_id": caseID, "user_id": ownerID}
}

// Create builds a new case room with the seeded system welcome message. If a
// room already exists for (caseId, ownerId) it is returned unchanged, so
// repeated submissions of the same case never duplicate a room. An empty
// caseID gets a generated CASE-<timestamp> id.
func (r *Repository) Create(ctx context.Context, caseID, ownerID, creator, description string) (*models.Room, error) {
	if strings.TrimSpace(description) == "" || strings.TrimSpace(creator) == "" {
		return nil, ErrMissingFields
	}
	if caseID == "" {
		caseID = fmt.Sprintf("CASE-%s", time.Now().UTC().Format("20060102150405"))
	}

	existing, err := r.DB.FindOne(ctx, roomFilter(caseID, ownerID))
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	now := time.Now().UTC()
	room := &models.Room{
		ID:                 caseID,
		OwnerID:            ownerID,
		CreatedAt:          now,
		Creator:            creator,
		Description:        description,
		Participants:       RoomParticipants(creator),
		Stage:              models.StageInitial,
		SpecialistOpinions: []string{},
		Messages: []models.Message{
			{
				ID:        uuid.New().String(),
				Sender:    "System",
				Content:   fmt.Sprintf(welcomeTemplate, description),
				Kind:      models.MessageKindSystem,
				Timestamp: now,
			},
		},
	}

	if _, err := r.DB.InsertOne(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

// Room fetches a single room scoped by owner
func (r *Repository) Room(ctx context.Context, caseID, ownerID string) (*models.Room, error) {
	room, err := r.DB.FindOne(ctx, roomFilter(caseID, ownerID))
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return room, nil
}

// Join adds a participant to an existing room. Joining twice is a no-op and
// still reports success; a missing room reports false.
func (r *Repository) Join(ctx context.Context, caseID, ownerID, participant string) (bool, error) {
	room, err := r.Room(ctx, caseID, ownerID)
	if errors.Is(err, ErrRoomNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	for _, p := range room.Participants {
		if p == participant {
			return true, nil
		}
	}

	_, err = r.DB.UpdateOne(ctx, roomFilter(caseID, ownerID),
		bson.M{"$push": bson.M{"participants": participant}})
	if err != nil {
		return false, err
	}
	return true, nil
}

// AppendMessage constructs a message and atomically pushes it onto the room's
// log. Whitespace-only content is rejected before any write. A push that
// matches zero documents (missing room or owner mismatch) reports
// ErrRoomNotFound.
func (r *Repository) AppendMessage(ctx context.Context, caseID, ownerID, sender string, persona models.Persona, content, kind string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyMessage
	}
	if kind == "" {
		kind = models.MessageKindText
	}

	msg := models.Message{
		ID:        uuid.New().String(),
		Sender:    sender,
		Persona:   persona,
		Content:   content,
		Kind:      kind,
		Timestamp: time.Now().UTC(),
	}

	modified, err := r.DB.UpdateOne(ctx, roomFilter(caseID, ownerID),
		bson.M{"$push": bson.M{"messages": msg}})
	if err != nil {
		return nil, err
	}
	if modified == 0 {
		return nil, ErrRoomNotFound
	}
	return &msg, nil
}

// Messages returns the most recent limit messages in chronological order, the
// oldest of the returned window first. A missing room yields an empty slice.
func (r *Repository) Messages(ctx context.Context, caseID, ownerID string, limit int) ([]models.Message, error) {
	room, err := r.Room(ctx, caseID, ownerID)
	if errors.Is(err, ErrRoomNotFound) {
		return []models.Message{}, nil
	}
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultMessageLimit
	}
	msgs := room.Messages
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

// Rooms lists all rooms owned by ownerID, newest first
func (r *Repository) Rooms(ctx context.Context, ownerID string) ([]models.RoomSummary, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	rooms, err := r.DB.Find(ctx, bson.M{"user_id": ownerID}, opts)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		summaries = append(summaries, models.RoomSummary{
			ID:               room.ID,
			Description:      room.Description,
			Creator:          room.Creator,
			CreatedAt:        room.CreatedAt,
			ParticipantCount: len(room.Participants),
		})
	}
	return summaries, nil
}

// SetStage updates the consultation stage. A missing room is a no-op.
func (r *Repository) SetStage(ctx context.Context, caseID, ownerID string, stage models.Stage) error {
	_, err := r.DB.UpdateOne(ctx, roomFilter(caseID, ownerID),
		bson.M{"$set": bson.M{"consultation_stage": stage}})
	return err
}

// PushOpinion appends one opinion to the room's specialist_opinions list
func (r *Repository) PushOpinion(ctx context.Context, caseID, ownerID, opinion string) error {
	_, err := r.DB.UpdateOne(ctx, roomFilter(caseID, ownerID),
		bson.M{"$push": bson.M{"specialist_opinions": opinion}})
	return err
}

// SetOpinions replaces the room's opinion list with the full collected set
func (r *Repository) SetOpinions(ctx context.Context, caseID, ownerID string, opinions []string) error {
	_, err := r.DB.UpdateOne(ctx, roomFilter(caseID, ownerID),
		bson.M{"$set": bson.M{"specialist_opinions": opinions}})
	return err
}
