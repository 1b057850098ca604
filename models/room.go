package models

import "time"

// Stage is the consultation workflow position for a case room
type Stage string

// Consultation stages. StageSummary is the terminal stage of automated
// progression; StageComplete is accepted as a stored value but nothing in this
// service transitions into it.
const (
	StageInitial     Stage = "initial"
	StageSpecialists Stage = "specialists"
	StageSummary     Stage = "summary"
	StageComplete    Stage = "complete"
)

// Persona tags a generated message with the specialist role that produced it.
// The tag is assigned at message creation and never re-derived from the
// display name.
type Persona string

// The closed persona set
const (
	PersonaRadiologist         Persona = "radiologist"
	PersonaCardiologist        Persona = "cardiologist"
	PersonaPulmonologist       Persona = "pulmonologist"
	PersonaNeurologist         Persona = "neurologist"
	PersonaChiefMedicalOfficer Persona = "chief_medical_officer"
)

// Message kinds
const (
	MessageKindSystem     = "system"
	MessageKindText       = "text"
	MessageKindAnnotation = "annotation"
)

// Room holds the structure for the chats collection in mongo. The messages
// array is append-only: entries are pushed, never edited or removed.
type Room struct {
	ID                 string    `json:"_id" bson:"_id"`
	OwnerID            string    `json:"userId" bson:"user_id"`
	CreatedAt          time.Time `json:"createdAt" bson:"created_at"`
	Creator            string    `json:"creator" bson:"creator"`
	Description        string    `json:"description" bson:"description"`
	Participants       []string  `json:"participants" bson:"participants"`
	Stage              Stage     `json:"consultationStage" bson:"consultation_stage"`
	SpecialistOpinions []string  `json:"specialistOpinions" bson:"specialist_opinions"`
	Messages           []Message `json:"messages" bson:"messages"`
}

// Message holds the structure for a single entry in a room's message log
type Message struct {
	ID        string    `json:"id" bson:"id"`
	Sender    string    `json:"user" bson:"user"`
	Persona   Persona   `json:"persona,omitempty" bson:"persona,omitempty"`
	Content   string    `json:"content" bson:"content"`
	Kind      string    `json:"type" bson:"type"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// RoomSummary is the list view of a room returned by the cases endpoint
type RoomSummary struct {
	ID               string    `json:"id" bson:"_id"`
	Description      string    `json:"description" bson:"description"`
	Creator          string    `json:"creator" bson:"creator"`
	CreatedAt        time.Time `json:"createdAt" bson:"created_at"`
	ParticipantCount int       `json:"participants" bson:"-"`
}
