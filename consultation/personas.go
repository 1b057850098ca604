package consultation

import "github.com/medrounds/med-consult-api/models"

// specialist carries everything the orchestrator needs to consult one persona
type specialist struct {
	Persona     models.Persona
	DisplayName string
	RoleTitle   string
	StatusLine  string
}

var specialists = map[models.Persona]specialist{
	models.PersonaRadiologist: {
		Persona:     models.PersonaRadiologist,
		DisplayName: "Dr. Michael Rodriguez (Radiologist)",
		RoleTitle:   "Radiologist",
		StatusLine:  "Analyzing imaging details...",
	},
	models.PersonaCardiologist: {
		Persona:     models.PersonaCardiologist,
		DisplayName: "Dr. Sarah Chen (Cardiologist)",
		RoleTitle:   "Cardiologist",
		StatusLine:  "Evaluating cardiac implications...",
	},
	models.PersonaPulmonologist: {
		Persona:     models.PersonaPulmonologist,
		DisplayName: "Dr. Emily Johnson (Pulmonologist)",
		RoleTitle:   "Pulmonologist",
		StatusLine:  "Assessing respiratory aspects...",
	},
	models.PersonaNeurologist: {
		Persona:     models.PersonaNeurologist,
		DisplayName: "Dr. David Park (Neurologist)",
		RoleTitle:   "Neurologist",
		StatusLine:  "Reviewing neurological aspects...",
	},
	models.PersonaChiefMedicalOfficer: {
		Persona:     models.PersonaChiefMedicalOfficer,
		DisplayName: "Dr. Lisa Thompson (Chief Medical Officer)",
		RoleTitle:   "Chief Medical Officer",
		StatusLine:  "Preparing multidisciplinary summary...",
	},
}

// autoRunOrder is the policy constant for automatic advancement. Three of the
// five personas are cycled; the neurologist stays a joinable participant only.
var autoRunOrder = []models.Persona{
	models.PersonaRadiologist,
	models.PersonaCardiologist,
	models.PersonaPulmonologist,
}

// DisplayName returns the display name for a persona, or an empty string for
// an unknown tag
func DisplayName(p models.Persona) string {
	return specialists[p].DisplayName
}

// RoomParticipants builds the initial participant list for a new case room:
// the creator followed by the five fixed specialist personas
func RoomParticipants(creator string) []string {
	return []string{
		creator,
		specialists[models.PersonaCardiologist].DisplayName,
		specialists[models.PersonaRadiologist].DisplayName,
		specialists[models.PersonaPulmonologist].DisplayName,
		specialists[models.PersonaNeurologist].DisplayName,
		specialists[models.PersonaChiefMedicalOfficer].DisplayName,
	}
}
