package models

import "time"

// User holds the structure for the users collection in mongo
type User struct {
	ID             string    `json:"_id" bson:"_id"`
	Email          string    `json:"email" bson:"email"`
	Password       string    `json:"password,omitempty" bson:"password"`
	FullName       string    `json:"fullName" bson:"full_name"`
	MedicalLicense string    `json:"medicalLicense,omitempty" bson:"medical_license,omitempty"`
	Specialization string    `json:"specialization,omitempty" bson:"specialization,omitempty"`
	Role           string    `json:"role" bson:"role"`
	CreatedAt      time.Time `json:"createdAt" bson:"created_at"`
	LastLogin      time.Time `json:"lastLogin,omitempty" bson:"last_login,omitempty"`
}
