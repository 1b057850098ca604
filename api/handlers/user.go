package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/crypto/bcrypt"

	"github.com/medrounds/med-consult-api/config"
	"github.com/medrounds/med-consult-api/databases"
	"github.com/medrounds/med-consult-api/models"
)

// User exported for testing purposes
type User struct {
	DB databases.UserDatabase
}

type createUserRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	FullName       string `json:"fullName"`
	MedicalLicense string `json:"medicalLicense"`
	Specialization string `json:"specialization"`
}

// UserCreateHandler creates a user
func (u User) UserCreateHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var requestBody createUserRequest
	err := json.NewDecoder(r.Body).Decode(&requestBody)
	if err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}
	if requestBody.Email == "" || requestBody.Password == "" {
		config.ErrorStatus("email and password are required", http.StatusBadRequest, w, fmt.Errorf("missing credentials"))
		return
	}

	// check if the user already exists
	existingUser, _ := u.DB.FindOne(context.Background(), bson.M{"email": requestBody.Email})
	if existingUser != nil {
		config.ErrorStatus("email already exists", http.StatusConflict, w, fmt.Errorf("duplicate email"))
		return
	}

	// hash the password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(requestBody.Password), bcrypt.DefaultCost)
	if err != nil {
		config.ErrorStatus("failed to hash password", http.StatusInternalServerError, w, err)
		return
	}

	role := "patient"
	if requestBody.MedicalLicense != "" {
		role = "doctor"
	}

	user := models.User{
		ID:             uuid.New().String(),
		Email:          requestBody.Email,
		Password:       string(hashedPassword),
		FullName:       requestBody.FullName,
		MedicalLicense: requestBody.MedicalLicense,
		Specialization: requestBody.Specialization,
		Role:           role,
		CreatedAt:      time.Now().UTC(),
	}

	if _, err := u.DB.InsertOne(context.Background(), user); err != nil {
		config.ErrorStatus("failed to insert user", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{"_id": user.ID})
}
