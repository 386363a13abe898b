package models

import "time"

// Account is a registered user. ID is a surrogate UUID; Username and Email
// are each unique.
type Account struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never serialize
	CreatedAt    time.Time `json:"created_at"`
}

// RegisterRequest is the JSON body for POST /api/auth/register. Identifier
// is accepted in place of Username.
type RegisterRequest struct {
	Username   string `json:"username"`
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

// LoginRequest is the JSON body for POST /api/auth/login. Identifier stands
// in for Username, or for Email when it contains an @. Email is only
// consulted when neither name is given.
type LoginRequest struct {
	Username   string `json:"username"`
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

// RegisterResponse is returned with 201 on successful registration.
type RegisterResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// LoginResponse is returned with 200 on successful login.
type LoginResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}
