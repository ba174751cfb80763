package model

import "time"

// Role distinguishes exam takers from result reviewers.
type Role string

const (
	RoleCandidate Role = "candidate"
	RoleReviewer  Role = "reviewer"
)

// Candidate is a roster entry allowed to sit (or review) the assessment.
type Candidate struct {
	ID           int       `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// LoginRequest is the payload for candidate authentication.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=4,max=128"`
}

// LoginResponse is returned after successful login.
type LoginResponse struct {
	Token     string    `json:"token"`
	Candidate Candidate `json:"candidate"`
}
