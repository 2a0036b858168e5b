package models

import "time"

const (
	PurposeLogin    = "login"
	PurposeRegister = "register"
)

// OTPChallenge is the single active challenge for an (Email, Purpose) pair.
// Only the bcrypt hash of the code is kept.
type OTPChallenge struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Purpose   string    `json:"purpose"`
	CodeHash  string    `json:"-"`
	Attempts  int       `json:"attempts"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// OTPLog is the audit row written on every issuance. It never carries the code.
type OTPLog struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Purpose   string    `json:"purpose"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type SendOTPRequest struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
}

type VerifyOTPRequest struct {
	Email   string `json:"email"`
	Code    string `json:"code"`
	Purpose string `json:"purpose"`
}
