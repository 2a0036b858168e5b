package models

import "time"

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Profile is an optional enrichment of User, one-to-one by UserID.
type Profile struct {
	UserID         string  `json:"user_id"`
	DisplayName    string  `json:"display_name"`
	AvatarURL      string  `json:"avatar_url,omitempty"`
	GraduationYear *int    `json:"graduation_year,omitempty"`
	Department     *string `json:"department,omitempty"`
}

// Identity is what a validated session resolves to.
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}
