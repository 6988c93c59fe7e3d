package models

import "time"

// AppMetadata is written by the application only. It mirrors the profile so the
// role gate can answer without a database round-trip.
type AppMetadata struct {
	Role    Role `json:"role,omitempty"`
	Profile bool `json:"profile,omitempty"`
}

// UserMetadata is sourced from the OAuth provider's userinfo payload.
type UserMetadata struct {
	FullName   string `json:"full_name,omitempty"`
	Name       string `json:"name,omitempty"`
	GivenName  string `json:"given_name,omitempty"`
	FamilyName string `json:"family_name,omitempty"`
	AvatarURL  string `json:"avatar_url,omitempty"`
	Picture    string `json:"picture,omitempty"`
	Role       Role   `json:"role,omitempty"`
}

type Identity struct {
	ID              string
	Provider        string
	ProviderSubject string
	Email           string
	UserMetadata    UserMetadata
	AppMetadata     AppMetadata
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastSignInAt    *time.Time
}

// ProviderUser is what the OAuth provider tells us about the person signing in.
type ProviderUser struct {
	Provider   string
	Subject    string `json:"sub"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Picture    string `json:"picture"`
}
