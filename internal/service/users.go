package service

import (
	"strings"
	"unicode/utf8"

	"github.com/AlouiLouai/educ/internal/models"
)

const fallbackDisplayName = "Utilisateur"

type ConnectedUser struct {
	ID          string      `json:"id"`
	Email       string      `json:"email,omitempty"`
	FullName    string      `json:"fullName"`
	DisplayName string      `json:"displayName"`
	AvatarURL   string      `json:"avatarUrl,omitempty"`
	Initial     string      `json:"initial"`
	Role        models.Role `json:"role,omitempty"`
}

// BuildConnectedUser merges the identity with its profile, which may be nil.
func BuildConnectedUser(user models.Identity, profile *models.Profile) ConnectedUser {
	var first, last, email, avatar string
	var role models.Role
	if profile != nil {
		first = deref(profile.FirstName)
		last = deref(profile.LastName)
		email = deref(profile.Email)
		avatar = deref(profile.AvatarURL)
		role = profile.Role
	}
	if user.Email != "" {
		email = user.Email
	}
	if role == "" {
		role = user.UserMetadata.Role
	}

	fullName := strings.TrimSpace(strings.Join(nonEmpty(first, last), " "))
	displayName := fullName
	if displayName == "" {
		displayName = email
	}
	if displayName == "" {
		displayName = fallbackDisplayName
	}

	initial := "U"
	for _, seed := range []string{first, last, email} {
		if r, _ := utf8.DecodeRuneInString(seed); r != utf8.RuneError {
			initial = strings.ToUpper(string(r))
			break
		}
	}

	id := user.ID
	if id == "" && profile != nil {
		id = profile.ID
	}

	return ConnectedUser{
		ID:          id,
		Email:       email,
		FullName:    fullName,
		DisplayName: displayName,
		AvatarURL:   avatar,
		Initial:     initial,
		Role:        role,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nonEmpty(values ...string) []string {
	out := values[:0:0]
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
