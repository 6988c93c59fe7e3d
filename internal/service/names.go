package service

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/AlouiLouai/educ/internal/models"
)

// SplitName derives first and last name from provider metadata. Explicit
// given/family names win; otherwise the full name is split at its first run
// of whitespace.
func SplitName(meta models.UserMetadata) (string, string) {
	given := clean(meta.GivenName)
	family := clean(meta.FamilyName)
	if given != "" {
		return given, family
	}

	full := clean(meta.FullName)
	if full == "" {
		full = clean(meta.Name)
	}
	if full == "" {
		return "", family
	}

	parts := strings.Fields(full)
	return parts[0], strings.Join(parts[1:], " ")
}

func clean(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

func avatarURL(meta models.UserMetadata) string {
	if meta.AvatarURL != "" {
		return meta.AvatarURL
	}
	return meta.Picture
}
