package service

import (
	"net/url"
	"path"
	"strings"

	"github.com/AlouiLouai/educ/internal/models"
)

// ResolveRedirect returns next when it is a local path inside the role's
// area, and the role's root otherwise.
func ResolveRedirect(next string, role models.Role) string {
	root := role.Root()
	if !role.Valid() {
		return "/"
	}
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return root
	}

	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return root
	}

	cleaned := path.Clean(u.Path)
	if cleaned != root && !strings.HasPrefix(cleaned, root+"/") {
		return root
	}
	if u.RawQuery != "" {
		return cleaned + "?" + u.RawQuery
	}
	return cleaned
}
