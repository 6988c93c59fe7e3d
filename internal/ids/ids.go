package ids

import (
	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// New returns a time-sortable identifier for application records.
func New() string {
	return ksuid.New().String()
}

// NewUUID is used where the identifier must be a UUID (identities, storage paths).
func NewUUID() string {
	return uuid.NewString()
}
