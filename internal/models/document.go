package models

import "time"

type DocumentStatus string

const (
	DocumentStatusDraft     DocumentStatus = "draft"
	DocumentStatusPublished DocumentStatus = "published"
	DocumentStatusArchived  DocumentStatus = "archived"
)

func (s DocumentStatus) Valid() bool {
	switch s {
	case DocumentStatusDraft, DocumentStatusPublished, DocumentStatusArchived:
		return true
	}
	return false
}

type DocumentMetadata struct {
	Grade        string `json:"grade,omitempty"`
	Subject      string `json:"subject,omitempty"`
	OriginalName string `json:"original_name,omitempty"`
}

type Document struct {
	ID          string
	TeacherID   string
	Title       string
	Description *string
	Price       *int
	StoragePath string
	FileType    string
	FileSize    int64
	Status      DocumentStatus
	Metadata    DocumentMetadata
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type DocumentFilter struct {
	Grade   string
	Subject string
	Query   string
	Limit   int
	Offset  int
}
