package models

import "time"

type VariantStatus string

const (
	VariantStatusPending    VariantStatus = "pending"
	VariantStatusProcessing VariantStatus = "processing"
	VariantStatusCompleted  VariantStatus = "completed"
	VariantStatusFailed     VariantStatus = "failed"
)

// SourceImage is an uploaded room photo. Its FilePath is relative to the
// storage root: <userID>/sources/<file>.
type SourceImage struct {
	ID          string
	UserID      string
	ProjectID   string
	FilePath    string
	DisplayName string
	Favorite    bool
	Format      string
	SizeBytes   int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Variant is an AI-staged rendition of a SourceImage. FilePath is nil until
// the render worker has produced a file.
type Variant struct {
	ID            string
	SourceImageID string
	FilePath      *string
	Style         string
	RoomType      string
	Status        VariantStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Project struct {
	ID        string
	UserID    string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
