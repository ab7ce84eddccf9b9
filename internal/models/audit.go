package models

import "time"

type AuditEntry struct {
	ID          string
	ActorID     string
	Action      string
	TargetType  string
	TargetID    string
	TargetName  string
	Metadata    map[string]any
	IPAddress   string
	UserAgent   string
	CreatedAt   time.Time
}
