package audit

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/gkintu/hukasa-staging-sub001/internal/ids"
	"github.com/gkintu/hukasa-staging-sub001/internal/models"
)

// Sink persists audit entries. The pgx AuditRepository implements it.
type Sink interface {
	Insert(ctx context.Context, entry models.AuditEntry) error
}

type Record struct {
	ActorID    string
	Action     string
	TargetType string
	TargetID   string
	TargetName string
	Metadata   map[string]any
	IPAddress  string
	UserAgent  string
}

// Recorder writes structured action records. A sink failure is logged and
// swallowed: auditing must never roll back the action it describes.
type Recorder struct {
	sink Sink
	log  zerolog.Logger
}

func NewRecorder(sink Sink, log zerolog.Logger) *Recorder {
	return &Recorder{sink: sink, log: log}
}

func (r *Recorder) Record(ctx context.Context, record Record) {
	entry := models.AuditEntry{
		ID:         ids.New(),
		ActorID:    record.ActorID,
		Action:     record.Action,
		TargetType: record.TargetType,
		TargetID:   record.TargetID,
		TargetName: record.TargetName,
		Metadata:   record.Metadata,
		IPAddress:  record.IPAddress,
		UserAgent:  record.UserAgent,
	}

	if err := r.sink.Insert(ctx, entry); err != nil {
		r.log.Error().Err(err).
			Str("action", record.Action).
			Str("target_id", record.TargetID).
			Msg("audit write failed")
	}
}
