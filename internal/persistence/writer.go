package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Cyberenchanter/insurance-protocol/internal/event"
)

// EventLogWriter writes emitted notification envelopes to Postgres
// using multi-row INSERT batches.
type EventLogWriter struct {
	db *sql.DB
}

// EventRow represents a row in event_log.notifications.
type EventRow struct {
	Sequence  int64
	EventType string
	Payload   []byte // JSON-encoded payload
	EmittedAt time.Time
}

func NewEventLogWriter(db *sql.DB) *EventLogWriter {
	return &EventLogWriter{db: db}
}

// RowFromEnvelope converts an emitted envelope into its storage row.
func RowFromEnvelope(env event.Envelope) (EventRow, error) {
	payload, err := json.Marshal(env.Payload)
	if err != nil {
		return EventRow{}, fmt.Errorf("marshal %s payload: %w", env.Type, err)
	}
	return EventRow{
		Sequence:  env.Sequence,
		EventType: env.Type.String(),
		Payload:   payload,
		EmittedAt: env.Timestamp,
	}, nil
}

// WriteEventBatch writes a batch of rows to event_log.notifications.
// ON CONFLICT DO NOTHING keeps retried batches idempotent; the
// sequence is the primary key.
func (w *EventLogWriter) WriteEventBatch(ctx context.Context, rows []EventRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO event_log.notifications
		(sequence, event_type, payload, emitted_at)
		VALUES `

	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*4)

	for i, r := range rows {
		base := i * 4
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4,
		))
		args = append(args, r.Sequence, r.EventType, r.Payload, r.EmittedAt)
	}

	query += strings.Join(values, ", ")
	query += ` ON CONFLICT (sequence) DO NOTHING`

	if _, err := w.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert notification batch (%d rows): %w", len(rows), err)
	}

	return nil
}
