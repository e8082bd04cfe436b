package persistence_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Cyberenchanter/insurance-protocol/internal/event"
	"github.com/Cyberenchanter/insurance-protocol/internal/persistence"
	"github.com/Cyberenchanter/insurance-protocol/internal/testutil"
)

func testLogger() zerolog.Logger { return zerolog.Nop() }

func TestRowFromEnvelope(t *testing.T) {
	env := event.Envelope{
		Sequence:  7,
		Timestamp: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		Type:      event.EventTypeClaimPaid,
		Payload:   &event.ClaimPaid{PolicyID: 3, Amount: 100},
	}

	row, err := persistence.RowFromEnvelope(env)
	if err != nil {
		t.Fatalf("RowFromEnvelope: %v", err)
	}
	if row.Sequence != 7 {
		t.Errorf("Sequence = %d, want 7", row.Sequence)
	}
	if row.EventType != "ClaimPaid" {
		t.Errorf("EventType = %q, want ClaimPaid", row.EventType)
	}

	var payload event.ClaimPaid
	if err := json.Unmarshal(row.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.PolicyID != 3 || payload.Amount != 100 {
		t.Errorf("payload = %+v", payload)
	}
}

func TestWriteEventBatch_Integration(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	migrator := persistence.NewMigrator(db, "../../migrations", testLogger())
	if err := migrator.Up(context.Background()); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	writer := persistence.NewEventLogWriter(db)

	rows := make([]persistence.EventRow, 0, 3)
	for seq := int64(1); seq <= 3; seq++ {
		row, err := persistence.RowFromEnvelope(event.Envelope{
			Sequence:  seq,
			Timestamp: time.Now().UTC(),
			Type:      event.EventTypeStaked,
			Payload: &event.Staked{
				Provider:     uuid.New(),
				Amount:       seq * 100,
				SharesMinted: seq * 100,
			},
		})
		if err != nil {
			t.Fatalf("RowFromEnvelope: %v", err)
		}
		rows = append(rows, row)
	}

	if err := writer.WriteEventBatch(context.Background(), rows); err != nil {
		t.Fatalf("WriteEventBatch: %v", err)
	}

	// A retried batch is a no-op, not a conflict error.
	if err := writer.WriteEventBatch(context.Background(), rows); err != nil {
		t.Fatalf("retried WriteEventBatch: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM event_log.notifications").Scan(&count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 3 {
		t.Errorf("row count = %d, want 3", count)
	}
}
