package content

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Event types recorded for every create and delete.
const (
	EventCreated = "created"
	EventDeleted = "deleted"
)

// Event is one entry of the content lifecycle audit trail.
type Event struct {
	Entity    string
	EntityID  string
	Action    string
	Data      map[string]any
	CreatedAt time.Time
}

// Type returns the dotted event name, e.g. "course.deleted".
func (e Event) Type() string {
	return e.Entity + "." + e.Action
}

// EventLog records lifecycle events.
type EventLog interface {
	Record(ctx context.Context, event Event) error
}

// NopEventLog ignores all events.
type NopEventLog struct{}

func (NopEventLog) Record(context.Context, Event) error {
	return nil
}

// MemoryEventLog stores events in memory for tests.
type MemoryEventLog struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryEventLog() *MemoryEventLog {
	return &MemoryEventLog{
		events: []Event{},
	}
}

func (l *MemoryEventLog) Record(_ context.Context, event Event) error {
	if err := checkEvent(event); err != nil {
		return err
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()

	return nil
}

func (l *MemoryEventLog) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event{}, l.events...)
}

// PostgresEventLog inserts events into the content_events table.
type PostgresEventLog struct {
	pool *pgxpool.Pool
}

func NewPostgresEventLog(pool *pgxpool.Pool) *PostgresEventLog {
	return &PostgresEventLog{pool: pool}
}

func (l *PostgresEventLog) Record(ctx context.Context, event Event) error {
	if l == nil || l.pool == nil {
		return fmt.Errorf("event log pool is nil")
	}
	if err := checkEvent(event); err != nil {
		return err
	}

	payload := event.Data
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if _, err := l.pool.Exec(ctx,
		`INSERT INTO content_events (entity, entity_id, event_type, data, created_at)
		 VALUES ($1, $2, $3, $4::jsonb, $5)`,
		event.Entity,
		event.EntityID,
		event.Type(),
		string(data),
		createdAt,
	); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	slog.Debug("content event recorded",
		"type", event.Type(),
		"entity_id", event.EntityID,
	)
	return nil
}

func checkEvent(event Event) error {
	if event.Entity == "" {
		return fmt.Errorf("event entity is required")
	}
	if event.Action == "" {
		return fmt.Errorf("event action is required")
	}
	if event.EntityID == "" {
		return fmt.Errorf("event entity_id is required")
	}
	return nil
}
