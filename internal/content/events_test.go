package content_test

import (
	"testing"

	"github.com/p-n-ai/pai-content/internal/content"
)

func TestMemoryEventLog_Record(t *testing.T) {
	log := content.NewMemoryEventLog()

	err := log.Record(t.Context(), content.Event{
		Entity:   content.EntityCourse,
		EntityID: "c-1",
		Action:   content.EventDeleted,
		Data:     map[string]any{"title": "Algebra"},
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	events := log.Events()
	if len(events) != 1 {
		t.Fatalf("Events() = %d, want 1", len(events))
	}
	if events[0].Type() != "course.deleted" {
		t.Errorf("Type() = %q, want course.deleted", events[0].Type())
	}
	if events[0].CreatedAt.IsZero() {
		t.Error("Record() did not stamp CreatedAt")
	}
}

func TestMemoryEventLog_RejectsIncompleteEvents(t *testing.T) {
	tests := []struct {
		name  string
		event content.Event
	}{
		{"missing entity", content.Event{EntityID: "x", Action: content.EventCreated}},
		{"missing action", content.Event{Entity: content.EntityQuiz, EntityID: "x"}},
		{"missing id", content.Event{Entity: content.EntityQuiz, Action: content.EventCreated}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := content.NewMemoryEventLog()
			if err := log.Record(t.Context(), tt.event); err == nil {
				t.Error("Record() should fail")
			}
			if len(log.Events()) != 0 {
				t.Error("rejected event was stored")
			}
		})
	}
}

func TestNopEventLog(t *testing.T) {
	if err := (content.NopEventLog{}).Record(t.Context(), content.Event{}); err != nil {
		t.Errorf("NopEventLog.Record() error = %v", err)
	}
}

func TestPostgresEventLog_NilPool(t *testing.T) {
	log := content.NewPostgresEventLog(nil)
	err := log.Record(t.Context(), content.Event{Entity: content.EntityCourse, EntityID: "c", Action: content.EventCreated})
	if err == nil {
		t.Error("Record() with nil pool should fail")
	}
}
