package pending

import (
	"errors"
	"testing"

	"hearth/internal/assistant/action"
)

func taskAction() *Action {
	return &Action{
		Type:                action.TypeCreateTask,
		Payload:             &action.Task{Title: "Buy milk"},
		ConfirmationMessage: "Add a task to buy milk?",
	}
}

func eventBatch() *Action {
	return &Action{
		Type: action.TypeCreateEvents,
		Payload: &action.Events{Events: []action.Event{
			{Title: "Swim practice"},
			{Title: "Piano lesson"},
			{Title: "Recital"},
		}},
		ConfirmationMessage: "Add these 3 events?",
	}
}

func TestSet_AtMostOne(t *testing.T) {
	s := NewStore()

	if err := s.Set("c1", taskAction()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := s.Set("c1", eventBatch())
	if !errors.Is(err, ErrPendingExists) {
		t.Fatalf("expected ErrPendingExists, got %v", err)
	}

	// The original action survives the collision.
	got := s.Get("c1")
	if got == nil || got.Type != action.TypeCreateTask {
		t.Errorf("original pending action was clobbered: %+v", got)
	}

	// Other conversations are unaffected.
	if err := s.Set("c2", eventBatch()); err != nil {
		t.Errorf("unexpected error for second conversation: %v", err)
	}
}

func TestSet_RejectsProposalTags(t *testing.T) {
	s := NewStore()
	err := s.Set("c1", &Action{Type: action.TypeProposeTask, Payload: &action.Task{}})
	if err == nil {
		t.Fatal("expected error for unnormalized proposal tag")
	}
}

func TestConfirm_PopsAndClears(t *testing.T) {
	s := NewStore()
	s.Set("c1", taskAction())

	a, err := s.Confirm("c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Type != action.TypeCreateTask {
		t.Errorf("expected create_task, got %s", a.Type)
	}
	if s.Get("c1") != nil {
		t.Error("confirm should clear the store")
	}

	_, err = s.Confirm("c1")
	if !errors.Is(err, ErrNoPending) {
		t.Errorf("expected ErrNoPending on second confirm, got %v", err)
	}
}

func TestConfirm_FiltersDeselectedRows(t *testing.T) {
	s := NewStore()
	s.Set("c1", eventBatch())

	if err := s.Select("c1", "events", 1, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a, err := s.Confirm("c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	batch, ok := a.Payload.(*action.Events)
	if !ok {
		t.Fatalf("payload has type %T", a.Payload)
	}
	if len(batch.Events) != 2 {
		t.Fatalf("expected 2 rows after filtering, got %d", len(batch.Events))
	}
	if batch.Events[0].Title != "Swim practice" || batch.Events[1].Title != "Recital" {
		t.Errorf("wrong rows kept: %q, %q", batch.Events[0].Title, batch.Events[1].Title)
	}
	for _, ev := range batch.Events {
		if ev.Selected != nil {
			t.Error("selected flag should be stripped on confirm")
		}
	}
}

func TestCancel(t *testing.T) {
	s := NewStore()

	if err := s.Cancel("c1"); !errors.Is(err, ErrNoPending) {
		t.Errorf("expected ErrNoPending, got %v", err)
	}

	s.Set("c1", taskAction())
	if err := s.Cancel("c1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Get("c1") != nil {
		t.Error("cancel should clear the store")
	}

	// After cancel a new proposal is accepted again.
	if err := s.Set("c1", eventBatch()); err != nil {
		t.Errorf("unexpected error after cancel: %v", err)
	}
}

func TestSelect_BadAddress(t *testing.T) {
	s := NewStore()
	s.Set("c1", eventBatch())

	tests := []struct {
		name       string
		collection string
		index      int
	}{
		{"wrong collection", "items", 0},
		{"negative index", "events", -1},
		{"index out of range", "events", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Select("c1", tt.collection, tt.index, false); !errors.Is(err, ErrBadEdit) {
				t.Errorf("expected ErrBadEdit, got %v", err)
			}
		})
	}

	if err := s.Select("missing", "events", 0, false); !errors.Is(err, ErrNoPending) {
		t.Errorf("expected ErrNoPending, got %v", err)
	}
}

func TestSelect_NonBatchPayload(t *testing.T) {
	s := NewStore()
	s.Set("c1", taskAction())
	if err := s.Select("c1", "events", 0, false); !errors.Is(err, ErrBadEdit) {
		t.Errorf("expected ErrBadEdit for single payload, got %v", err)
	}
}

func TestEdit_SinglePayload(t *testing.T) {
	s := NewStore()
	s.Set("c1", taskAction())

	if err := s.Edit("c1", "", 0, "title", "Buy oat milk"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Edit("c1", "", 0, "assigned_to", "m1, m2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	task := s.Get("c1").Payload.(*action.Task)
	if task.Title != "Buy oat milk" {
		t.Errorf("expected edited title, got %s", task.Title)
	}
	if len(task.AssignedTo) != 2 || task.AssignedTo[0] != "m1" || task.AssignedTo[1] != "m2" {
		t.Errorf("expected split assignee list, got %v", task.AssignedTo)
	}

	if err := s.Edit("c1", "", 0, "nonsense", "x"); !errors.Is(err, ErrBadEdit) {
		t.Errorf("expected ErrBadEdit for unknown field, got %v", err)
	}
}

func TestEdit_BatchRow(t *testing.T) {
	s := NewStore()
	s.Set("c1", eventBatch())

	if err := s.Edit("c1", "events", 2, "start_time", "2026-09-06T17:00:00Z"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	batch := s.Get("c1").Payload.(*action.Events)
	if batch.Events[2].StartTime != "2026-09-06T17:00:00Z" {
		t.Errorf("expected edited start_time, got %s", batch.Events[2].StartTime)
	}

	if err := s.Edit("c1", "events", 9, "title", "x"); !errors.Is(err, ErrBadEdit) {
		t.Errorf("expected ErrBadEdit for out-of-range row, got %v", err)
	}
}

func TestEdit_NoPending(t *testing.T) {
	s := NewStore()
	if err := s.Edit("c1", "", 0, "title", "x"); !errors.Is(err, ErrNoPending) {
		t.Errorf("expected ErrNoPending, got %v", err)
	}
}
