package store

import (
	"context"
	"encoding/json"
	"time"
)

// id lists are stored as JSON text columns; postgres array support in
// lib/pq would tie the schema to pq.Array quirks for no gain at this
// scale.

func idList(ids []string) []byte {
	if len(ids) == 0 {
		return []byte("[]")
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return []byte("[]")
	}
	return raw
}

func fromIDList(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil
	}
	if len(ids) == 0 {
		return nil
	}
	return ids
}

// EventToTask converts an event into a task: a task titled after the
// event, due at its start, assigned to its members. The event is
// removed so the item lives in exactly one place.
func (s *Store) EventToTask(ctx context.Context, eventID string) (*Task, error) {
	ev, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	due := ev.StartTime
	task, err := s.CreateTask(ctx, Task{
		FamilyID:    ev.FamilyID,
		Title:       ev.Title,
		Description: ev.Location,
		AssignedTo:  ev.FamilyMemberIDs,
		DueDate:     &due,
		Status:      "todo",
	})
	if err != nil {
		return nil, err
	}
	if err := s.DeleteEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return task, nil
}

// TaskToEvent converts a task into a one-hour event at its due date.
// Tasks without a due date land at the top of the next hour. The task
// is soft-deleted.
func (s *Store) TaskToEvent(ctx context.Context, taskID string) (*Event, error) {
	t, err := s.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.DeletedAt != nil {
		return nil, ErrNotFound
	}

	start := time.Now().Truncate(time.Hour).Add(time.Hour)
	if t.DueDate != nil {
		start = *t.DueDate
	}
	ev, err := s.CreateEvent(ctx, Event{
		FamilyID:        t.FamilyID,
		Title:           t.Title,
		StartTime:       start,
		EndTime:         start.Add(time.Hour),
		FamilyMemberIDs: t.AssignedTo,
		Location:        "",
		Category:        "other",
	})
	if err != nil {
		return nil, err
	}
	if err := s.DeleteTask(ctx, taskID); err != nil {
		return nil, err
	}
	return ev, nil
}
