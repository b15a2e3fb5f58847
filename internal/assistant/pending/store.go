package pending

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"hearth/internal/assistant/action"
)

var (
	// ErrPendingExists is returned when a new proposal arrives while an
	// unconfirmed one is still live. The earlier proposal is never
	// silently clobbered; the user must confirm or cancel first.
	ErrPendingExists = errors.New("a pending action is awaiting confirmation")

	// ErrNoPending is returned by edits, confirm and cancel when no
	// action is awaiting review.
	ErrNoPending = errors.New("no pending action")

	// ErrBadEdit is returned for edits addressing a collection, index or
	// field the pending payload does not have.
	ErrBadEdit = errors.New("edit does not address the pending action")
)

// Action is a proposed operation awaiting explicit user confirmation.
// Type is always the executable counterpart (create_task, never
// propose_task).
type Action struct {
	Type                action.Type
	Payload             action.Payload
	ConfirmationMessage string
}

// Store holds zero-or-one pending action per conversation.
type Store struct {
	mu      sync.Mutex
	actions map[string]*Action // conversation id -> pending action
}

// NewStore creates an empty pending-action store.
func NewStore() *Store {
	return &Store{actions: make(map[string]*Action)}
}

// Set registers a new pending action for a conversation. Fails with
// ErrPendingExists if one is already awaiting review.
func (s *Store) Set(conversationID string, a *Action) error {
	if a.Type.IsProposal() {
		// The interpreter normalizes before setting; a propose_* tag
		// here is a programming error, not user input.
		return fmt.Errorf("pending action has unnormalized type %q", a.Type)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.actions[conversationID]; ok {
		return ErrPendingExists
	}
	s.actions[conversationID] = a
	return nil
}

// Get returns the conversation's pending action, or nil.
func (s *Store) Get(conversationID string) *Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.actions[conversationID]
}

// Cancel discards the pending action. No entity calls are made.
func (s *Store) Cancel(conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.actions[conversationID]; !ok {
		return ErrNoPending
	}
	delete(s.actions, conversationID)
	return nil
}

// Confirm pops the pending action, filtering batch collections down to
// rows still selected and stripping the review-layer selected flag.
// The store is cleared before the caller executes, so execution errors
// never re-queue the action.
func (s *Store) Confirm(conversationID string) (*Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actions[conversationID]
	if !ok {
		return nil, ErrNoPending
	}
	delete(s.actions, conversationID)

	switch p := a.Payload.(type) {
	case *action.Events:
		a.Payload = &action.Events{Events: p.SelectedEvents()}
	case *action.WishlistItems:
		a.Payload = &action.WishlistItems{Items: p.SelectedItems()}
	}
	return a, nil
}

// Select toggles the selected flag of one batch row.
func (s *Store) Select(conversationID, collection string, index int, selected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actions[conversationID]
	if !ok {
		return ErrNoPending
	}

	switch p := a.Payload.(type) {
	case *action.Events:
		if collection != "events" || index < 0 || index >= len(p.Events) {
			return ErrBadEdit
		}
		p.Events[index].Selected = &selected
	case *action.WishlistItems:
		if collection != "items" || index < 0 || index >= len(p.Items) {
			return ErrBadEdit
		}
		p.Items[index].Selected = &selected
	default:
		return ErrBadEdit
	}
	return nil
}

// Edit mutates one field of the pending payload. For batch payloads the
// row is addressed by (collection, index); single payloads ignore both
// (pass "" and 0).
func (s *Store) Edit(conversationID, collection string, index int, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actions[conversationID]
	if !ok {
		return ErrNoPending
	}

	switch p := a.Payload.(type) {
	case *action.Task:
		return editTask(p, field, value)
	case *action.Event:
		return editEvent(p, field, value)
	case *action.WishlistItem:
		return editWishlistItem(p, field, value)
	case *action.StatusUpdate:
		return editStatusUpdate(p, field, value)
	case *action.Events:
		if collection != "events" || index < 0 || index >= len(p.Events) {
			return ErrBadEdit
		}
		return editEvent(&p.Events[index], field, value)
	case *action.WishlistItems:
		if collection != "items" || index < 0 || index >= len(p.Items) {
			return ErrBadEdit
		}
		return editWishlistItem(&p.Items[index], field, value)
	default:
		return ErrBadEdit
	}
}

func editTask(t *action.Task, field, value string) error {
	switch field {
	case "title":
		t.Title = value
	case "description":
		t.Description = value
	case "due_date":
		t.DueDate = value
	case "family_id":
		t.FamilyID = value
	case "status":
		t.Status = value
	case "assigned_to":
		t.AssignedTo = splitList(value)
	default:
		return ErrBadEdit
	}
	return nil
}

func editEvent(e *action.Event, field, value string) error {
	switch field {
	case "title":
		e.Title = value
	case "start_time":
		e.StartTime = value
	case "end_time":
		e.EndTime = value
	case "family_id":
		e.FamilyID = value
	case "location":
		e.Location = value
	case "category":
		e.Category = value
	case "family_member_ids":
		e.FamilyMemberIDs = splitList(value)
	default:
		return ErrBadEdit
	}
	return nil
}

func editWishlistItem(w *action.WishlistItem, field, value string) error {
	switch field {
	case "name":
		w.Name = value
	case "url":
		w.URL = value
	case "family_member_id":
		w.FamilyMemberID = value
	default:
		return ErrBadEdit
	}
	return nil
}

func editStatusUpdate(su *action.StatusUpdate, field, value string) error {
	switch field {
	case "id":
		su.ID = value
	case "status":
		su.Status = value
	default:
		return ErrBadEdit
	}
	return nil
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
