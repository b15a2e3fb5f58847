package action

// Type identifies what the assistant wants to do with a chat turn.
// The completion endpoint returns propose_*/show_* tags; the executor
// only ever sees their executable counterparts (create_*, add_*).
type Type string

const (
	TypeProposeTask          Type = "propose_task"
	TypeCreateTask           Type = "create_task"
	TypeProposeEvent         Type = "propose_event"
	TypeCreateEvent          Type = "create_event"
	TypeProposeEvents        Type = "propose_multiple_events"
	TypeProposeEventsChat    Type = "propose_multiple_events_from_chat"
	TypeCreateEvents         Type = "create_multiple_events"
	TypeProposeWishlistItem  Type = "propose_wishlist_item"
	TypeAddToWishlist        Type = "add_to_wishlist"
	TypeProposeWishlistItems Type = "propose_multiple_wishlist_items"
	TypeAddWishlistItems     Type = "add_multiple_to_wishlist"
	TypeShowWishlist         Type = "show_wishlist"
	TypeShowUpcomingEvents   Type = "show_upcoming_events"
	TypeShowTasks            Type = "show_tasks"
	TypeUpdateTaskStatus     Type = "update_task_status"
	TypeConvertEventToTask   Type = "convert_event_to_task"
	TypeConvertTaskToEvent   Type = "convert_task_to_event"
	TypeClarify              Type = "clarify"
	TypeChat                 Type = "chat"
)

// Executable maps a proposal tag to the action the executor
// understands. Tags that are already executable map to themselves.
func (t Type) Executable() Type {
	switch t {
	case TypeProposeTask:
		return TypeCreateTask
	case TypeProposeEvent:
		return TypeCreateEvent
	case TypeProposeEvents, TypeProposeEventsChat:
		return TypeCreateEvents
	case TypeProposeWishlistItem:
		return TypeAddToWishlist
	case TypeProposeWishlistItems:
		return TypeAddWishlistItems
	default:
		return t
	}
}

// IsProposal reports whether t is a propose_* tag that must be
// normalized before execution.
func (t Type) IsProposal() bool {
	return t != t.Executable()
}

// Task is a single task payload. DueDate is RFC3339 as produced by the
// completion endpoint; familyd parses it on create.
type Task struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	AssignedTo  []string `json:"assigned_to,omitempty"`
	DueDate     string   `json:"due_date,omitempty"`
	FamilyID    string   `json:"family_id,omitempty"`
	Status      string   `json:"status,omitempty"`
	Selected    *bool    `json:"selected,omitempty"`
}

// Event is a single schedule-event payload.
type Event struct {
	Title           string   `json:"title"`
	StartTime       string   `json:"start_time,omitempty"`
	EndTime         string   `json:"end_time,omitempty"`
	FamilyMemberIDs []string `json:"family_member_ids,omitempty"`
	FamilyID        string   `json:"family_id,omitempty"`
	Location        string   `json:"location,omitempty"`
	Category        string   `json:"category,omitempty"`
	Selected        *bool    `json:"selected,omitempty"`
}

// WishlistItem is a single wishlist payload.
type WishlistItem struct {
	Name           string `json:"name"`
	URL            string `json:"url,omitempty"`
	FamilyMemberID string `json:"family_member_id,omitempty"`
	Selected       *bool  `json:"selected,omitempty"`
}

// StatusUpdate changes the status of an existing task.
type StatusUpdate struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Convert turns an event into a task or a task into an event.
type Convert struct {
	EventID string `json:"event_id,omitempty"`
	TaskID  string `json:"task_id,omitempty"`
}

// Payload is the tagged-union payload of an Action. Exactly one
// concrete type is live per Action, discriminated by Action.Type.
type Payload interface {
	isPayload()
}

func (*Task) isPayload()         {}
func (*Event) isPayload()        {}
func (*WishlistItem) isPayload() {}
func (*StatusUpdate) isPayload() {}
func (*Convert) isPayload()      {}

// Events is the batch payload for create_multiple_events.
type Events struct {
	Events []Event `json:"events"`
}

func (*Events) isPayload() {}

// WishlistItems is the batch payload for add_multiple_to_wishlist.
type WishlistItems struct {
	Items []WishlistItem `json:"items"`
}

func (*WishlistItems) isPayload() {}

// Action pairs an executable action type with its payload.
type Action struct {
	Type    Type
	Payload Payload
}

// Complete reports whether a task proposal already has every field
// required to skip human review.
func (t *Task) Complete() bool {
	return t.Title != "" && t.FamilyID != "" && t.Status != "" && t.DueDate != ""
}

// Complete reports whether an event proposal can be applied without
// confirmation.
func (e *Event) Complete() bool {
	return e.Title != "" && e.FamilyID != "" && e.StartTime != "" && e.EndTime != ""
}

// Complete reports whether a wishlist proposal can be applied without
// confirmation.
func (w *WishlistItem) Complete() bool {
	return w.Name != ""
}

// Complete reports whether a status update names both the task and the
// new status.
func (s *StatusUpdate) Complete() bool {
	return s.ID != "" && s.Status != ""
}

// IsSelected reports whether a batch row is still selected for
// execution. Rows default to selected; only an explicit false opts out.
func IsSelected(sel *bool) bool {
	return sel == nil || *sel
}

// SelectedEvents returns the rows of a batch the user kept selected,
// with the review-layer selected flag stripped.
func (e *Events) SelectedEvents() []Event {
	out := make([]Event, 0, len(e.Events))
	for _, ev := range e.Events {
		if IsSelected(ev.Selected) {
			ev.Selected = nil
			out = append(out, ev)
		}
	}
	return out
}

// SelectedItems returns the wishlist rows the user kept selected, with
// the selected flag stripped.
func (w *WishlistItems) SelectedItems() []WishlistItem {
	out := make([]WishlistItem, 0, len(w.Items))
	for _, it := range w.Items {
		if IsSelected(it.Selected) {
			it.Selected = nil
			out = append(out, it)
		}
	}
	return out
}
