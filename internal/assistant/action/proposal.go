package action

// Proposal is the schema-shaped object the completion endpoint returns:
// one action_type tag plus a superset payload where every field is
// optional. The interpreter narrows it into a typed Action.
type Proposal struct {
	ActionType          Type       `json:"action_type"`
	Payload             RawPayload `json:"action_payload"`
	ConfirmationMessage string     `json:"confirmation_message,omitempty"`
}

// RawPayload carries every field any action might need. Unused fields
// are simply absent per response; required-ness is judged by the
// completeness predicates, never by the schema.
type RawPayload struct {
	// task
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	AssignedTo  []string `json:"assigned_to,omitempty"`
	DueDate     string   `json:"due_date,omitempty"`
	FamilyID    string   `json:"family_id,omitempty"`
	Status      string   `json:"status,omitempty"`

	// event
	StartTime       string   `json:"start_time,omitempty"`
	EndTime         string   `json:"end_time,omitempty"`
	FamilyMemberIDs []string `json:"family_member_ids,omitempty"`
	Location        string   `json:"location,omitempty"`
	Category        string   `json:"category,omitempty"`

	// wishlist
	Name           string `json:"name,omitempty"`
	URL            string `json:"url,omitempty"`
	FamilyMemberID string `json:"family_member_id,omitempty"`

	// batches
	Events []Event        `json:"events,omitempty"`
	Items  []WishlistItem `json:"items,omitempty"`

	// status update / conversions
	ID      string `json:"id,omitempty"`
	EventID string `json:"event_id,omitempty"`
	TaskID  string `json:"task_id,omitempty"`

	// conversational
	ClarificationQuestion string `json:"clarification_question,omitempty"`
	Response              string `json:"response,omitempty"`
}

// Task narrows the raw payload to a task.
func (p *RawPayload) Task() *Task {
	return &Task{
		Title:       p.Title,
		Description: p.Description,
		AssignedTo:  p.AssignedTo,
		DueDate:     p.DueDate,
		FamilyID:    p.FamilyID,
		Status:      p.Status,
	}
}

// Event narrows the raw payload to a schedule event.
func (p *RawPayload) Event() *Event {
	return &Event{
		Title:           p.Title,
		StartTime:       p.StartTime,
		EndTime:         p.EndTime,
		FamilyMemberIDs: p.FamilyMemberIDs,
		FamilyID:        p.FamilyID,
		Location:        p.Location,
		Category:        p.Category,
	}
}

// WishlistItem narrows the raw payload to a wishlist item.
func (p *RawPayload) WishlistItem() *WishlistItem {
	return &WishlistItem{
		Name:           p.Name,
		URL:            p.URL,
		FamilyMemberID: p.FamilyMemberID,
	}
}

// EventBatch narrows the raw payload to a multi-event batch. Every row
// starts selected.
func (p *RawPayload) EventBatch() *Events {
	events := make([]Event, len(p.Events))
	copy(events, p.Events)
	return &Events{Events: events}
}

// WishlistBatch narrows the raw payload to a multi-item batch.
func (p *RawPayload) WishlistBatch() *WishlistItems {
	items := make([]WishlistItem, len(p.Items))
	copy(items, p.Items)
	return &WishlistItems{Items: items}
}

// StatusUpdate narrows the raw payload to a task status update.
func (p *RawPayload) StatusUpdate() *StatusUpdate {
	return &StatusUpdate{ID: p.ID, Status: p.Status}
}

// Convert narrows the raw payload to an event/task conversion.
func (p *RawPayload) Convert() *Convert {
	return &Convert{EventID: p.EventID, TaskID: p.TaskID}
}
