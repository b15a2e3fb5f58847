package entity

import "time"

// Records exchanged with the familyd REST API. Times on create/update
// requests travel as RFC3339 strings because that is what the
// completion endpoint produces; familyd parses and stores them typed.

// Task is a family task.
type Task struct {
	ID          string     `json:"id"`
	FamilyID    string     `json:"family_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	AssignedTo  []string   `json:"assigned_to,omitempty"`
	DueDate     string     `json:"due_date,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ScheduleEvent is a family calendar event.
type ScheduleEvent struct {
	ID              string    `json:"id"`
	FamilyID        string    `json:"family_id"`
	Title           string    `json:"title"`
	StartTime       string    `json:"start_time"`
	EndTime         string    `json:"end_time"`
	FamilyMemberIDs []string  `json:"family_member_ids,omitempty"`
	Location        string    `json:"location,omitempty"`
	Category        string    `json:"category,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// WishlistItem is one entry on a member's wishlist.
type WishlistItem struct {
	ID             string    `json:"id"`
	FamilyMemberID string    `json:"family_member_id"`
	Name           string    `json:"name"`
	URL            string    `json:"url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// FamilyMember is one person in a family.
type FamilyMember struct {
	ID                string `json:"id"`
	FamilyID          string `json:"family_id"`
	UserID            string `json:"user_id,omitempty"`
	Name              string `json:"name"`
	Role              string `json:"role,omitempty"` // "parent", "child", "ai"
	Phone             string `json:"phone,omitempty"`
	Language          string `json:"language,omitempty"`
	WishlistProtected bool   `json:"wishlist_protected,omitempty"`
}

// Conversation groups chat messages. Type "direct" conversations with
// an AI-role member get assistant replies persisted as chat messages.
type Conversation struct {
	ID        string    `json:"id"`
	FamilyID  string    `json:"family_id"`
	Type      string    `json:"type"` // "direct" or "family"
	MemberIDs []string  `json:"member_ids,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatMessage is one persisted conversation turn.
type ChatMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id,omitempty"`
	Role           string    `json:"role"` // "user" or "assistant"
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// TaskFilter narrows Task listings.
type TaskFilter struct {
	FamilyID string
	Status   string
}

// EventFilter narrows ScheduleEvent listings.
type EventFilter struct {
	FamilyID string
	From     string // RFC3339; only events ending after this instant
	To       string
}

// WishlistFilter narrows WishlistItem listings. RequesterID is the
// member asking; familyd answers 403 when the target member's list is
// protected and the requester is somebody else.
type WishlistFilter struct {
	FamilyMemberID string
	RequesterID    string
}
