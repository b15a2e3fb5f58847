package entity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"hearth/internal/apperrors"
)

const requestTimeout = 15 * time.Second

// Client wraps the familyd REST API. Every method either returns the
// created/updated record or an error; HTTP failures carry the status
// code via apperrors.StatusError so callers can distinguish 403/404.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an entity client for the given familyd base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// do issues one JSON request. idemKey, when non-empty, is sent as the
// Idempotency-Key header so familyd replays duplicates.
func (c *Client) do(ctx context.Context, method, path, idemKey string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to familyd failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		msg := string(raw)
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return &apperrors.StatusError{Status: resp.StatusCode, Message: msg}
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, task Task, idemKey string) (*Task, error) {
	var out Task
	if err := c.do(ctx, "POST", "/v1/tasks", idemKey, task, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateTask applies a partial update; zero-valued fields are left
// untouched by familyd.
func (c *Client) UpdateTask(ctx context.Context, id string, patch Task, idemKey string) (*Task, error) {
	var out Task
	if err := c.do(ctx, "PATCH", "/v1/tasks/"+url.PathEscape(id), idemKey, patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteTask soft-deletes a task.
func (c *Client) DeleteTask(ctx context.Context, id, idemKey string) error {
	return c.do(ctx, "DELETE", "/v1/tasks/"+url.PathEscape(id), idemKey, nil, nil)
}

// FilterTasks lists tasks matching the filter.
func (c *Client) FilterTasks(ctx context.Context, f TaskFilter) ([]Task, error) {
	q := url.Values{}
	if f.FamilyID != "" {
		q.Set("family_id", f.FamilyID)
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	var out []Task
	if err := c.do(ctx, "GET", "/v1/tasks?"+q.Encode(), "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// BulkCreateTasks creates several tasks in one call.
func (c *Client) BulkCreateTasks(ctx context.Context, tasks []Task, idemKey string) ([]Task, error) {
	var out []Task
	if err := c.do(ctx, "POST", "/v1/tasks/bulk", idemKey, tasks, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TaskToEvent converts a task into a schedule event.
func (c *Client) TaskToEvent(ctx context.Context, taskID, idemKey string) (*ScheduleEvent, error) {
	var out ScheduleEvent
	if err := c.do(ctx, "POST", "/v1/tasks/"+url.PathEscape(taskID)+"/to-event", idemKey, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateEvent creates a schedule event.
func (c *Client) CreateEvent(ctx context.Context, ev ScheduleEvent, idemKey string) (*ScheduleEvent, error) {
	var out ScheduleEvent
	if err := c.do(ctx, "POST", "/v1/events", idemKey, ev, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateEvent applies a partial update to an event.
func (c *Client) UpdateEvent(ctx context.Context, id string, patch ScheduleEvent, idemKey string) (*ScheduleEvent, error) {
	var out ScheduleEvent
	if err := c.do(ctx, "PATCH", "/v1/events/"+url.PathEscape(id), idemKey, patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteEvent removes an event.
func (c *Client) DeleteEvent(ctx context.Context, id, idemKey string) error {
	return c.do(ctx, "DELETE", "/v1/events/"+url.PathEscape(id), idemKey, nil, nil)
}

// FilterEvents lists events matching the filter.
func (c *Client) FilterEvents(ctx context.Context, f EventFilter) ([]ScheduleEvent, error) {
	q := url.Values{}
	if f.FamilyID != "" {
		q.Set("family_id", f.FamilyID)
	}
	if f.From != "" {
		q.Set("from", f.From)
	}
	if f.To != "" {
		q.Set("to", f.To)
	}
	var out []ScheduleEvent
	if err := c.do(ctx, "GET", "/v1/events?"+q.Encode(), "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// BulkCreateEvents creates several events in one call.
func (c *Client) BulkCreateEvents(ctx context.Context, events []ScheduleEvent, idemKey string) ([]ScheduleEvent, error) {
	var out []ScheduleEvent
	if err := c.do(ctx, "POST", "/v1/events/bulk", idemKey, events, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EventToTask converts an event into a task.
func (c *Client) EventToTask(ctx context.Context, eventID, idemKey string) (*Task, error) {
	var out Task
	if err := c.do(ctx, "POST", "/v1/events/"+url.PathEscape(eventID)+"/to-task", idemKey, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateWishlistItem adds one wishlist entry.
func (c *Client) CreateWishlistItem(ctx context.Context, item WishlistItem, idemKey string) (*WishlistItem, error) {
	var out WishlistItem
	if err := c.do(ctx, "POST", "/v1/wishlist-items", idemKey, item, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FilterWishlistItems lists a member's wishlist. Returns a 403-carrying
// error when the list is protected and the requester isn't the owner.
func (c *Client) FilterWishlistItems(ctx context.Context, f WishlistFilter) ([]WishlistItem, error) {
	q := url.Values{}
	q.Set("family_member_id", f.FamilyMemberID)
	if f.RequesterID != "" {
		q.Set("requester_id", f.RequesterID)
	}
	var out []WishlistItem
	if err := c.do(ctx, "GET", "/v1/wishlist-items?"+q.Encode(), "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// BulkCreateWishlistItems adds several wishlist entries in one call.
func (c *Client) BulkCreateWishlistItems(ctx context.Context, items []WishlistItem, idemKey string) ([]WishlistItem, error) {
	var out []WishlistItem
	if err := c.do(ctx, "POST", "/v1/wishlist-items/bulk", idemKey, items, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteWishlistItem removes one wishlist entry.
func (c *Client) DeleteWishlistItem(ctx context.Context, id, idemKey string) error {
	return c.do(ctx, "DELETE", "/v1/wishlist-items/"+url.PathEscape(id), idemKey, nil, nil)
}

// FilterMembers lists the members of a family.
func (c *Client) FilterMembers(ctx context.Context, familyID string) ([]FamilyMember, error) {
	q := url.Values{}
	q.Set("family_id", familyID)
	var out []FamilyMember
	if err := c.do(ctx, "GET", "/v1/members?"+q.Encode(), "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetMember fetches one family member.
func (c *Client) GetMember(ctx context.Context, id string) (*FamilyMember, error) {
	var out FamilyMember
	if err := c.do(ctx, "GET", "/v1/members/"+url.PathEscape(id), "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetMemberByPhone resolves a family member from a phone number. The
// SMS channel uses this to map inbound texts to a member.
func (c *Client) GetMemberByPhone(ctx context.Context, phone string) (*FamilyMember, error) {
	var out FamilyMember
	if err := c.do(ctx, "GET", "/v1/members/by-phone/"+url.PathEscape(phone), "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateChatMessage persists one conversation turn.
func (c *Client) CreateChatMessage(ctx context.Context, msg ChatMessage, idemKey string) (*ChatMessage, error) {
	var out ChatMessage
	if err := c.do(ctx, "POST", "/v1/messages", idemKey, msg, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FilterChatMessages lists a conversation's persisted turns, oldest
// first.
func (c *Client) FilterChatMessages(ctx context.Context, conversationID string) ([]ChatMessage, error) {
	q := url.Values{}
	q.Set("conversation_id", conversationID)
	var out []ChatMessage
	if err := c.do(ctx, "GET", "/v1/messages?"+q.Encode(), "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetConversation fetches one conversation.
func (c *Client) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var out Conversation
	if err := c.do(ctx, "GET", "/v1/conversations/"+url.PathEscape(id), "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateConversation applies a partial update to a conversation.
func (c *Client) UpdateConversation(ctx context.Context, id string, patch Conversation) (*Conversation, error) {
	var out Conversation
	if err := c.do(ctx, "PATCH", "/v1/conversations/"+url.PathEscape(id), "", patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
