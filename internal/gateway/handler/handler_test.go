package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"hearth/internal/gateway/publisher"
	"hearth/internal/gateway/ws"
	"hearth/internal/logging"
)

func newIdleHub() *ws.Hub {
	return ws.NewHub(logging.New("test"), func(ctx context.Context, conversationID, memberID string, frame []byte) {})
}

// mockPublisher records published requests for test assertions
type mockPublisher struct {
	requests []*publisher.ChatRequest
	err      error
}

func (m *mockPublisher) PublishRequest(ctx context.Context, msg *publisher.ChatRequest) error {
	if m.err != nil {
		return m.err
	}
	m.requests = append(m.requests, msg)
	return nil
}

type mockMembers struct {
	id       string
	familyID string
	err      error
}

func (m *mockMembers) MemberByPhone(ctx context.Context, phone string) (string, string, error) {
	if m.err != nil {
		return "", "", m.err
	}
	return m.id, m.familyID, nil
}

func newTestRouter(pub *mockPublisher, members Members, authToken string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(pub, members, logging.New("test"), authToken)
	return h.Router()
}

func postJSON(router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func postForm(router *gin.Engine, path string, values url.Values, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleChat_Message(t *testing.T) {
	mock := &mockPublisher{}
	router := newTestRouter(mock, &mockMembers{}, "")

	rec := postJSON(router, "/v1/chat", map[string]interface{}{
		"conversation_id": "c1",
		"member_id":       "m1",
		"family_id":       "f1",
		"text":            "  add buy milk  ",
	})

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d: %s", http.StatusAccepted, rec.Code, rec.Body.String())
	}
	if len(mock.requests) != 1 {
		t.Fatalf("expected 1 published request, got %d", len(mock.requests))
	}

	req := mock.requests[0]
	if req.Kind != "message" {
		t.Errorf("expected kind message, got %s", req.Kind)
	}
	if req.Text != "add buy milk" {
		t.Errorf("expected trimmed text, got %q", req.Text)
	}
	if req.Channel != "web" {
		t.Errorf("expected channel web, got %s", req.Channel)
	}
	if req.MessageID == "" {
		t.Error("expected a generated message id")
	}
	if !strings.HasPrefix(req.IdempotencyKey, "idem_") {
		t.Errorf("expected a derived idempotency key, got %q", req.IdempotencyKey)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp["message_id"] != req.MessageID {
		t.Errorf("response message_id %s does not match published %s", resp["message_id"], req.MessageID)
	}
}

func TestHandleChat_ConfirmNeedsNoText(t *testing.T) {
	mock := &mockPublisher{}
	router := newTestRouter(mock, &mockMembers{}, "")

	rec := postJSON(router, "/v1/chat", map[string]interface{}{
		"conversation_id": "c1",
		"member_id":       "m1",
		"kind":            "confirm",
	})

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d: %s", http.StatusAccepted, rec.Code, rec.Body.String())
	}
	if mock.requests[0].Kind != "confirm" {
		t.Errorf("expected kind confirm, got %s", mock.requests[0].Kind)
	}
}

func TestHandleChat_Validation(t *testing.T) {
	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing conversation", map[string]interface{}{"member_id": "m1", "text": "hi"}},
		{"missing member", map[string]interface{}{"conversation_id": "c1", "text": "hi"}},
		{"empty text for message", map[string]interface{}{"conversation_id": "c1", "member_id": "m1", "text": "   "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockPublisher{}
			router := newTestRouter(mock, &mockMembers{}, "")

			rec := postJSON(router, "/v1/chat", tt.body)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
			}
			if len(mock.requests) != 0 {
				t.Error("expected no published requests")
			}
		})
	}
}

func TestHandleChat_PublishError(t *testing.T) {
	mock := &mockPublisher{err: errors.New("connection refused")}
	router := newTestRouter(mock, &mockMembers{}, "")

	rec := postJSON(router, "/v1/chat", map[string]interface{}{
		"conversation_id": "c1",
		"member_id":       "m1",
		"text":            "hi",
	})

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, rec.Code)
	}
}

func TestSMSKind(t *testing.T) {
	tests := []struct {
		body string
		kind string
		text string
	}{
		{"yes", "confirm", ""},
		{"  Y  ", "confirm", ""},
		{"OK", "confirm", ""},
		{"Confirm", "confirm", ""},
		{"no", "cancel", ""},
		{"N", "cancel", ""},
		{"cancel", "cancel", ""},
		{"buy milk", "message", "buy milk"},
		{"  yes please add it  ", "message", "yes please add it"},
	}

	for _, tt := range tests {
		kind, text := smsKind(tt.body)
		if kind != tt.kind || text != tt.text {
			t.Errorf("smsKind(%q) = (%q, %q), expected (%q, %q)", tt.body, kind, text, tt.kind, tt.text)
		}
	}
}

func TestHandleSMS_TextMessage(t *testing.T) {
	mock := &mockPublisher{}
	members := &mockMembers{id: "m1", familyID: "f1"}
	router := newTestRouter(mock, members, "")

	form := url.Values{}
	form.Set("From", "+15551234567")
	form.Set("Body", "buy groceries tomorrow")
	form.Set("MessageSid", "SM123456789")

	rec := postForm(router, "/webhooks/sms", form, nil)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<Response></Response>") {
		t.Errorf("expected TwiML response, got %s", rec.Body.String())
	}

	if len(mock.requests) != 1 {
		t.Fatalf("expected 1 published request, got %d", len(mock.requests))
	}
	req := mock.requests[0]
	if req.ConversationID != "sms:m1" {
		t.Errorf("expected conversation sms:m1, got %s", req.ConversationID)
	}
	if req.FamilyID != "f1" || req.MemberID != "m1" {
		t.Errorf("expected member m1 in family f1, got %+v", req)
	}
	if req.Channel != "sms" {
		t.Errorf("expected channel sms, got %s", req.Channel)
	}
	if req.MessageID != "SM123456789" {
		t.Errorf("expected message id from the SID, got %s", req.MessageID)
	}
	if req.Text != "buy groceries tomorrow" {
		t.Errorf("unexpected text %q", req.Text)
	}
}

func TestHandleSMS_YesConfirms(t *testing.T) {
	mock := &mockPublisher{}
	router := newTestRouter(mock, &mockMembers{id: "m1", familyID: "f1"}, "")

	form := url.Values{}
	form.Set("From", "+15551234567")
	form.Set("Body", "yes")
	form.Set("MessageSid", "SM123")

	rec := postForm(router, "/webhooks/sms", form, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if mock.requests[0].Kind != "confirm" {
		t.Errorf("expected kind confirm, got %s", mock.requests[0].Kind)
	}
	if mock.requests[0].Text != "" {
		t.Errorf("confirm carries no text, got %q", mock.requests[0].Text)
	}
}

func TestHandleSMS_UnknownSenderStillAcks(t *testing.T) {
	mock := &mockPublisher{}
	members := &mockMembers{err: errors.New("not found")}
	router := newTestRouter(mock, members, "")

	form := url.Values{}
	form.Set("From", "+15550000000")
	form.Set("Body", "hello")
	form.Set("MessageSid", "SM123")

	rec := postForm(router, "/webhooks/sms", form, nil)

	// 200 with empty TwiML so Twilio stops retrying.
	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if len(mock.requests) != 0 {
		t.Error("expected nothing published for an unknown sender")
	}
}

func TestHandleSMS_MissingFields(t *testing.T) {
	mock := &mockPublisher{}
	router := newTestRouter(mock, &mockMembers{id: "m1", familyID: "f1"}, "")

	form := url.Values{}
	form.Set("Body", "test message")
	form.Set("MessageSid", "SM123")

	rec := postForm(router, "/webhooks/sms", form, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d for missing From, got %d", http.StatusBadRequest, rec.Code)
	}

	form = url.Values{}
	form.Set("From", "+15551234567")
	form.Set("Body", "test message")

	rec = postForm(router, "/webhooks/sms", form, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d for missing MessageSid, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestHandleSMS_EmptyMessage(t *testing.T) {
	mock := &mockPublisher{}
	router := newTestRouter(mock, &mockMembers{id: "m1", familyID: "f1"}, "")

	form := url.Values{}
	form.Set("From", "+15551234567")
	form.Set("MessageSid", "SM123")
	form.Set("Body", "")

	rec := postForm(router, "/webhooks/sms", form, nil)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestHandleSMS_MissingSignature_WhenAuthTokenSet(t *testing.T) {
	mock := &mockPublisher{}
	router := newTestRouter(mock, &mockMembers{id: "m1", familyID: "f1"}, "my-auth-token")

	form := url.Values{}
	form.Set("From", "+15551234567")
	form.Set("Body", "test message")
	form.Set("MessageSid", "SM123")

	rec := postForm(router, "/webhooks/sms", form, nil)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected status %d, got %d", http.StatusForbidden, rec.Code)
	}
	if len(mock.requests) != 0 {
		t.Error("expected no requests published when signature is missing")
	}
}

func TestHandleSMS_InvalidSignature(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &mockPublisher{}
	h := New(mock, &mockMembers{id: "m1", familyID: "f1"}, logging.New("test"), "my-auth-token")
	h.SetWebhookURL("https://example.com/webhooks/sms")
	router := h.Router()

	form := url.Values{}
	form.Set("From", "+15551234567")
	form.Set("Body", "test message")
	form.Set("MessageSid", "SM123")

	rec := postForm(router, "/webhooks/sms", form, map[string]string{
		"X-Twilio-Signature": "invalid-signature",
	})

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected status %d, got %d", http.StatusForbidden, rec.Code)
	}
}

func TestHandleBroadcast(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &mockPublisher{}
	h := New(mock, &mockMembers{}, logging.New("test"), "")
	hub := newIdleHub()
	defer hub.Close()
	h.SetHub(hub)
	router := h.Router()

	rec := postJSON(router, "/internal/broadcast", map[string]interface{}{
		"conversation_id": "c1",
		"message":         "Added task \"Buy milk\"",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var resp map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp["delivered"] != 0 {
		t.Errorf("no clients connected, expected 0 delivered, got %d", resp["delivered"])
	}
}

func TestHandleBroadcast_MissingConversation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := New(&mockPublisher{}, &mockMembers{}, logging.New("test"), "")
	hub := newIdleHub()
	defer hub.Close()
	h.SetHub(hub)
	router := h.Router()

	rec := postJSON(router, "/internal/broadcast", map[string]interface{}{
		"message": "orphan reply",
	})

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestHandleInbound(t *testing.T) {
	mock := &mockPublisher{}
	h := New(mock, &mockMembers{}, logging.New("test"), "")

	frame := []byte(`{"message_id": "ws-1", "text": " hello ", "conversation_id": "spoofed", "member_id": "spoofed"}`)
	h.HandleInbound(context.Background(), "c1", "m1", frame)

	if len(mock.requests) != 1 {
		t.Fatalf("expected 1 published request, got %d", len(mock.requests))
	}
	req := mock.requests[0]
	if req.ConversationID != "c1" || req.MemberID != "m1" {
		t.Errorf("registration identity must override the frame, got %+v", req)
	}
	if req.Text != "hello" {
		t.Errorf("expected trimmed text, got %q", req.Text)
	}
	if req.MessageID != "ws-1" {
		t.Errorf("frame message id should be kept, got %s", req.MessageID)
	}
}

func TestHandleInbound_BadFrame(t *testing.T) {
	mock := &mockPublisher{}
	h := New(mock, &mockMembers{}, logging.New("test"), "")

	h.HandleInbound(context.Background(), "c1", "m1", []byte("not json"))

	if len(mock.requests) != 0 {
		t.Error("malformed frames must be dropped")
	}
}
