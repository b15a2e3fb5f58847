package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	twilioclient "github.com/twilio/twilio-go/client"

	"hearth/internal/gateway/publisher"
	"hearth/internal/gateway/ws"
	"hearth/internal/idempotency"
	"hearth/internal/logging"
)

// Publisher defines the interface for message publishing.
type Publisher interface {
	PublishRequest(ctx context.Context, msg *publisher.ChatRequest) error
}

// Members resolves SMS senders to family members.
type Members interface {
	MemberByPhone(ctx context.Context, phone string) (id, familyID string, err error)
}

// Handler terminates the web and SMS ingress surfaces and forwards
// everything to the chat request queue.
type Handler struct {
	pub             Publisher
	hub             *ws.Hub
	members         Members
	logger          *logging.Logger
	twilioAuthToken string
	webhookURL      string

	upgrader websocket.Upgrader
}

// New creates a gateway handler. The hub is created by the caller so
// its inbound callback can point back at this handler.
func New(pub Publisher, members Members, logger *logging.Logger, twilioAuthToken string) *Handler {
	return &Handler{
		pub:             pub,
		members:         members,
		logger:          logger,
		twilioAuthToken: twilioAuthToken,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// SetHub attaches the websocket hub.
func (h *Handler) SetHub(hub *ws.Hub) {
	h.hub = hub
}

// SetWebhookURL sets the URL used for Twilio signature validation.
func (h *Handler) SetWebhookURL(url string) {
	h.webhookURL = url
}

// Router builds the gin engine with every route registered.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	r.POST("/v1/chat", h.handleChat)
	r.GET("/v1/chat/ws", h.handleWebsocket)
	r.POST("/internal/broadcast", h.handleBroadcast)
	r.POST("/webhooks/sms", h.handleSMS)

	return r
}

// normalize fills the generated fields of an inbound request: message
// id, idempotency key derived from it, and the request kind.
func normalize(req *publisher.ChatRequest, channel string) {
	if req.MessageID == "" {
		req.MessageID = uuid.NewString()
	}
	if req.Kind == "" {
		req.Kind = "message"
	}
	req.Channel = channel
	req.IdempotencyKey = idempotency.GenerateKey(req.MessageID)
}

func (h *Handler) handleChat(c *gin.Context) {
	var req publisher.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid body: %v", err)})
		return
	}
	if req.ConversationID == "" || req.MemberID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation_id and member_id are required"})
		return
	}
	if req.Kind == "" || req.Kind == "message" {
		if strings.TrimSpace(req.Text) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
			return
		}
		req.Text = strings.TrimSpace(req.Text)
	}
	normalize(&req, "web")

	if err := h.pub.PublishRequest(c.Request.Context(), &req); err != nil {
		h.logger.Error("Failed to publish chat request: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	h.logger.Info("Published %s request for conversation %s", req.Kind, req.ConversationID)
	c.JSON(http.StatusAccepted, gin.H{"message_id": req.MessageID})
}

func (h *Handler) handleWebsocket(c *gin.Context) {
	conversationID := c.Query("conversation_id")
	memberID := c.Query("member_id")
	if conversationID == "" || memberID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation_id and member_id are required"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Websocket upgrade failed: %v", err)
		return
	}
	h.hub.Register(conn, conversationID, memberID)
}

// HandleInbound processes a frame a websocket client sent. The frame
// carries the same JSON shape as POST /v1/chat; conversation and member
// come from the socket registration.
func (h *Handler) HandleInbound(ctx context.Context, conversationID, memberID string, frame []byte) {
	var req publisher.ChatRequest
	if err := json.Unmarshal(frame, &req); err != nil {
		h.logger.Error("Failed to parse websocket frame: %v", err)
		return
	}
	req.ConversationID = conversationID
	req.MemberID = memberID
	req.Text = strings.TrimSpace(req.Text)
	normalize(&req, "web")

	if err := h.pub.PublishRequest(ctx, &req); err != nil {
		h.logger.Error("Failed to publish websocket request: %v", err)
	}
}

// handleBroadcast receives an assistant reply from the notifier and
// pushes it to the conversation's websocket clients.
func (h *Handler) handleBroadcast(c *gin.Context) {
	frame, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}
	var envelope struct {
		ConversationID string `json:"conversation_id"`
	}
	if err := json.Unmarshal(frame, &envelope); err != nil || envelope.ConversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation_id is required"})
		return
	}

	delivered := h.hub.Broadcast(envelope.ConversationID, frame)
	h.logger.Info("Broadcast reply to %d client(s) in conversation %s", delivered, envelope.ConversationID)
	c.JSON(http.StatusOK, gin.H{"delivered": delivered})
}

// smsKind maps short SMS bodies onto pending-action kinds so texting
// "yes" confirms a proposal.
func smsKind(body string) (kind, text string) {
	switch strings.ToLower(strings.TrimSpace(body)) {
	case "yes", "y", "ok", "confirm":
		return "confirm", ""
	case "no", "n", "cancel":
		return "cancel", ""
	}
	return "message", strings.TrimSpace(body)
}

// handleSMS handles incoming SMS webhooks from Twilio.
func (h *Handler) handleSMS(c *gin.Context) {
	r := c.Request
	if err := r.ParseForm(); err != nil {
		h.logger.Error("Failed to parse form: %v", err)
		c.String(http.StatusBadRequest, "Bad request")
		return
	}

	from := r.FormValue("From")
	body := r.FormValue("Body")
	messageSid := r.FormValue("MessageSid")

	if from == "" || messageSid == "" {
		h.logger.Error("Missing required fields: From=%s, MessageSid=%s", from, messageSid)
		c.String(http.StatusBadRequest, "Missing required fields")
		return
	}

	if h.twilioAuthToken != "" {
		if !h.validateSignature(r) {
			h.logger.Error("Invalid Twilio signature for message %s", messageSid)
			c.String(http.StatusForbidden, "Invalid signature")
			return
		}
	}

	memberID, familyID, err := h.members.MemberByPhone(r.Context(), from)
	if err != nil {
		h.logger.Error("Unknown SMS sender %s: %v", from, err)
		// Acknowledge so Twilio stops retrying; there is nobody to route
		// the message to.
		c.Header("Content-Type", "text/xml")
		c.String(http.StatusOK, `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`)
		return
	}

	kind, text := smsKind(body)
	if kind == "message" && text == "" {
		h.logger.Error("Empty message from %s (sid: %s)", from, messageSid)
		c.String(http.StatusBadRequest, "Empty message")
		return
	}

	req := &publisher.ChatRequest{
		MessageID:      messageSid,
		ConversationID: "sms:" + memberID,
		FamilyID:       familyID,
		MemberID:       memberID,
		Kind:           kind,
		Text:           text,
	}
	normalize(req, "sms")

	if err := h.pub.PublishRequest(r.Context(), req); err != nil {
		h.logger.Error("Failed to publish SMS request: %v", err)
		c.String(http.StatusInternalServerError, "Internal server error")
		return
	}
	h.logger.Info("Published %s request from %s (sid: %s)", kind, from, messageSid)

	c.Header("Content-Type", "text/xml")
	c.String(http.StatusOK, `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`)
}

func (h *Handler) validateSignature(r *http.Request) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		return false
	}

	url := h.webhookURL
	if url == "" {
		scheme := "https"
		if r.TLS == nil {
			scheme = "http"
		}
		url = fmt.Sprintf("%s://%s%s", scheme, r.Host, r.URL.Path)
	}

	validator := twilioclient.NewRequestValidator(h.twilioAuthToken)

	params := make(map[string]string)
	for key, values := range r.PostForm {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	return validator.Validate(url, params, signature)
}
