package handler

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"hearth/internal/assistant/action"
	"hearth/internal/assistant/consumer"
	"hearth/internal/assistant/interpret"
	"hearth/internal/assistant/pending"
	"hearth/internal/assistant/prompt"
	"hearth/internal/assistant/publisher"
	"hearth/internal/assistant/transcript"
	"hearth/internal/entity"
	"hearth/internal/logging"
)

const (
	// MsgNoFamily short-circuits a send with no family context before
	// any network call.
	MsgNoFamily = "I don't know which family this chat belongs to, so I can't help with that yet."
	// MsgBusy is returned when a conversation already has a send in
	// flight.
	MsgBusy = "I'm still working on your last message - one moment."
	// MsgNothingPending answers confirm/cancel with no live proposal.
	MsgNothingPending = "There's nothing waiting for your confirmation."
	// MsgCancelled acknowledges a cancelled proposal.
	MsgCancelled = "Okay, I won't do that."
	// MsgCleared acknowledges a cleared chat.
	MsgCleared = "Chat history cleared."
)

// Completions produces one proposal per prompt.
type Completions interface {
	Propose(ctx context.Context, p prompt.Prompt) (*action.Proposal, error)
}

// Interpreting turns a proposal into an outcome.
type Interpreting interface {
	Interpret(ctx context.Context, req interpret.Request, prop *action.Proposal) interpret.Outcome
}

// Executing applies a confirmed action.
type Executing interface {
	Apply(ctx context.Context, act *action.Action, idemKey string) (string, error)
}

// Members resolves the family roster.
type Members interface {
	FilterMembers(ctx context.Context, familyID string) ([]entity.FamilyMember, error)
}

// Replies publishes assistant replies.
type Replies interface {
	PublishReply(ctx context.Context, reply *publisher.ChatReply) error
}

// Handler drives the full pipeline for one chat request: prompt →
// completion → interpretation, plus the confirm/cancel/edit flow for
// pending actions.
type Handler struct {
	builder *prompt.Builder
	llm     Completions
	interp  Interpreting
	exec    Executing
	pending *pending.Store
	members Members
	cache   transcript.Cache
	replies Replies
	logger  *logging.Logger
	window  int
	now     func() time.Time

	mu       sync.Mutex
	inFlight map[string]bool // conversation id -> send in progress
}

// New creates a chat request handler. window <= 0 uses the default
// history window.
func New(llm Completions, interp Interpreting, exec Executing, store *pending.Store, members Members, cache transcript.Cache, replies Replies, logger *logging.Logger, window int) *Handler {
	return &Handler{
		builder:  prompt.New(),
		llm:      llm,
		interp:   interp,
		exec:     exec,
		pending:  store,
		members:  members,
		cache:    cache,
		replies:  replies,
		logger:   logger,
		window:   window,
		now:      time.Now,
		inFlight: make(map[string]bool),
	}
}

// Handle processes a single chat request. All user-visible failures are
// folded into reply messages; an error return means the reply could not
// be published and the delivery should be retried.
func (h *Handler) Handle(ctx context.Context, msg *consumer.ChatRequest) error {
	switch msg.Kind {
	case "", "message":
		return h.handleMessage(ctx, msg)
	case "confirm":
		return h.handleConfirm(ctx, msg)
	case "cancel":
		return h.handleCancel(ctx, msg)
	case "select":
		return h.handleSelect(ctx, msg)
	case "edit":
		return h.handleEdit(ctx, msg)
	case "clear":
		return h.handleClear(ctx, msg)
	default:
		h.logger.Error("unknown request kind %q for conversation %s", msg.Kind, msg.ConversationID)
		return h.reply(ctx, msg, interpret.MsgUnclear, false)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *consumer.ChatRequest) error {
	if msg.FamilyID == "" {
		return h.reply(ctx, msg, MsgNoFamily, false)
	}

	if !h.acquire(msg.ConversationID) {
		return h.reply(ctx, msg, MsgBusy, false)
	}
	defer h.release(msg.ConversationID)

	roster, self := h.resolveRoster(ctx, msg)

	log := transcript.Open(ctx, h.cache, msg.ConversationID)
	history := make([]prompt.Turn, 0, len(log.Turns()))
	for _, t := range log.Turns() {
		history = append(history, prompt.Turn{Role: t.Role, Content: t.Content})
	}
	if err := log.Append(ctx, transcript.Turn{Role: "user", Content: msg.Text}); err != nil {
		h.logger.Error("caching user turn for conversation %s: %v", msg.ConversationID, err)
	}

	pctx := prompt.Context{
		Now:      h.now(),
		FamilyID: msg.FamilyID,
		Roster:   rosterMembers(roster),
		History:  history,
		Message:  msg.Text,
		Window:   h.window,
	}
	if self != nil {
		pctx.Self = &prompt.Member{ID: self.ID, Name: self.Name}
		pctx.Language = self.Language
	}

	proposal, err := h.llm.Propose(ctx, h.builder.Build(pctx))
	if err != nil {
		h.logger.Error("completion call for conversation %s: %v", msg.ConversationID, err)
		return h.replyAndRecord(ctx, msg, log, interpret.MsgGenericFailure, nil)
	}

	outcome := h.interp.Interpret(ctx, interpret.Request{
		ConversationID: msg.ConversationID,
		FamilyID:       msg.FamilyID,
		Message:        msg.Text,
		Self:           self,
		Roster:         roster,
		IdempotencyKey: msg.IdempotencyKey,
	}, proposal)

	return h.replyAndRecord(ctx, msg, log, outcome.Reply, outcome.Pending)
}

func (h *Handler) handleConfirm(ctx context.Context, msg *consumer.ChatRequest) error {
	pa, err := h.pending.Confirm(msg.ConversationID)
	if errors.Is(err, pending.ErrNoPending) {
		return h.reply(ctx, msg, MsgNothingPending, false)
	}
	if err != nil {
		h.logger.Error("confirming pending action for conversation %s: %v", msg.ConversationID, err)
		return h.reply(ctx, msg, interpret.MsgGenericFailure, false)
	}

	summary, err := h.exec.Apply(ctx, &action.Action{Type: pa.Type, Payload: pa.Payload}, msg.IdempotencyKey)
	if err != nil {
		// The action is already cleared; errors report, they never
		// re-queue.
		h.logger.Error("executing confirmed %s for conversation %s: %v", pa.Type, msg.ConversationID, err)
		return h.replyRecorded(ctx, msg, interpret.MsgGenericFailure, false)
	}
	return h.replyRecorded(ctx, msg, summary, false)
}

func (h *Handler) handleCancel(ctx context.Context, msg *consumer.ChatRequest) error {
	err := h.pending.Cancel(msg.ConversationID)
	if errors.Is(err, pending.ErrNoPending) {
		return h.reply(ctx, msg, MsgNothingPending, false)
	}
	return h.replyRecorded(ctx, msg, MsgCancelled, false)
}

func (h *Handler) handleSelect(ctx context.Context, msg *consumer.ChatRequest) error {
	selected := msg.Selected == nil || *msg.Selected
	if err := h.pending.Select(msg.ConversationID, msg.Collection, msg.Index, selected); err != nil {
		return h.reply(ctx, msg, editErrorMessage(err), false)
	}
	return h.reply(ctx, msg, "Selection updated.", true)
}

func (h *Handler) handleEdit(ctx context.Context, msg *consumer.ChatRequest) error {
	if err := h.pending.Edit(msg.ConversationID, msg.Collection, msg.Index, msg.Field, msg.Value); err != nil {
		return h.reply(ctx, msg, editErrorMessage(err), false)
	}
	return h.reply(ctx, msg, "Updated.", true)
}

func (h *Handler) handleClear(ctx context.Context, msg *consumer.ChatRequest) error {
	log := transcript.Open(ctx, h.cache, msg.ConversationID)
	if err := log.Clear(ctx); err != nil {
		h.logger.Error("clearing transcript for conversation %s: %v", msg.ConversationID, err)
	}
	return h.reply(ctx, msg, MsgCleared, false)
}

func editErrorMessage(err error) string {
	if errors.Is(err, pending.ErrNoPending) {
		return MsgNothingPending
	}
	return interpret.MsgGenericFailure
}

func (h *Handler) resolveRoster(ctx context.Context, msg *consumer.ChatRequest) ([]entity.FamilyMember, *entity.FamilyMember) {
	roster, err := h.members.FilterMembers(ctx, msg.FamilyID)
	if err != nil {
		// The prompt builder substitutes defaults; the send continues.
		h.logger.Error("fetching roster for family %s: %v", msg.FamilyID, err)
		return nil, nil
	}
	for i := range roster {
		if roster[i].ID == msg.MemberID {
			return roster, &roster[i]
		}
	}
	return roster, nil
}

// turnAction is the cached rendering of the proposal attached to an
// assistant turn.
type turnAction struct {
	Type         action.Type    `json:"type"`
	Payload      action.Payload `json:"payload"`
	Confirmation string         `json:"confirmation_message,omitempty"`
}

// replyAndRecord appends the assistant turn to an already-open
// transcript, carrying the pending proposal when one was parked, then
// publishes.
func (h *Handler) replyAndRecord(ctx context.Context, msg *consumer.ChatRequest, log *transcript.Log, text string, pa *pending.Action) error {
	turn := transcript.Turn{Role: "assistant", Content: text, HasAction: pa != nil}
	if pa != nil {
		raw, err := json.Marshal(turnAction{Type: pa.Type, Payload: pa.Payload, Confirmation: pa.ConfirmationMessage})
		if err != nil {
			h.logger.Error("encoding pending action for conversation %s: %v", msg.ConversationID, err)
		} else {
			turn.Action = raw
		}
	}
	if err := log.Append(ctx, turn); err != nil {
		h.logger.Error("caching assistant turn for conversation %s: %v", msg.ConversationID, err)
	}
	return h.reply(ctx, msg, text, pa != nil)
}

// replyRecorded opens the transcript just to record the assistant turn
// (confirm/cancel paths), then publishes.
func (h *Handler) replyRecorded(ctx context.Context, msg *consumer.ChatRequest, text string, hasAction bool) error {
	log := transcript.Open(ctx, h.cache, msg.ConversationID)
	if err := log.Append(ctx, transcript.Turn{Role: "assistant", Content: text, HasAction: hasAction}); err != nil {
		h.logger.Error("caching assistant turn for conversation %s: %v", msg.ConversationID, err)
	}
	return h.reply(ctx, msg, text, hasAction)
}

func (h *Handler) reply(ctx context.Context, msg *consumer.ChatRequest, text string, hasAction bool) error {
	return h.replies.PublishReply(ctx, &publisher.ChatReply{
		ConversationID: msg.ConversationID,
		MemberID:       msg.MemberID,
		Channel:        msg.Channel,
		Message:        text,
		HasAction:      hasAction,
	})
}

func (h *Handler) acquire(conversationID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.inFlight[conversationID] {
		return false
	}
	h.inFlight[conversationID] = true
	return true
}

func (h *Handler) release(conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.inFlight, conversationID)
}

func rosterMembers(roster []entity.FamilyMember) []prompt.Member {
	out := make([]prompt.Member, 0, len(roster))
	for _, m := range roster {
		out = append(out, prompt.Member{ID: m.ID, Name: m.Name})
	}
	return out
}
