package interpret

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"hearth/internal/apperrors"
	"hearth/internal/assistant/action"
	"hearth/internal/assistant/pending"
	"hearth/internal/entity"
	"hearth/internal/logging"
)

// User-facing messages. Kept in one place; localization happens in the
// clients, not here.
const (
	// MsgGenericFailure is the one catch-all failure reply.
	MsgGenericFailure = "Sorry, I couldn't complete that. Please try again."
	// MsgWishlistProtected replaces the generic failure on a 403
	// wishlist fetch.
	MsgWishlistProtected = "That wishlist is password protected - open the wishlist page to view it."
	// MsgPendingExists is shown when a new proposal collides with an
	// unconfirmed one.
	MsgPendingExists = "There's already a suggestion waiting for your confirmation. Confirm or cancel it first."
	// MsgUnclear substitutes for an empty clarification question.
	MsgUnclear = "I didn't quite understand that. Could you rephrase it?"
)

// Reads is the read-only slice of the familyd API the interpreter uses
// for show_* actions and chat persistence.
type Reads interface {
	FilterWishlistItems(ctx context.Context, f entity.WishlistFilter) ([]entity.WishlistItem, error)
	FilterEvents(ctx context.Context, f entity.EventFilter) ([]entity.ScheduleEvent, error)
	FilterTasks(ctx context.Context, f entity.TaskFilter) ([]entity.Task, error)
	GetConversation(ctx context.Context, id string) (*entity.Conversation, error)
	CreateChatMessage(ctx context.Context, msg entity.ChatMessage, idemKey string) (*entity.ChatMessage, error)
}

// Executor applies a normalized action.
type Executor interface {
	Apply(ctx context.Context, act *action.Action, idemKey string) (string, error)
}

// Request carries the conversation context one proposal is interpreted
// in.
type Request struct {
	ConversationID string
	FamilyID       string
	Message        string
	Self           *entity.FamilyMember
	Roster         []entity.FamilyMember
	IdempotencyKey string
}

// Outcome is what one interpreted proposal produced: exactly one of an
// immediate execution, a new pending action, or a plain reply.
type Outcome struct {
	Reply    string
	Pending  *pending.Action
	Executed bool
}

// Interpreter turns one completion proposal into exactly one outcome.
// It is a one-shot classification over the closed action_type set, not
// a multi-step machine.
type Interpreter struct {
	reads   Reads
	exec    Executor
	pending *pending.Store
	logger  *logging.Logger
	now     func() time.Time
}

// New creates an interpreter.
func New(reads Reads, exec Executor, store *pending.Store, logger *logging.Logger) *Interpreter {
	return &Interpreter{
		reads:   reads,
		exec:    exec,
		pending: store,
		logger:  logger,
		now:     time.Now,
	}
}

// Interpret applies the transition rules for one proposal. Errors from
// collaborators never escape: they are logged and folded into the
// generic failure reply, so the conversation stays usable.
func (i *Interpreter) Interpret(ctx context.Context, req Request, prop *action.Proposal) Outcome {
	switch prop.ActionType {
	case action.TypeProposeTask:
		// The completion endpoint may omit family_id; the request
		// always knows it, so backfill before the completeness check.
		task := prop.Payload.Task()
		if task.FamilyID == "" {
			task.FamilyID = req.FamilyID
		}
		return i.proposeOrApply(ctx, req, prop, action.TypeCreateTask, task, task.Complete())

	case action.TypeProposeEvent:
		ev := prop.Payload.Event()
		if ev.FamilyID == "" {
			ev.FamilyID = req.FamilyID
		}
		return i.proposeOrApply(ctx, req, prop, action.TypeCreateEvent, ev, ev.Complete())

	case action.TypeProposeWishlistItem:
		item := prop.Payload.WishlistItem()
		return i.proposeOrApply(ctx, req, prop, action.TypeAddToWishlist, item, item.Complete())

	case action.TypeProposeEvents, action.TypeProposeEventsChat:
		// Multi-item proposals always go through per-row review.
		batch := prop.Payload.EventBatch()
		for idx := range batch.Events {
			if batch.Events[idx].FamilyID == "" {
				batch.Events[idx].FamilyID = req.FamilyID
			}
		}
		return i.setPending(req, action.TypeCreateEvents, batch, prop.ConfirmationMessage)

	case action.TypeProposeWishlistItems:
		return i.setPending(req, action.TypeAddWishlistItems, prop.Payload.WishlistBatch(), prop.ConfirmationMessage)

	case action.TypeShowWishlist:
		return i.showWishlist(ctx, req)

	case action.TypeShowUpcomingEvents:
		return i.showUpcomingEvents(ctx, req)

	case action.TypeShowTasks:
		return i.showTasks(ctx, req)

	case action.TypeUpdateTaskStatus:
		su := prop.Payload.StatusUpdate()
		return i.proposeOrApply(ctx, req, prop, action.TypeUpdateTaskStatus, su, su.Complete())

	case action.TypeConvertEventToTask:
		conv := prop.Payload.Convert()
		if conv.EventID == "" {
			return Outcome{Reply: "Which event should I turn into a task?"}
		}
		return i.apply(ctx, req, &action.Action{Type: action.TypeConvertEventToTask, Payload: conv})

	case action.TypeConvertTaskToEvent:
		conv := prop.Payload.Convert()
		if conv.TaskID == "" {
			return Outcome{Reply: "Which task should I put on the calendar?"}
		}
		return i.apply(ctx, req, &action.Action{Type: action.TypeConvertTaskToEvent, Payload: conv})

	case action.TypeClarify:
		question := prop.Payload.ClarificationQuestion
		if question == "" {
			question = MsgUnclear
		}
		return Outcome{Reply: question}

	default:
		// chat and anything unrecognized: surface the reply text.
		reply := prop.Payload.Response
		if reply == "" {
			reply = MsgUnclear
		}
		i.persistDirectReply(ctx, req, reply)
		return Outcome{Reply: reply}
	}
}

// proposeOrApply executes immediately when the payload is complete and
// otherwise parks a pending action with the proposal's confirmation
// message.
func (i *Interpreter) proposeOrApply(ctx context.Context, req Request, prop *action.Proposal, execType action.Type, payload action.Payload, complete bool) Outcome {
	if complete {
		return i.apply(ctx, req, &action.Action{Type: execType, Payload: payload})
	}
	return i.setPending(req, execType, payload, prop.ConfirmationMessage)
}

func (i *Interpreter) apply(ctx context.Context, req Request, act *action.Action) Outcome {
	summary, err := i.exec.Apply(ctx, act, req.IdempotencyKey)
	if err != nil {
		i.logger.Error("executing %s for conversation %s: %v", act.Type, req.ConversationID, err)
		return Outcome{Reply: MsgGenericFailure}
	}
	return Outcome{Reply: summary, Executed: true}
}

func (i *Interpreter) setPending(req Request, execType action.Type, payload action.Payload, confirmation string) Outcome {
	if confirmation == "" {
		confirmation = "Should I go ahead with that?"
	}
	pa := &pending.Action{
		Type:                execType,
		Payload:             payload,
		ConfirmationMessage: confirmation,
	}
	if err := i.pending.Set(req.ConversationID, pa); err != nil {
		i.logger.Error("setting pending action for conversation %s: %v", req.ConversationID, err)
		return Outcome{Reply: MsgPendingExists}
	}
	return Outcome{Reply: confirmation, Pending: pa}
}

func (i *Interpreter) showWishlist(ctx context.Context, req Request) Outcome {
	target := ResolveTarget(req.Message, req.Roster, req.Self)
	if target == nil {
		return Outcome{Reply: MsgGenericFailure}
	}

	filter := entity.WishlistFilter{FamilyMemberID: target.ID}
	if req.Self != nil {
		filter.RequesterID = req.Self.ID
	}
	items, err := i.reads.FilterWishlistItems(ctx, filter)
	if err != nil {
		if apperrors.StatusOf(err) == http.StatusForbidden {
			return Outcome{Reply: MsgWishlistProtected}
		}
		i.logger.Error("fetching wishlist for %s: %v", target.ID, err)
		return Outcome{Reply: MsgGenericFailure}
	}

	if len(items) == 0 {
		return Outcome{Reply: fmt.Sprintf("%s's wishlist is empty.", target.Name)}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s's wishlist:\n", target.Name)
	for _, it := range items {
		if it.URL != "" {
			fmt.Fprintf(&sb, "- %s (%s)\n", it.Name, it.URL)
		} else {
			fmt.Fprintf(&sb, "- %s\n", it.Name)
		}
	}
	return Outcome{Reply: strings.TrimRight(sb.String(), "\n")}
}

func (i *Interpreter) showUpcomingEvents(ctx context.Context, req Request) Outcome {
	events, err := i.reads.FilterEvents(ctx, entity.EventFilter{
		FamilyID: req.FamilyID,
		From:     i.now().Format(time.RFC3339),
	})
	if err != nil {
		i.logger.Error("fetching events for family %s: %v", req.FamilyID, err)
		return Outcome{Reply: MsgGenericFailure}
	}
	if len(events) == 0 {
		return Outcome{Reply: "Nothing on the calendar coming up."}
	}

	var sb strings.Builder
	sb.WriteString("Upcoming events:\n")
	for _, ev := range events {
		line := fmt.Sprintf("- %s (%s)", ev.Title, formatWhen(ev.StartTime))
		if ev.Location != "" {
			line += " @ " + ev.Location
		}
		sb.WriteString(line + "\n")
	}
	return Outcome{Reply: strings.TrimRight(sb.String(), "\n")}
}

func (i *Interpreter) showTasks(ctx context.Context, req Request) Outcome {
	tasks, err := i.reads.FilterTasks(ctx, entity.TaskFilter{FamilyID: req.FamilyID})
	if err != nil {
		i.logger.Error("fetching tasks for family %s: %v", req.FamilyID, err)
		return Outcome{Reply: MsgGenericFailure}
	}
	if len(tasks) == 0 {
		return Outcome{Reply: "The task list is empty."}
	}

	var sb strings.Builder
	sb.WriteString("Tasks:\n")
	for _, t := range tasks {
		mark := ""
		if t.Status == "done" {
			mark = " (done)"
		}
		fmt.Fprintf(&sb, "- %s%s\n", t.Title, mark)
	}
	return Outcome{Reply: strings.TrimRight(sb.String(), "\n")}
}

// persistDirectReply mirrors a plain chat reply into the conversation
// when it is a direct conversation with an AI-role member. Best effort:
// failures are logged, never surfaced.
func (i *Interpreter) persistDirectReply(ctx context.Context, req Request, reply string) {
	if req.ConversationID == "" {
		return
	}
	conv, err := i.reads.GetConversation(ctx, req.ConversationID)
	if err != nil || conv.Type != "direct" {
		return
	}
	var aiMember *entity.FamilyMember
	for idx := range req.Roster {
		if req.Roster[idx].Role == "ai" {
			aiMember = &req.Roster[idx]
			break
		}
	}
	if aiMember == nil {
		return
	}
	_, err = i.reads.CreateChatMessage(ctx, entity.ChatMessage{
		ConversationID: req.ConversationID,
		SenderID:       aiMember.ID,
		Role:           "assistant",
		Content:        reply,
	}, "")
	if err != nil {
		i.logger.Error("persisting direct reply for conversation %s: %v", req.ConversationID, err)
	}
}

func formatWhen(rfc3339 string) string {
	t, err := time.Parse(time.RFC3339, rfc3339)
	if err != nil {
		return rfc3339
	}
	return t.Format("Mon Jan 2 15:04")
}
