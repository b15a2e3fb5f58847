package interpret

import (
	"context"
	"errors"
	"strings"
	"testing"

	"hearth/internal/apperrors"
	"hearth/internal/assistant/action"
	"hearth/internal/assistant/pending"
	"hearth/internal/entity"
	"hearth/internal/logging"
)

type fakeReads struct {
	wishlist    []entity.WishlistItem
	wishlistErr error
	events      []entity.ScheduleEvent
	eventsErr   error
	tasks       []entity.Task
	tasksErr    error

	conversation *entity.Conversation
	messages     []entity.ChatMessage

	lastWishlistFilter entity.WishlistFilter
	lastEventFilter    entity.EventFilter
}

func (f *fakeReads) FilterWishlistItems(_ context.Context, filter entity.WishlistFilter) ([]entity.WishlistItem, error) {
	f.lastWishlistFilter = filter
	return f.wishlist, f.wishlistErr
}

func (f *fakeReads) FilterEvents(_ context.Context, filter entity.EventFilter) ([]entity.ScheduleEvent, error) {
	f.lastEventFilter = filter
	return f.events, f.eventsErr
}

func (f *fakeReads) FilterTasks(_ context.Context, filter entity.TaskFilter) ([]entity.Task, error) {
	return f.tasks, f.tasksErr
}

func (f *fakeReads) GetConversation(_ context.Context, id string) (*entity.Conversation, error) {
	if f.conversation == nil {
		return nil, errors.New("not found")
	}
	return f.conversation, nil
}

func (f *fakeReads) CreateChatMessage(_ context.Context, msg entity.ChatMessage, _ string) (*entity.ChatMessage, error) {
	f.messages = append(f.messages, msg)
	return &msg, nil
}

type fakeExec struct {
	applied []*action.Action
	keys    []string
	err     error
}

func (f *fakeExec) Apply(_ context.Context, act *action.Action, idemKey string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.applied = append(f.applied, act)
	f.keys = append(f.keys, idemKey)
	return "done: " + string(act.Type), nil
}

func newInterpreter(reads *fakeReads, exec *fakeExec) (*Interpreter, *pending.Store) {
	store := pending.NewStore()
	return New(reads, exec, store, logging.New("test")), store
}

func request() Request {
	return Request{
		ConversationID: "c1",
		FamilyID:       "f1",
		Message:        "add a task",
		Self:           &entity.FamilyMember{ID: "m1", Name: "Dana"},
		Roster: []entity.FamilyMember{
			{ID: "m1", Name: "Dana"},
			{ID: "m2", Name: "Max"},
		},
		IdempotencyKey: "idem_1",
	}
}

func proposal(at action.Type, payload action.RawPayload, confirm string) *action.Proposal {
	return &action.Proposal{ActionType: at, Payload: payload, ConfirmationMessage: confirm}
}

func TestInterpret_CompleteTaskAutoApplies(t *testing.T) {
	exec := &fakeExec{}
	i, store := newInterpreter(&fakeReads{}, exec)

	out := i.Interpret(context.Background(), request(), proposal(action.TypeProposeTask, action.RawPayload{
		Title:    "Buy milk",
		FamilyID: "f1",
		Status:   "todo",
		DueDate:  "2026-09-05T10:00:00Z",
	}, "Add it?"))

	if !out.Executed {
		t.Fatal("complete task should execute without confirmation")
	}
	if out.Pending != nil {
		t.Error("no pending action expected")
	}
	if len(exec.applied) != 1 || exec.applied[0].Type != action.TypeCreateTask {
		t.Fatalf("expected one create_task execution, got %+v", exec.applied)
	}
	if exec.keys[0] != "idem_1" {
		t.Errorf("idempotency key should flow through, got %s", exec.keys[0])
	}
	if store.Get("c1") != nil {
		t.Error("pending store should stay empty")
	}
}

func TestInterpret_IncompleteTaskParksPending(t *testing.T) {
	exec := &fakeExec{}
	i, store := newInterpreter(&fakeReads{}, exec)

	out := i.Interpret(context.Background(), request(), proposal(action.TypeProposeTask, action.RawPayload{
		Title: "Buy milk",
	}, "Add a task to buy milk?"))

	if out.Executed {
		t.Fatal("incomplete task must not execute")
	}
	if out.Pending == nil {
		t.Fatal("expected a pending action")
	}
	if out.Pending.Type != action.TypeCreateTask {
		t.Errorf("pending type must be the executable tag, got %s", out.Pending.Type)
	}
	if out.Reply != "Add a task to buy milk?" {
		t.Errorf("reply should be the confirmation message, got %q", out.Reply)
	}
	if len(exec.applied) != 0 {
		t.Errorf("executor must not run, got %d calls", len(exec.applied))
	}
	if store.Get("c1") == nil {
		t.Error("pending store should hold the action")
	}
}

func TestInterpret_TaskFamilyIDBackfilled(t *testing.T) {
	exec := &fakeExec{}
	i, _ := newInterpreter(&fakeReads{}, exec)

	// The completion endpoint left family_id empty; the request knows it.
	out := i.Interpret(context.Background(), request(), proposal(action.TypeProposeTask, action.RawPayload{
		Title:   "Buy milk",
		Status:  "todo",
		DueDate: "2026-09-05T10:00:00Z",
	}, ""))

	if !out.Executed {
		t.Fatal("task missing only family_id should still auto-apply")
	}
	task := exec.applied[0].Payload.(*action.Task)
	if task.FamilyID != "f1" {
		t.Errorf("family id should come from the request, got %q", task.FamilyID)
	}
}

func TestInterpret_ParkedTaskCarriesFamilyID(t *testing.T) {
	i, store := newInterpreter(&fakeReads{}, &fakeExec{})

	out := i.Interpret(context.Background(), request(), proposal(action.TypeProposeTask, action.RawPayload{
		Title: "Buy milk",
	}, "Add it?"))

	if out.Pending == nil {
		t.Fatal("expected a pending action")
	}
	if task := out.Pending.Payload.(*action.Task); task.FamilyID != "f1" {
		t.Errorf("parked payload should carry the family id, got %q", task.FamilyID)
	}
	if task := store.Get("c1").Payload.(*action.Task); task.FamilyID != "f1" {
		t.Errorf("stored payload should carry the family id, got %q", task.FamilyID)
	}
}

func TestInterpret_EventFamilyIDBackfilled(t *testing.T) {
	exec := &fakeExec{}
	i, _ := newInterpreter(&fakeReads{}, exec)

	out := i.Interpret(context.Background(), request(), proposal(action.TypeProposeEvent, action.RawPayload{
		Title:     "Swim",
		StartTime: "2026-09-05T16:00:00Z",
		EndTime:   "2026-09-05T17:00:00Z",
	}, ""))

	if !out.Executed {
		t.Fatal("event missing only family_id should still auto-apply")
	}
	if ev := exec.applied[0].Payload.(*action.Event); ev.FamilyID != "f1" {
		t.Errorf("family id should come from the request, got %q", ev.FamilyID)
	}
}

func TestInterpret_BatchAlwaysPending(t *testing.T) {
	exec := &fakeExec{}
	i, _ := newInterpreter(&fakeReads{}, exec)

	// Rows are individually complete; the batch still goes to review.
	out := i.Interpret(context.Background(), request(), proposal(action.TypeProposeEvents, action.RawPayload{
		Events: []action.Event{
			{Title: "Swim", FamilyID: "f1", StartTime: "2026-09-05T16:00:00Z", EndTime: "2026-09-05T17:00:00Z"},
			{Title: "Piano", FamilyID: "f1", StartTime: "2026-09-06T16:00:00Z", EndTime: "2026-09-06T17:00:00Z"},
		},
	}, "Add these 2 events?"))

	if out.Executed {
		t.Fatal("batch proposals must never auto-apply")
	}
	if out.Pending == nil || out.Pending.Type != action.TypeCreateEvents {
		t.Fatalf("expected pending create_multiple_events, got %+v", out.Pending)
	}
	if len(exec.applied) != 0 {
		t.Error("executor must not run for batch proposals")
	}
}

func TestInterpret_EventsFromChatNormalizes(t *testing.T) {
	i, _ := newInterpreter(&fakeReads{}, &fakeExec{})

	out := i.Interpret(context.Background(), request(), proposal(action.TypeProposeEventsChat, action.RawPayload{
		Events: []action.Event{{Title: "Swim"}},
	}, ""))

	if out.Pending == nil || out.Pending.Type != action.TypeCreateEvents {
		t.Fatalf("propose_multiple_events_from_chat should park create_multiple_events, got %+v", out.Pending)
	}
	if out.Reply == "" {
		t.Error("missing confirmation message should fall back to a default")
	}
}

func TestInterpret_SecondProposalCollides(t *testing.T) {
	i, _ := newInterpreter(&fakeReads{}, &fakeExec{})
	req := request()

	first := i.Interpret(context.Background(), req, proposal(action.TypeProposeTask, action.RawPayload{Title: "One"}, "Add One?"))
	if first.Pending == nil {
		t.Fatal("first proposal should park")
	}

	second := i.Interpret(context.Background(), req, proposal(action.TypeProposeTask, action.RawPayload{Title: "Two"}, "Add Two?"))
	if second.Pending != nil {
		t.Error("second proposal must not replace the pending action")
	}
	if second.Reply != MsgPendingExists {
		t.Errorf("expected pending-exists message, got %q", second.Reply)
	}
}

func TestInterpret_ExecutionFailure(t *testing.T) {
	exec := &fakeExec{err: errors.New("familyd down")}
	i, _ := newInterpreter(&fakeReads{}, exec)

	out := i.Interpret(context.Background(), request(), proposal(action.TypeProposeTask, action.RawPayload{
		Title: "Buy milk", FamilyID: "f1", Status: "todo", DueDate: "2026-09-05T10:00:00Z",
	}, ""))

	if out.Executed {
		t.Error("failed execution must not report as executed")
	}
	if out.Reply != MsgGenericFailure {
		t.Errorf("expected generic failure, got %q", out.Reply)
	}
}

func TestInterpret_ShowWishlist(t *testing.T) {
	reads := &fakeReads{wishlist: []entity.WishlistItem{
		{Name: "Bike", URL: "https://example.com/bike"},
		{Name: "Skates"},
	}}
	i, _ := newInterpreter(reads, &fakeExec{})

	req := request()
	req.Message = "what does Max want"
	out := i.Interpret(context.Background(), req, proposal(action.TypeShowWishlist, action.RawPayload{}, ""))

	if reads.lastWishlistFilter.FamilyMemberID != "m2" {
		t.Errorf("expected Max's wishlist (m2), got %s", reads.lastWishlistFilter.FamilyMemberID)
	}
	if reads.lastWishlistFilter.RequesterID != "m1" {
		t.Errorf("requester should be the sender, got %s", reads.lastWishlistFilter.RequesterID)
	}
	if !strings.Contains(out.Reply, "Bike") || !strings.Contains(out.Reply, "Skates") {
		t.Errorf("reply should list items, got %q", out.Reply)
	}
	if !strings.Contains(out.Reply, "https://example.com/bike") {
		t.Errorf("reply should include URLs, got %q", out.Reply)
	}
}

func TestInterpret_ShowWishlistProtected(t *testing.T) {
	reads := &fakeReads{wishlistErr: &apperrors.StatusError{Status: 403, Message: "wishlist is protected"}}
	i, _ := newInterpreter(reads, &fakeExec{})

	req := request()
	req.Message = "show Max's wishlist"
	out := i.Interpret(context.Background(), req, proposal(action.TypeShowWishlist, action.RawPayload{}, ""))

	if out.Reply != MsgWishlistProtected {
		t.Errorf("expected protected message, got %q", out.Reply)
	}
}

func TestInterpret_ShowWishlistEmpty(t *testing.T) {
	i, _ := newInterpreter(&fakeReads{}, &fakeExec{})

	req := request()
	req.Message = "show my wishlist"
	out := i.Interpret(context.Background(), req, proposal(action.TypeShowWishlist, action.RawPayload{}, ""))

	if !strings.Contains(out.Reply, "empty") {
		t.Errorf("expected empty-wishlist reply, got %q", out.Reply)
	}
}

func TestInterpret_ShowUpcomingEvents(t *testing.T) {
	reads := &fakeReads{events: []entity.ScheduleEvent{
		{Title: "Swim practice", StartTime: "2026-09-05T16:00:00Z", Location: "Pool"},
	}}
	i, _ := newInterpreter(reads, &fakeExec{})

	out := i.Interpret(context.Background(), request(), proposal(action.TypeShowUpcomingEvents, action.RawPayload{}, ""))

	if reads.lastEventFilter.FamilyID != "f1" {
		t.Errorf("expected family filter f1, got %s", reads.lastEventFilter.FamilyID)
	}
	if reads.lastEventFilter.From == "" {
		t.Error("upcoming events must be bounded from now")
	}
	if !strings.Contains(out.Reply, "Swim practice") || !strings.Contains(out.Reply, "Pool") {
		t.Errorf("reply should describe the event, got %q", out.Reply)
	}
}

func TestInterpret_ShowTasksEmpty(t *testing.T) {
	i, _ := newInterpreter(&fakeReads{}, &fakeExec{})
	out := i.Interpret(context.Background(), request(), proposal(action.TypeShowTasks, action.RawPayload{}, ""))
	if !strings.Contains(out.Reply, "empty") {
		t.Errorf("expected empty-list reply, got %q", out.Reply)
	}
}

func TestInterpret_StatusUpdateAutoApplies(t *testing.T) {
	exec := &fakeExec{}
	i, _ := newInterpreter(&fakeReads{}, exec)

	out := i.Interpret(context.Background(), request(), proposal(action.TypeUpdateTaskStatus, action.RawPayload{
		ID: "T9", Status: "done",
	}, ""))

	if !out.Executed {
		t.Fatal("complete status update should execute")
	}
	if len(exec.applied) != 1 || exec.applied[0].Type != action.TypeUpdateTaskStatus {
		t.Fatalf("expected update_task_status execution, got %+v", exec.applied)
	}
	su := exec.applied[0].Payload.(*action.StatusUpdate)
	if su.ID != "T9" || su.Status != "done" {
		t.Errorf("wrong payload: %+v", su)
	}
}

func TestInterpret_StatusUpdateIncompleteParks(t *testing.T) {
	exec := &fakeExec{}
	i, _ := newInterpreter(&fakeReads{}, exec)

	out := i.Interpret(context.Background(), request(), proposal(action.TypeUpdateTaskStatus, action.RawPayload{
		Status: "done",
	}, "Which task is finished?"))

	if out.Executed || out.Pending == nil {
		t.Fatalf("incomplete status update should park, got %+v", out)
	}
}

func TestInterpret_ConvertMissingIDAsksForIt(t *testing.T) {
	exec := &fakeExec{}
	i, _ := newInterpreter(&fakeReads{}, exec)

	out := i.Interpret(context.Background(), request(), proposal(action.TypeConvertEventToTask, action.RawPayload{}, ""))
	if out.Executed || out.Pending != nil {
		t.Fatal("conversion without an id must neither execute nor park")
	}
	if !strings.Contains(out.Reply, "Which event") {
		t.Errorf("expected a clarification question, got %q", out.Reply)
	}

	out = i.Interpret(context.Background(), request(), proposal(action.TypeConvertTaskToEvent, action.RawPayload{}, ""))
	if !strings.Contains(out.Reply, "Which task") {
		t.Errorf("expected a clarification question, got %q", out.Reply)
	}
	if len(exec.applied) != 0 {
		t.Error("executor must not run without an id")
	}
}

func TestInterpret_ConvertWithIDExecutes(t *testing.T) {
	exec := &fakeExec{}
	i, _ := newInterpreter(&fakeReads{}, exec)

	out := i.Interpret(context.Background(), request(), proposal(action.TypeConvertEventToTask, action.RawPayload{
		EventID: "e7",
	}, ""))

	if !out.Executed {
		t.Fatal("conversion with an id should execute")
	}
	if exec.applied[0].Type != action.TypeConvertEventToTask {
		t.Errorf("expected convert_event_to_task, got %s", exec.applied[0].Type)
	}
}

func TestInterpret_Clarify(t *testing.T) {
	i, _ := newInterpreter(&fakeReads{}, &fakeExec{})

	out := i.Interpret(context.Background(), request(), proposal(action.TypeClarify, action.RawPayload{
		ClarificationQuestion: "Whose wishlist do you mean?",
	}, ""))
	if out.Reply != "Whose wishlist do you mean?" {
		t.Errorf("expected the question verbatim, got %q", out.Reply)
	}

	out = i.Interpret(context.Background(), request(), proposal(action.TypeClarify, action.RawPayload{}, ""))
	if out.Reply != MsgUnclear {
		t.Errorf("empty question should fall back to the default, got %q", out.Reply)
	}
}

func TestInterpret_ChatPersistsDirectReply(t *testing.T) {
	reads := &fakeReads{conversation: &entity.Conversation{ID: "c1", Type: "direct"}}
	i, _ := newInterpreter(reads, &fakeExec{})

	req := request()
	req.Roster = append(req.Roster, entity.FamilyMember{ID: "ai1", Name: "Assistant", Role: "ai"})

	out := i.Interpret(context.Background(), req, proposal(action.TypeChat, action.RawPayload{
		Response: "Sure thing!",
	}, ""))

	if out.Reply != "Sure thing!" {
		t.Errorf("expected the chat response, got %q", out.Reply)
	}
	if len(reads.messages) != 1 {
		t.Fatalf("expected one persisted message, got %d", len(reads.messages))
	}
	msg := reads.messages[0]
	if msg.SenderID != "ai1" || msg.Role != "assistant" || msg.Content != "Sure thing!" {
		t.Errorf("wrong persisted message: %+v", msg)
	}
}

func TestInterpret_ChatFamilyConversationNotPersisted(t *testing.T) {
	reads := &fakeReads{conversation: &entity.Conversation{ID: "c1", Type: "family"}}
	i, _ := newInterpreter(reads, &fakeExec{})

	req := request()
	req.Roster = append(req.Roster, entity.FamilyMember{ID: "ai1", Role: "ai"})

	i.Interpret(context.Background(), req, proposal(action.TypeChat, action.RawPayload{Response: "Hi"}, ""))
	if len(reads.messages) != 0 {
		t.Errorf("family conversations must not be mirrored, got %d messages", len(reads.messages))
	}
}
