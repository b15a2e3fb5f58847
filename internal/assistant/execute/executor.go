package execute

import (
	"context"
	"fmt"
	"strings"

	"hearth/internal/assistant/action"
	"hearth/internal/entity"
	"hearth/internal/logging"
)

// Entities is the slice of the familyd API the executor needs. The
// production implementation is *entity.Client.
type Entities interface {
	CreateTask(ctx context.Context, task entity.Task, idemKey string) (*entity.Task, error)
	UpdateTask(ctx context.Context, id string, patch entity.Task, idemKey string) (*entity.Task, error)
	CreateEvent(ctx context.Context, ev entity.ScheduleEvent, idemKey string) (*entity.ScheduleEvent, error)
	CreateWishlistItem(ctx context.Context, item entity.WishlistItem, idemKey string) (*entity.WishlistItem, error)
	EventToTask(ctx context.Context, eventID, idemKey string) (*entity.Task, error)
	TaskToEvent(ctx context.Context, taskID, idemKey string) (*entity.ScheduleEvent, error)
}

// Executor applies a normalized action by calling the entity
// collaborators and reports a human-readable outcome message.
type Executor struct {
	entities Entities
	logger   *logging.Logger
	onUpdate func()
}

// New creates an executor. onUpdate, when non-nil, runs after every
// successful execution so the host surface can refresh; pass nil when
// nothing listens.
func New(entities Entities, logger *logging.Logger, onUpdate func()) *Executor {
	return &Executor{entities: entities, logger: logger, onUpdate: onUpdate}
}

// Apply executes one action. Batch payloads are applied row by row with
// no rollback: rows created before a failure stay created, and the
// error reports the whole action as failed. Proposal tags are rejected
// outright; the interpreter must normalize first.
func (e *Executor) Apply(ctx context.Context, act *action.Action, idemKey string) (string, error) {
	if act.Type.IsProposal() {
		return "", fmt.Errorf("executor received unnormalized action %q", act.Type)
	}

	summary, err := e.apply(ctx, act, idemKey)
	if err != nil {
		e.logger.Error("action %s failed: %v", act.Type, err)
		return "", err
	}
	if e.onUpdate != nil {
		e.onUpdate()
	}
	return summary, nil
}

func (e *Executor) apply(ctx context.Context, act *action.Action, idemKey string) (string, error) {
	switch act.Type {
	case action.TypeCreateTask:
		return e.createTask(ctx, act.Payload, idemKey)
	case action.TypeCreateEvent:
		return e.createEvent(ctx, act.Payload, idemKey)
	case action.TypeCreateEvents:
		return e.createEvents(ctx, act.Payload, idemKey)
	case action.TypeAddToWishlist:
		return e.addToWishlist(ctx, act.Payload, idemKey)
	case action.TypeAddWishlistItems:
		return e.addWishlistItems(ctx, act.Payload, idemKey)
	case action.TypeUpdateTaskStatus:
		return e.updateTaskStatus(ctx, act.Payload, idemKey)
	case action.TypeConvertEventToTask:
		return e.convertEventToTask(ctx, act.Payload, idemKey)
	case action.TypeConvertTaskToEvent:
		return e.convertTaskToEvent(ctx, act.Payload, idemKey)
	default:
		return "", fmt.Errorf("unknown action: %s", act.Type)
	}
}

func (e *Executor) createTask(ctx context.Context, p action.Payload, idemKey string) (string, error) {
	task, ok := p.(*action.Task)
	if !ok {
		return "", fmt.Errorf("create_task payload has type %T", p)
	}
	created, err := e.entities.CreateTask(ctx, taskRecord(task), idemKey)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Added task %q", created.Title), nil
}

func (e *Executor) createEvent(ctx context.Context, p action.Payload, idemKey string) (string, error) {
	ev, ok := p.(*action.Event)
	if !ok {
		return "", fmt.Errorf("create_event payload has type %T", p)
	}
	created, err := e.entities.CreateEvent(ctx, eventRecord(ev), idemKey)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Added %q to the calendar", created.Title), nil
}

func (e *Executor) createEvents(ctx context.Context, p action.Payload, idemKey string) (string, error) {
	batch, ok := p.(*action.Events)
	if !ok {
		return "", fmt.Errorf("create_multiple_events payload has type %T", p)
	}
	if len(batch.Events) == 0 {
		return "Nothing selected, nothing added.", nil
	}
	var titles []string
	for i, ev := range batch.Events {
		ev := ev
		created, err := e.entities.CreateEvent(ctx, eventRecord(&ev), rowKey(idemKey, i))
		if err != nil {
			return "", err
		}
		titles = append(titles, created.Title)
	}
	return "Created events: " + strings.Join(titles, ", "), nil
}

func (e *Executor) addToWishlist(ctx context.Context, p action.Payload, idemKey string) (string, error) {
	item, ok := p.(*action.WishlistItem)
	if !ok {
		return "", fmt.Errorf("add_to_wishlist payload has type %T", p)
	}
	created, err := e.entities.CreateWishlistItem(ctx, wishlistRecord(item), idemKey)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Added %q to the wishlist", created.Name), nil
}

func (e *Executor) addWishlistItems(ctx context.Context, p action.Payload, idemKey string) (string, error) {
	batch, ok := p.(*action.WishlistItems)
	if !ok {
		return "", fmt.Errorf("add_multiple_to_wishlist payload has type %T", p)
	}
	if len(batch.Items) == 0 {
		return "Nothing selected, nothing added.", nil
	}
	var names []string
	for i, it := range batch.Items {
		it := it
		created, err := e.entities.CreateWishlistItem(ctx, wishlistRecord(&it), rowKey(idemKey, i))
		if err != nil {
			return "", err
		}
		names = append(names, created.Name)
	}
	return "Added wishlist items: " + strings.Join(names, ", "), nil
}

func (e *Executor) updateTaskStatus(ctx context.Context, p action.Payload, idemKey string) (string, error) {
	su, ok := p.(*action.StatusUpdate)
	if !ok {
		return "", fmt.Errorf("update_task_status payload has type %T", p)
	}
	updated, err := e.entities.UpdateTask(ctx, su.ID, entity.Task{Status: su.Status}, idemKey)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Marked %q as %s", updated.Title, updated.Status), nil
}

func (e *Executor) convertEventToTask(ctx context.Context, p action.Payload, idemKey string) (string, error) {
	conv, ok := p.(*action.Convert)
	if !ok {
		return "", fmt.Errorf("convert_event_to_task payload has type %T", p)
	}
	task, err := e.entities.EventToTask(ctx, conv.EventID, idemKey)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Turned the event into task %q", task.Title), nil
}

func (e *Executor) convertTaskToEvent(ctx context.Context, p action.Payload, idemKey string) (string, error) {
	conv, ok := p.(*action.Convert)
	if !ok {
		return "", fmt.Errorf("convert_task_to_event payload has type %T", p)
	}
	ev, err := e.entities.TaskToEvent(ctx, conv.TaskID, idemKey)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Put %q on the calendar", ev.Title), nil
}

// rowKey derives a per-row idempotency key so replaying a batch skips
// rows that already went through.
func rowKey(idemKey string, i int) string {
	if idemKey == "" {
		return ""
	}
	return fmt.Sprintf("%s_%d", idemKey, i)
}

func taskRecord(t *action.Task) entity.Task {
	return entity.Task{
		FamilyID:    t.FamilyID,
		Title:       t.Title,
		Description: t.Description,
		AssignedTo:  t.AssignedTo,
		DueDate:     t.DueDate,
		Status:      t.Status,
	}
}

func eventRecord(e *action.Event) entity.ScheduleEvent {
	return entity.ScheduleEvent{
		FamilyID:        e.FamilyID,
		Title:           e.Title,
		StartTime:       e.StartTime,
		EndTime:         e.EndTime,
		FamilyMemberIDs: e.FamilyMemberIDs,
		Location:        e.Location,
		Category:        e.Category,
	}
}

func wishlistRecord(w *action.WishlistItem) entity.WishlistItem {
	return entity.WishlistItem{
		FamilyMemberID: w.FamilyMemberID,
		Name:           w.Name,
		URL:            w.URL,
	}
}
