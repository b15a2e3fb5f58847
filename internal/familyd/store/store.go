package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrProtected = errors.New("wishlist is protected")
)

// Task is a task row.
type Task struct {
	ID          string
	FamilyID    string
	Title       string
	Description string
	AssignedTo  []string
	DueDate     *time.Time
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
	DeletedAt   *time.Time
}

// Event is a schedule event row.
type Event struct {
	ID              string
	FamilyID        string
	Title           string
	StartTime       time.Time
	EndTime         time.Time
	FamilyMemberIDs []string
	Location        string
	Category        string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// WishlistItem is a wishlist row.
type WishlistItem struct {
	ID             string
	FamilyMemberID string
	Name           string
	URL            string
	CreatedAt      time.Time
}

// Member is a family member row.
type Member struct {
	ID                string
	FamilyID          string
	UserID            string
	Name              string
	Role              string
	Phone             string
	Language          string
	WishlistProtected bool
}

// Conversation is a conversation row.
type Conversation struct {
	ID        string
	FamilyID  string
	Type      string
	MemberIDs []string
	UpdatedAt time.Time
}

// Message is a chat message row.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Role           string
	Content        string
	CreatedAt      time.Time
}

// Store handles all database operations for familyd.
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database connection.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Connect establishes a connection to the PostgreSQL database.
func Connect(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// CreateTask inserts a new task and returns it with a generated id.
func (s *Store) CreateTask(ctx context.Context, t Task) (*Task, error) {
	now := time.Now()
	t.ID = uuid.NewString()
	if t.Status == "" {
		t.Status = "todo"
	}
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, family_id, title, description, assigned_to, due_date, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, t.ID, t.FamilyID, t.Title, t.Description, idList(t.AssignedTo), t.DueDate, t.Status, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTask retrieves a task by id, including soft-deleted ones.
func (s *Store) GetTask(ctx context.Context, id string) (*Task, error) {
	t := &Task{}
	var assigned []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, family_id, title, description, assigned_to, due_date, status, created_at, updated_at, completed_at, deleted_at
		FROM tasks WHERE id = $1
	`, id).Scan(
		&t.ID, &t.FamilyID, &t.Title, &t.Description, &assigned, &t.DueDate,
		&t.Status, &t.CreatedAt, &t.UpdatedAt, &t.CompletedAt, &t.DeletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.AssignedTo = fromIDList(assigned)
	return t, nil
}

// UpdateTask applies a partial update: empty patch fields keep the
// current value. Moving status to "done" stamps completed_at.
func (s *Store) UpdateTask(ctx context.Context, id string, patch Task) (*Task, error) {
	current, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.DeletedAt != nil {
		return nil, ErrNotFound
	}

	if patch.Title != "" {
		current.Title = patch.Title
	}
	if patch.Description != "" {
		current.Description = patch.Description
	}
	if patch.AssignedTo != nil {
		current.AssignedTo = patch.AssignedTo
	}
	if patch.DueDate != nil {
		current.DueDate = patch.DueDate
	}
	if patch.Status != "" && patch.Status != current.Status {
		current.Status = patch.Status
		if patch.Status == "done" {
			now := time.Now()
			current.CompletedAt = &now
		} else {
			current.CompletedAt = nil
		}
	}
	current.UpdatedAt = time.Now()

	_, err = s.db.ExecContext(ctx, `
		UPDATE tasks
		SET title = $1, description = $2, assigned_to = $3, due_date = $4, status = $5, completed_at = $6, updated_at = $7
		WHERE id = $8
	`, current.Title, current.Description, idList(current.AssignedTo), current.DueDate,
		current.Status, current.CompletedAt, current.UpdatedAt, id)
	if err != nil {
		return nil, err
	}
	return current, nil
}

// DeleteTask soft-deletes a task.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	now := time.Now()
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = 'deleted', deleted_at = $1, updated_at = $2
		WHERE id = $3 AND deleted_at IS NULL
	`, now, now, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTasks retrieves a family's tasks, optionally filtered by status.
func (s *Store) ListTasks(ctx context.Context, familyID, status string) ([]*Task, error) {
	var rows *sql.Rows
	var err error

	if status != "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, family_id, title, description, assigned_to, due_date, status, created_at, updated_at, completed_at, deleted_at
			FROM tasks WHERE family_id = $1 AND status = $2 AND deleted_at IS NULL
			ORDER BY created_at DESC
		`, familyID, status)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, family_id, title, description, assigned_to, due_date, status, created_at, updated_at, completed_at, deleted_at
			FROM tasks WHERE family_id = $1 AND deleted_at IS NULL
			ORDER BY created_at DESC
		`, familyID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t := &Task{}
		var assigned []byte
		err := rows.Scan(
			&t.ID, &t.FamilyID, &t.Title, &t.Description, &assigned, &t.DueDate,
			&t.Status, &t.CreatedAt, &t.UpdatedAt, &t.CompletedAt, &t.DeletedAt,
		)
		if err != nil {
			return nil, err
		}
		t.AssignedTo = fromIDList(assigned)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// CreateEvent inserts a new schedule event.
func (s *Store) CreateEvent(ctx context.Context, e Event) (*Event, error) {
	now := time.Now()
	e.ID = uuid.NewString()
	e.CreatedAt = now
	e.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, family_id, title, start_time, end_time, family_member_ids, location, category, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, e.ID, e.FamilyID, e.Title, e.StartTime, e.EndTime, idList(e.FamilyMemberIDs), e.Location, e.Category, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetEvent retrieves an event by id.
func (s *Store) GetEvent(ctx context.Context, id string) (*Event, error) {
	e := &Event{}
	var memberIDs []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, family_id, title, start_time, end_time, family_member_ids, location, category, created_at, updated_at
		FROM events WHERE id = $1
	`, id).Scan(
		&e.ID, &e.FamilyID, &e.Title, &e.StartTime, &e.EndTime, &memberIDs,
		&e.Location, &e.Category, &e.CreatedAt, &e.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	e.FamilyMemberIDs = fromIDList(memberIDs)
	return e, nil
}

// UpdateEvent applies a partial update to an event.
func (s *Store) UpdateEvent(ctx context.Context, id string, patch Event) (*Event, error) {
	current, err := s.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Title != "" {
		current.Title = patch.Title
	}
	if !patch.StartTime.IsZero() {
		current.StartTime = patch.StartTime
	}
	if !patch.EndTime.IsZero() {
		current.EndTime = patch.EndTime
	}
	if patch.FamilyMemberIDs != nil {
		current.FamilyMemberIDs = patch.FamilyMemberIDs
	}
	if patch.Location != "" {
		current.Location = patch.Location
	}
	if patch.Category != "" {
		current.Category = patch.Category
	}
	current.UpdatedAt = time.Now()

	_, err = s.db.ExecContext(ctx, `
		UPDATE events
		SET title = $1, start_time = $2, end_time = $3, family_member_ids = $4, location = $5, category = $6, updated_at = $7
		WHERE id = $8
	`, current.Title, current.StartTime, current.EndTime, idList(current.FamilyMemberIDs),
		current.Location, current.Category, current.UpdatedAt, id)
	if err != nil {
		return nil, err
	}
	return current, nil
}

// DeleteEvent removes an event.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ListEvents retrieves a family's events, optionally bounded in time.
func (s *Store) ListEvents(ctx context.Context, familyID string, from, to *time.Time) ([]*Event, error) {
	query := `
		SELECT id, family_id, title, start_time, end_time, family_member_ids, location, category, created_at, updated_at
		FROM events WHERE family_id = $1`
	args := []interface{}{familyID}
	if from != nil {
		args = append(args, *from)
		query += ` AND end_time >= $2`
	}
	if to != nil {
		args = append(args, *to)
		if from != nil {
			query += ` AND start_time <= $3`
		} else {
			query += ` AND start_time <= $2`
		}
	}
	query += ` ORDER BY start_time ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		var memberIDs []byte
		err := rows.Scan(
			&e.ID, &e.FamilyID, &e.Title, &e.StartTime, &e.EndTime, &memberIDs,
			&e.Location, &e.Category, &e.CreatedAt, &e.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		e.FamilyMemberIDs = fromIDList(memberIDs)
		events = append(events, e)
	}
	return events, rows.Err()
}

// CreateWishlistItem inserts one wishlist entry.
func (s *Store) CreateWishlistItem(ctx context.Context, item WishlistItem) (*WishlistItem, error) {
	item.ID = uuid.NewString()
	item.CreatedAt = time.Now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wishlist_items (id, family_member_id, name, url, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, item.ID, item.FamilyMemberID, item.Name, item.URL, item.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// DeleteWishlistItem removes one wishlist entry.
func (s *Store) DeleteWishlistItem(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM wishlist_items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ListWishlistItems lists a member's wishlist. A protected list is only
// visible to its owner; other requesters get ErrProtected.
func (s *Store) ListWishlistItems(ctx context.Context, memberID, requesterID string) ([]*WishlistItem, error) {
	owner, err := s.GetMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if owner.WishlistProtected && requesterID != memberID {
		return nil, ErrProtected
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, family_member_id, name, url, created_at
		FROM wishlist_items WHERE family_member_id = $1
		ORDER BY created_at ASC
	`, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*WishlistItem
	for rows.Next() {
		it := &WishlistItem{}
		if err := rows.Scan(&it.ID, &it.FamilyMemberID, &it.Name, &it.URL, &it.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// CreateMember inserts a family member.
func (s *Store) CreateMember(ctx context.Context, m Member) (*Member, error) {
	m.ID = uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO members (id, family_id, user_id, name, role, phone, language, wishlist_protected)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, m.ID, m.FamilyID, m.UserID, m.Name, m.Role, m.Phone, m.Language, m.WishlistProtected)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMember retrieves a member by id.
func (s *Store) GetMember(ctx context.Context, id string) (*Member, error) {
	m := &Member{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, family_id, user_id, name, role, phone, language, wishlist_protected
		FROM members WHERE id = $1
	`, id).Scan(&m.ID, &m.FamilyID, &m.UserID, &m.Name, &m.Role, &m.Phone, &m.Language, &m.WishlistProtected)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// GetMemberByPhone resolves a member from a phone number (SMS channel).
func (s *Store) GetMemberByPhone(ctx context.Context, phone string) (*Member, error) {
	m := &Member{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, family_id, user_id, name, role, phone, language, wishlist_protected
		FROM members WHERE phone = $1
	`, phone).Scan(&m.ID, &m.FamilyID, &m.UserID, &m.Name, &m.Role, &m.Phone, &m.Language, &m.WishlistProtected)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListMembers lists a family's members.
func (s *Store) ListMembers(ctx context.Context, familyID string) ([]*Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, family_id, user_id, name, role, phone, language, wishlist_protected
		FROM members WHERE family_id = $1
		ORDER BY name ASC
	`, familyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*Member
	for rows.Next() {
		m := &Member{}
		if err := rows.Scan(&m.ID, &m.FamilyID, &m.UserID, &m.Name, &m.Role, &m.Phone, &m.Language, &m.WishlistProtected); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// CreateConversation inserts a conversation.
func (s *Store) CreateConversation(ctx context.Context, c Conversation) (*Conversation, error) {
	c.ID = uuid.NewString()
	c.UpdatedAt = time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, family_id, type, member_ids, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ID, c.FamilyID, c.Type, idList(c.MemberIDs), c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetConversation retrieves a conversation by id.
func (s *Store) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	c := &Conversation{}
	var memberIDs []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, family_id, type, member_ids, updated_at
		FROM conversations WHERE id = $1
	`, id).Scan(&c.ID, &c.FamilyID, &c.Type, &memberIDs, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.MemberIDs = fromIDList(memberIDs)
	return c, nil
}

// UpdateConversation applies a partial update to a conversation.
func (s *Store) UpdateConversation(ctx context.Context, id string, patch Conversation) (*Conversation, error) {
	current, err := s.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Type != "" {
		current.Type = patch.Type
	}
	if patch.MemberIDs != nil {
		current.MemberIDs = patch.MemberIDs
	}
	current.UpdatedAt = time.Now()

	_, err = s.db.ExecContext(ctx, `
		UPDATE conversations SET type = $1, member_ids = $2, updated_at = $3 WHERE id = $4
	`, current.Type, idList(current.MemberIDs), current.UpdatedAt, id)
	if err != nil {
		return nil, err
	}
	return current, nil
}

// CreateMessage persists one chat message.
func (s *Store) CreateMessage(ctx context.Context, m Message) (*Message, error) {
	m.ID = uuid.NewString()
	m.CreatedAt = time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, m.ID, m.ConversationID, m.SenderID, m.Role, m.Content, m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMessages lists a conversation's messages, oldest first.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, sender_id, role, content, created_at
		FROM messages WHERE conversation_id = $1
		ORDER BY created_at ASC
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		m := &Message{}
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// CheckIdempotencyKey returns the cached response for an already
// performed operation, or nil if the key is unseen.
func (s *Store) CheckIdempotencyKey(ctx context.Context, key string) ([]byte, error) {
	var response []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT response FROM idempotency_keys WHERE key = $1
	`, key).Scan(&response)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return response, nil
}

// StoreIdempotencyKey caches the result of an operation for replay.
func (s *Store) StoreIdempotencyKey(ctx context.Context, key string, response interface{}) error {
	jsonResponse, err := json.Marshal(response)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO idempotency_keys (key, response, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO NOTHING
	`, key, jsonResponse, time.Now())
	return err
}
