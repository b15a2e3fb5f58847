package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"hearth/internal/entity"
	"hearth/internal/familyd/store"
	"hearth/internal/logging"
)

// Server exposes the familyd REST API consumed by the entity clients.
type Server struct {
	store  *store.Store
	logger *logging.Logger
}

// New creates a new familyd server.
func New(st *store.Store, logger *logging.Logger) *Server {
	return &Server{store: st, logger: logger}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	v1 := r.Group("/v1")
	{
		v1.POST("/tasks", s.createTask)
		v1.POST("/tasks/bulk", s.bulkCreateTasks)
		v1.GET("/tasks", s.listTasks)
		v1.PATCH("/tasks/:id", s.updateTask)
		v1.DELETE("/tasks/:id", s.deleteTask)
		v1.POST("/tasks/:id/to-event", s.taskToEvent)

		v1.POST("/events", s.createEvent)
		v1.POST("/events/bulk", s.bulkCreateEvents)
		v1.GET("/events", s.listEvents)
		v1.PATCH("/events/:id", s.updateEvent)
		v1.DELETE("/events/:id", s.deleteEvent)
		v1.POST("/events/:id/to-task", s.eventToTask)

		v1.POST("/wishlist-items", s.createWishlistItem)
		v1.POST("/wishlist-items/bulk", s.bulkCreateWishlistItems)
		v1.GET("/wishlist-items", s.listWishlistItems)
		v1.DELETE("/wishlist-items/:id", s.deleteWishlistItem)

		v1.POST("/members", s.createMember)
		v1.GET("/members", s.listMembers)
		v1.GET("/members/:id", s.getMember)
		v1.GET("/members/by-phone/:phone", s.getMemberByPhone)

		v1.POST("/conversations", s.createConversation)
		v1.GET("/conversations/:id", s.getConversation)
		v1.PATCH("/conversations/:id", s.updateConversation)

		v1.POST("/messages", s.createMessage)
		v1.GET("/messages", s.listMessages)
	}
	return r
}

// replay checks the Idempotency-Key header and serves the cached
// response when the operation already ran. The bool reports whether the
// request is finished.
func (s *Server) replay(c *gin.Context) (string, bool) {
	key := c.GetHeader("Idempotency-Key")
	if key == "" {
		return "", false
	}
	cached, err := s.store.CheckIdempotencyKey(c.Request.Context(), key)
	if err != nil {
		s.logger.Error("Failed to check idempotency key: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return "", true
	}
	if cached != nil {
		s.logger.Info("Returning cached response for idempotency key %s", key)
		c.Data(http.StatusOK, "application/json", cached)
		return "", true
	}
	return key, false
}

func (s *Server) remember(c *gin.Context, key string, response interface{}) {
	if key == "" {
		return
	}
	if err := s.store.StoreIdempotencyKey(c.Request.Context(), key, response); err != nil {
		// The record was created; replay protection is best effort.
		s.logger.Error("Failed to store idempotency key: %v", err)
	}
}

func (s *Server) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, store.ErrProtected):
		c.JSON(http.StatusForbidden, gin.H{"error": "wishlist is protected"})
	default:
		s.logger.Error("Request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, msg string, args ...interface{}) {
	c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf(msg, args...)})
}

func parseTime(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// --- tasks ---

func taskRow(in entity.Task) (store.Task, error) {
	due, err := parseTime(in.DueDate)
	if err != nil {
		return store.Task{}, fmt.Errorf("due_date: %w", err)
	}
	return store.Task{
		FamilyID:    in.FamilyID,
		Title:       in.Title,
		Description: in.Description,
		AssignedTo:  in.AssignedTo,
		DueDate:     due,
		Status:      in.Status,
	}, nil
}

func taskDTO(t *store.Task) entity.Task {
	out := entity.Task{
		ID:          t.ID,
		FamilyID:    t.FamilyID,
		Title:       t.Title,
		Description: t.Description,
		AssignedTo:  t.AssignedTo,
		Status:      t.Status,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		CompletedAt: t.CompletedAt,
	}
	if t.DueDate != nil {
		out.DueDate = t.DueDate.Format(time.RFC3339)
	}
	return out
}

func (s *Server) createTask(c *gin.Context) {
	key, done := s.replay(c)
	if done {
		return
	}
	var in entity.Task
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid body: %v", err)
		return
	}
	if in.Title == "" {
		badRequest(c, "title is required")
		return
	}
	if in.FamilyID == "" {
		badRequest(c, "family_id is required")
		return
	}
	row, err := taskRow(in)
	if err != nil {
		badRequest(c, "%v", err)
		return
	}
	created, err := s.store.CreateTask(c.Request.Context(), row)
	if err != nil {
		s.respondError(c, err)
		return
	}
	out := taskDTO(created)
	s.remember(c, key, out)
	s.logger.Info("Created task %s for family %s: %s", created.ID, created.FamilyID, created.Title)
	c.JSON(http.StatusOK, out)
}

func (s *Server) bulkCreateTasks(c *gin.Context) {
	key, done := s.replay(c)
	if done {
		return
	}
	var in []entity.Task
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid body: %v", err)
		return
	}
	out := make([]entity.Task, 0, len(in))
	for _, item := range in {
		if item.Title == "" || item.FamilyID == "" {
			badRequest(c, "every task needs title and family_id")
			return
		}
		row, err := taskRow(item)
		if err != nil {
			badRequest(c, "%v", err)
			return
		}
		created, err := s.store.CreateTask(c.Request.Context(), row)
		if err != nil {
			s.respondError(c, err)
			return
		}
		out = append(out, taskDTO(created))
	}
	s.remember(c, key, out)
	c.JSON(http.StatusOK, out)
}

func (s *Server) listTasks(c *gin.Context) {
	familyID := c.Query("family_id")
	if familyID == "" {
		badRequest(c, "family_id is required")
		return
	}
	tasks, err := s.store.ListTasks(c.Request.Context(), familyID, c.Query("status"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	out := make([]entity.Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskDTO(t))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) updateTask(c *gin.Context) {
	key, done := s.replay(c)
	if done {
		return
	}
	var in entity.Task
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid body: %v", err)
		return
	}
	row, err := taskRow(in)
	if err != nil {
		badRequest(c, "%v", err)
		return
	}
	updated, err := s.store.UpdateTask(c.Request.Context(), c.Param("id"), row)
	if err != nil {
		s.respondError(c, err)
		return
	}
	out := taskDTO(updated)
	s.remember(c, key, out)
	c.JSON(http.StatusOK, out)
}

func (s *Server) deleteTask(c *gin.Context) {
	if err := s.store.DeleteTask(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) taskToEvent(c *gin.Context) {
	key, done := s.replay(c)
	if done {
		return
	}
	ev, err := s.store.TaskToEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	out := eventDTO(ev)
	s.remember(c, key, out)
	c.JSON(http.StatusOK, out)
}

// --- events ---

func eventRow(in entity.ScheduleEvent) (store.Event, error) {
	start, err := parseTime(in.StartTime)
	if err != nil {
		return store.Event{}, fmt.Errorf("start_time: %w", err)
	}
	end, err := parseTime(in.EndTime)
	if err != nil {
		return store.Event{}, fmt.Errorf("end_time: %w", err)
	}
	row := store.Event{
		FamilyID:        in.FamilyID,
		Title:           in.Title,
		FamilyMemberIDs: in.FamilyMemberIDs,
		Location:        in.Location,
		Category:        in.Category,
	}
	if start != nil {
		row.StartTime = *start
	}
	if end != nil {
		row.EndTime = *end
	}
	return row, nil
}

func eventDTO(e *store.Event) entity.ScheduleEvent {
	return entity.ScheduleEvent{
		ID:              e.ID,
		FamilyID:        e.FamilyID,
		Title:           e.Title,
		StartTime:       e.StartTime.Format(time.RFC3339),
		EndTime:         e.EndTime.Format(time.RFC3339),
		FamilyMemberIDs: e.FamilyMemberIDs,
		Location:        e.Location,
		Category:        e.Category,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

func (s *Server) createEvent(c *gin.Context) {
	key, done := s.replay(c)
	if done {
		return
	}
	var in entity.ScheduleEvent
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid body: %v", err)
		return
	}
	if in.Title == "" {
		badRequest(c, "title is required")
		return
	}
	if in.FamilyID == "" {
		badRequest(c, "family_id is required")
		return
	}
	if in.StartTime == "" || in.EndTime == "" {
		badRequest(c, "start_time and end_time are required")
		return
	}
	row, err := eventRow(in)
	if err != nil {
		badRequest(c, "%v", err)
		return
	}
	created, err := s.store.CreateEvent(c.Request.Context(), row)
	if err != nil {
		s.respondError(c, err)
		return
	}
	out := eventDTO(created)
	s.remember(c, key, out)
	s.logger.Info("Created event %s for family %s: %s", created.ID, created.FamilyID, created.Title)
	c.JSON(http.StatusOK, out)
}

func (s *Server) bulkCreateEvents(c *gin.Context) {
	key, done := s.replay(c)
	if done {
		return
	}
	var in []entity.ScheduleEvent
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid body: %v", err)
		return
	}
	out := make([]entity.ScheduleEvent, 0, len(in))
	for _, item := range in {
		if item.Title == "" || item.FamilyID == "" || item.StartTime == "" || item.EndTime == "" {
			badRequest(c, "every event needs title, family_id, start_time and end_time")
			return
		}
		row, err := eventRow(item)
		if err != nil {
			badRequest(c, "%v", err)
			return
		}
		created, err := s.store.CreateEvent(c.Request.Context(), row)
		if err != nil {
			s.respondError(c, err)
			return
		}
		out = append(out, eventDTO(created))
	}
	s.remember(c, key, out)
	c.JSON(http.StatusOK, out)
}

func (s *Server) listEvents(c *gin.Context) {
	familyID := c.Query("family_id")
	if familyID == "" {
		badRequest(c, "family_id is required")
		return
	}
	from, err := parseTime(c.Query("from"))
	if err != nil {
		badRequest(c, "from: %v", err)
		return
	}
	to, err := parseTime(c.Query("to"))
	if err != nil {
		badRequest(c, "to: %v", err)
		return
	}
	events, err := s.store.ListEvents(c.Request.Context(), familyID, from, to)
	if err != nil {
		s.respondError(c, err)
		return
	}
	out := make([]entity.ScheduleEvent, 0, len(events))
	for _, e := range events {
		out = append(out, eventDTO(e))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) updateEvent(c *gin.Context) {
	key, done := s.replay(c)
	if done {
		return
	}
	var in entity.ScheduleEvent
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid body: %v", err)
		return
	}
	row, err := eventRow(in)
	if err != nil {
		badRequest(c, "%v", err)
		return
	}
	updated, err := s.store.UpdateEvent(c.Request.Context(), c.Param("id"), row)
	if err != nil {
		s.respondError(c, err)
		return
	}
	out := eventDTO(updated)
	s.remember(c, key, out)
	c.JSON(http.StatusOK, out)
}

func (s *Server) deleteEvent(c *gin.Context) {
	if err := s.store.DeleteEvent(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) eventToTask(c *gin.Context) {
	key, done := s.replay(c)
	if done {
		return
	}
	task, err := s.store.EventToTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	out := taskDTO(task)
	s.remember(c, key, out)
	c.JSON(http.StatusOK, out)
}

// --- wishlist ---

func wishlistDTO(w *store.WishlistItem) entity.WishlistItem {
	return entity.WishlistItem{
		ID:             w.ID,
		FamilyMemberID: w.FamilyMemberID,
		Name:           w.Name,
		URL:            w.URL,
		CreatedAt:      w.CreatedAt,
	}
}

func (s *Server) createWishlistItem(c *gin.Context) {
	key, done := s.replay(c)
	if done {
		return
	}
	var in entity.WishlistItem
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid body: %v", err)
		return
	}
	if in.Name == "" {
		badRequest(c, "name is required")
		return
	}
	if in.FamilyMemberID == "" {
		badRequest(c, "family_member_id is required")
		return
	}
	created, err := s.store.CreateWishlistItem(c.Request.Context(), store.WishlistItem{
		FamilyMemberID: in.FamilyMemberID,
		Name:           in.Name,
		URL:            in.URL,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	out := wishlistDTO(created)
	s.remember(c, key, out)
	c.JSON(http.StatusOK, out)
}

func (s *Server) bulkCreateWishlistItems(c *gin.Context) {
	key, done := s.replay(c)
	if done {
		return
	}
	var in []entity.WishlistItem
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid body: %v", err)
		return
	}
	out := make([]entity.WishlistItem, 0, len(in))
	for _, item := range in {
		if item.Name == "" || item.FamilyMemberID == "" {
			badRequest(c, "every item needs name and family_member_id")
			return
		}
		created, err := s.store.CreateWishlistItem(c.Request.Context(), store.WishlistItem{
			FamilyMemberID: item.FamilyMemberID,
			Name:           item.Name,
			URL:            item.URL,
		})
		if err != nil {
			s.respondError(c, err)
			return
		}
		out = append(out, wishlistDTO(created))
	}
	s.remember(c, key, out)
	c.JSON(http.StatusOK, out)
}

func (s *Server) listWishlistItems(c *gin.Context) {
	memberID := c.Query("family_member_id")
	if memberID == "" {
		badRequest(c, "family_member_id is required")
		return
	}
	items, err := s.store.ListWishlistItems(c.Request.Context(), memberID, c.Query("requester_id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	out := make([]entity.WishlistItem, 0, len(items))
	for _, it := range items {
		out = append(out, wishlistDTO(it))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) deleteWishlistItem(c *gin.Context) {
	if err := s.store.DeleteWishlistItem(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- members ---

func memberDTO(m *store.Member) entity.FamilyMember {
	return entity.FamilyMember{
		ID:                m.ID,
		FamilyID:          m.FamilyID,
		UserID:            m.UserID,
		Name:              m.Name,
		Role:              m.Role,
		Phone:             m.Phone,
		Language:          m.Language,
		WishlistProtected: m.WishlistProtected,
	}
}

func (s *Server) createMember(c *gin.Context) {
	var in entity.FamilyMember
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid body: %v", err)
		return
	}
	if in.Name == "" {
		badRequest(c, "name is required")
		return
	}
	if in.FamilyID == "" {
		badRequest(c, "family_id is required")
		return
	}
	created, err := s.store.CreateMember(c.Request.Context(), store.Member{
		FamilyID:          in.FamilyID,
		UserID:            in.UserID,
		Name:              in.Name,
		Role:              in.Role,
		Phone:             in.Phone,
		Language:          in.Language,
		WishlistProtected: in.WishlistProtected,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, memberDTO(created))
}

func (s *Server) listMembers(c *gin.Context) {
	familyID := c.Query("family_id")
	if familyID == "" {
		badRequest(c, "family_id is required")
		return
	}
	members, err := s.store.ListMembers(c.Request.Context(), familyID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	out := make([]entity.FamilyMember, 0, len(members))
	for _, m := range members {
		out = append(out, memberDTO(m))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getMember(c *gin.Context) {
	m, err := s.store.GetMember(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, memberDTO(m))
}

func (s *Server) getMemberByPhone(c *gin.Context) {
	m, err := s.store.GetMemberByPhone(c.Request.Context(), c.Param("phone"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, memberDTO(m))
}

// --- conversations and messages ---

func conversationDTO(cv *store.Conversation) entity.Conversation {
	return entity.Conversation{
		ID:        cv.ID,
		FamilyID:  cv.FamilyID,
		Type:      cv.Type,
		MemberIDs: cv.MemberIDs,
		UpdatedAt: cv.UpdatedAt,
	}
}

func (s *Server) createConversation(c *gin.Context) {
	var in entity.Conversation
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid body: %v", err)
		return
	}
	if in.FamilyID == "" {
		badRequest(c, "family_id is required")
		return
	}
	if in.Type == "" {
		in.Type = "family"
	}
	created, err := s.store.CreateConversation(c.Request.Context(), store.Conversation{
		FamilyID:  in.FamilyID,
		Type:      in.Type,
		MemberIDs: in.MemberIDs,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conversationDTO(created))
}

func (s *Server) getConversation(c *gin.Context) {
	cv, err := s.store.GetConversation(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conversationDTO(cv))
}

func (s *Server) updateConversation(c *gin.Context) {
	var in entity.Conversation
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid body: %v", err)
		return
	}
	updated, err := s.store.UpdateConversation(c.Request.Context(), c.Param("id"), store.Conversation{
		Type:      in.Type,
		MemberIDs: in.MemberIDs,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conversationDTO(updated))
}

func messageDTO(m *store.Message) entity.ChatMessage {
	return entity.ChatMessage{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Role:           m.Role,
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
	}
}

func (s *Server) createMessage(c *gin.Context) {
	key, done := s.replay(c)
	if done {
		return
	}
	var in entity.ChatMessage
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid body: %v", err)
		return
	}
	if in.ConversationID == "" {
		badRequest(c, "conversation_id is required")
		return
	}
	if in.Content == "" {
		badRequest(c, "content is required")
		return
	}
	if in.Role == "" {
		in.Role = "user"
	}
	created, err := s.store.CreateMessage(c.Request.Context(), store.Message{
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		Role:           in.Role,
		Content:        in.Content,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	out := messageDTO(created)
	s.remember(c, key, out)
	c.JSON(http.StatusOK, out)
}

func (s *Server) listMessages(c *gin.Context) {
	conversationID := c.Query("conversation_id")
	if conversationID == "" {
		badRequest(c, "conversation_id is required")
		return
	}
	msgs, err := s.store.ListMessages(c.Request.Context(), conversationID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	out := make([]entity.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageDTO(m))
	}
	c.JSON(http.StatusOK, out)
}
