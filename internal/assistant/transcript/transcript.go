package transcript

import (
	"context"
	"encoding/json"
	"fmt"
)

const keyPrefix = "hearth:transcript:"

// Turn is one rendered conversation turn, oldest first. The transcript
// is a convenience mirror for resuming a chat; familyd owns the
// authoritative messages. Action carries the proposal attached to an
// assistant turn, so a reloaded transcript still shows what was waiting
// for confirmation.
type Turn struct {
	Role      string          `json:"role"` // "user" or "assistant"
	Content   string          `json:"content"`
	HasAction bool            `json:"has_action,omitempty"`
	Action    json.RawMessage `json:"action,omitempty"`
}

// Cache is the key-value side channel transcripts persist through.
// Load returns (nil, nil) when the key is absent.
type Cache interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// Log is one conversation's transcript: an explicit serializable value
// loaded on open and saved on every change, never ambient state.
type Log struct {
	cache Cache
	key   string
	turns []Turn
}

// Open loads the cached transcript for a conversation. A missing or
// unreadable cache entry yields an empty transcript, not an error; the
// cache is best-effort.
func Open(ctx context.Context, cache Cache, conversationID string) *Log {
	l := &Log{cache: cache, key: keyPrefix + conversationID}
	data, err := cache.Load(ctx, l.key)
	if err != nil || len(data) == 0 {
		return l
	}
	var turns []Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return l
	}
	l.turns = turns
	return l
}

// Append adds a turn and writes the transcript back to the cache.
func (l *Log) Append(ctx context.Context, turn Turn) error {
	l.turns = append(l.turns, turn)
	data, err := json.Marshal(l.turns)
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}
	if err := l.cache.Save(ctx, l.key, data); err != nil {
		return fmt.Errorf("failed to save transcript: %w", err)
	}
	return nil
}

// Turns returns the turns oldest first. The slice is shared; callers
// must not mutate it.
func (l *Log) Turns() []Turn {
	return l.turns
}

// Clear empties the transcript and removes the cache entry.
func (l *Log) Clear(ctx context.Context) error {
	l.turns = nil
	return l.cache.Delete(ctx, l.key)
}
