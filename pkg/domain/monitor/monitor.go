// Package monitor defines the Monitor bounded context.
// A Task binds one chat message to one game server; the reconciliation loop
// keeps the message showing that server's current status until the message
// or its channel disappears.
package monitor

import (
	"context"
	"time"

	"github.com/sipeed/picomon/pkg/domain"
	"github.com/sipeed/picomon/pkg/render"
)

// ---------------------------------------------------------------------------
// Task: the unit of durable state
// ---------------------------------------------------------------------------

// Task is a persisted monitor. Its identity fields never change after
// creation; only the content of the referenced chat message does.
type Task struct {
	ID        domain.EntityID `json:"id"`
	ScopeID   string          `json:"scope_id"`
	ChannelID string          `json:"channel_id"`
	MessageID string          `json:"message_id"`
	GameType  string          `json:"game_type"`
	Host      string          `json:"host"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewTask builds an unsaved task. The store assigns ID and CreatedAt.
func NewTask(scopeID, channelID, messageID, gameType, host string) *Task {
	return &Task{
		ScopeID:   scopeID,
		ChannelID: channelID,
		MessageID: messageID,
		GameType:  gameType,
		Host:      host,
	}
}

// Handles returns the chat coordinates of the monitored message.
func (t *Task) Handles() Handles {
	return Handles{ChannelID: t.ChannelID, MessageID: t.MessageID}
}

// Handles identifies exactly one message on the messaging surface.
type Handles struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

// ---------------------------------------------------------------------------
// Repository: persistence port
// ---------------------------------------------------------------------------

// Repository is the durable collection of tasks. Each call is independently
// atomic; no operation spans multiple calls.
type Repository interface {
	// Insert assigns an ID, persists the task and returns the ID. It fails
	// with ErrDuplicateHandle if another task holds the same handles.
	Insert(ctx context.Context, task *Task) (domain.EntityID, error)
	// ListAll returns every task.
	ListAll(ctx context.Context) ([]*Task, error)
	// ListByScope returns the tasks owned by one tenant.
	ListByScope(ctx context.Context, scopeID string) ([]*Task, error)
	// CountByScope returns len(ListByScope(scopeID)).
	CountByScope(ctx context.Context, scopeID string) (int, error)
	// DeleteByID removes a task. Deleting an absent task is not an error.
	DeleteByID(ctx context.Context, id domain.EntityID) error
	// DeleteByHandles removes the task bound to a message. Idempotent.
	DeleteByHandles(ctx context.Context, channelID, messageID string) error
}

// ---------------------------------------------------------------------------
// Surface: messaging port
// ---------------------------------------------------------------------------

// Surface is the chat platform as seen by the reconciler: it can replace
// the content of an existing message.
type Surface interface {
	// Push replaces the content of the message at (channelID, messageID).
	// An error matching ErrHandleInvalid means the channel or message can no
	// longer be addressed; any other error is transient.
	Push(ctx context.Context, channelID, messageID string, card render.Card) error
}

// ---------------------------------------------------------------------------
// Query specifications
// ---------------------------------------------------------------------------

// InScope matches the tasks owned by one tenant.
func InScope(scopeID string) domain.Specification[Task] {
	return domain.SpecFunc[Task](func(t *Task) bool { return t.ScopeID == scopeID })
}

// AtHandles matches the task bound to one message.
func AtHandles(channelID, messageID string) domain.Specification[Task] {
	return domain.SpecFunc[Task](func(t *Task) bool {
		return t.ChannelID == channelID && t.MessageID == messageID
	})
}
