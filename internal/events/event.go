package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"todos-api/internal/todo"
)

// TypeTodoAdded 是新增待办事项的事件类型。
const TypeTodoAdded = "todo.added"

// Event 是对外发布的事件信封。
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Todo       todo.Todo `json:"todo"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewTodoAdded 构造 todo.added 事件。
func NewTodoAdded(item todo.Todo) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       TypeTodoAdded,
		Todo:       item.Clone(),
		OccurredAt: time.Now().UTC(),
	}
}

// Encode 将事件序列化为 JSON。
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher 在 todo.Publisher 的基础上增加资源释放。
type Publisher interface {
	todo.Publisher
	Close() error
}

// NopPublisher 丢弃全部事件，对应 events.driver=none。
type NopPublisher struct{}

// PublishTodoAdded 不做任何事情。
func (NopPublisher) PublishTodoAdded(context.Context, todo.Todo) error { return nil }

// Close 不做任何事情。
func (NopPublisher) Close() error { return nil }
