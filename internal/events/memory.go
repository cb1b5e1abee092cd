package events

import (
	"context"
	"errors"
	"sync"

	"todos-api/internal/todo"
)

// MemoryPublisher 使用 channel 在进程内传递事件，主要用于测试和单机部署。
type MemoryPublisher struct {
	ch     chan Event
	mu     sync.Mutex
	closed bool
}

// NewMemoryPublisher 创建一个带缓冲的内存发布器。
func NewMemoryPublisher(size int) *MemoryPublisher {
	if size <= 0 {
		size = 64
	}
	return &MemoryPublisher{ch: make(chan Event, size)}
}

// PublishTodoAdded 将事件放入缓冲区，缓冲区满时阻塞直到 ctx 结束。
func (p *MemoryPublisher) PublishTodoAdded(ctx context.Context, item todo.Todo) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("事件通道已关闭")
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.ch <- NewTodoAdded(item):
		return nil
	}
}

// Events 返回只读事件通道，Close 后通道会被关闭。
func (p *MemoryPublisher) Events() <-chan Event {
	return p.ch
}

// Close 关闭事件通道。
func (p *MemoryPublisher) Close() error {
	p.mu.Lock()
	if !p.closed {
		close(p.ch)
		p.closed = true
	}
	p.mu.Unlock()
	return nil
}
