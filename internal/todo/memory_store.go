package todo

import (
	"context"
	"sync"
)

// MemoryStore 以内存方式保存待办事项，进程退出后数据丢失。
type MemoryStore struct {
	mu    sync.RWMutex
	todos []Todo
}

// NewMemoryStore 创建 MemoryStore 并写入种子数据。
func NewMemoryStore(seed ...string) *MemoryStore {
	store := &MemoryStore{todos: make([]Todo, 0, len(seed))}
	for _, name := range seed {
		store.todos = append(store.todos, New(name))
	}
	return store
}

// GetTodos 按插入顺序返回当前列表的副本。
func (m *MemoryStore) GetTodos(_ context.Context) ([]Todo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]Todo, len(m.todos))
	for i, todo := range m.todos {
		result[i] = todo.Clone()
	}
	return result, nil
}

// AddTodo 追加一条新记录并返回它。
func (m *MemoryStore) AddTodo(ctx context.Context, name string) (Todo, error) {
	if err := ctx.Err(); err != nil {
		return Todo{}, err
	}
	todo := New(name)
	m.mu.Lock()
	m.todos = append(m.todos, todo)
	m.mu.Unlock()
	return todo, nil
}

// Ping 对内存存储总是成功。
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close 对内存存储无需操作。
func (m *MemoryStore) Close() error { return nil }

var (
	_ Store  = (*MemoryStore)(nil)
	_ Pinger = (*MemoryStore)(nil)
)
