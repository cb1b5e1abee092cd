package todo

import (
	"context"
	stdErrors "errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	xerrors "todos-api/internal/errors"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []Todo
	err    error
}

func (p *recordingPublisher) PublishTodoAdded(_ context.Context, todo Todo) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, todo)
	return p.err
}

type countingObserver struct{ added int }

func (o *countingObserver) TodoAdded(Todo) { o.added++ }

type failingStore struct{ err error }

func (f failingStore) GetTodos(context.Context) ([]Todo, error)      { return nil, f.err }
func (f failingStore) AddTodo(context.Context, string) (Todo, error) { return Todo{}, f.err }
func (f failingStore) Close() error                                  { return nil }
func (f failingStore) Ping(context.Context) error                    { return f.err }

func TestServiceEnvelopes(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryStore(DefaultSeed()...))

	list, err := svc.GetTodos(ctx)
	if err != nil {
		t.Fatalf("get todos: %v", err)
	}
	if list.Status != ResultOK || list.HTTPStatus() != http.StatusOK || len(list.Todos) != 2 {
		t.Fatalf("unexpected list result: %+v", list)
	}

	created, err := svc.AddTodo(ctx, "  Buy milk  ")
	if err != nil {
		t.Fatalf("add todo: %v", err)
	}
	if created.Status != ResultCreated || created.HTTPStatus() != http.StatusCreated {
		t.Fatalf("unexpected created result: %+v", created)
	}
	if created.Todo == nil || created.Todo.Name != "Buy milk" {
		t.Fatalf("unexpected todo: %+v", created.Todo)
	}
}

func TestServiceRejectsInvalidNames(t *testing.T) {
	svc := NewService(NewMemoryStore())
	cases := map[string]string{
		"empty":    "",
		"blank":    "   \t",
		"too long": strings.Repeat("x", MaxNameLength+1),
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.AddTodo(context.Background(), input)
			if !stdErrors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if xerrors.HTTPStatus(err) != http.StatusBadRequest {
				t.Fatalf("unexpected status: %d", xerrors.HTTPStatus(err))
			}
		})
	}

	todos, _ := svc.GetTodos(context.Background())
	if len(todos.Todos) != 0 {
		t.Fatalf("invalid input must not reach the store: %+v", todos.Todos)
	}
}

func TestServicePublishesAndObserves(t *testing.T) {
	pub := &recordingPublisher{err: stdErrors.New("broker down")}
	obs := &countingObserver{}
	svc := NewService(NewMemoryStore(), WithPublisher(pub), WithObserver(obs))

	// 发布失败不影响新增结果。
	if _, err := svc.AddTodo(context.Background(), "x"); err != nil {
		t.Fatalf("publish failure must not fail add: %v", err)
	}
	if len(pub.events) != 1 || pub.events[0].Name != "x" {
		t.Fatalf("unexpected events: %+v", pub.events)
	}
	if obs.added != 1 {
		t.Fatalf("observer not notified")
	}
}

func TestServicePropagatesStoreErrors(t *testing.T) {
	storeErr := Unavailable(stdErrors.New("connection refused"), "连接失败")
	svc := NewService(failingStore{err: storeErr})

	if _, err := svc.GetTodos(context.Background()); !stdErrors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable, got %v", err)
	}
	if _, err := svc.AddTodo(context.Background(), "x"); !stdErrors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable, got %v", err)
	}
	if err := svc.Ping(context.Background()); !stdErrors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ping failure, got %v", err)
	}
}

func TestServiceWithoutStore(t *testing.T) {
	svc := NewService(nil)
	_, err := svc.GetTodos(context.Background())
	if xerrors.CodeOf(err) != xerrors.CodeInitializationFailure {
		t.Fatalf("unexpected error: %v", err)
	}
}
