package todo

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	xerrors "todos-api/internal/errors"
	"todos-api/pkg/logger"
)

// MaxNameLength 是名称允许的最大长度（按字符计算）。
const MaxNameLength = 255

// ResultStatus 是 Service 返回信封中的状态。
type ResultStatus string

const (
	ResultOK      ResultStatus = "ok"
	ResultCreated ResultStatus = "created"
)

// Result 是 Service 对存储结果的包装。
type Result struct {
	Status ResultStatus `json:"status"`
	Todos  []Todo       `json:"todos,omitempty"`
	Todo   *Todo        `json:"todo,omitempty"`
}

// HTTPStatus 将信封状态映射为 HTTP 状态码。
func (r *Result) HTTPStatus() int {
	if r != nil && r.Status == ResultCreated {
		return http.StatusCreated
	}
	return http.StatusOK
}

// Publisher 负责在新增待办后发布事件。
type Publisher interface {
	PublishTodoAdded(ctx context.Context, todo Todo) error
}

// Observer 接收领域事件，用于指标统计。
type Observer interface {
	TodoAdded(todo Todo)
}

// Service 包装 Store，负责校验并把结果转换为 API 信封。
type Service struct {
	store     Store
	publisher Publisher
	observer  Observer
	validate  *validator.Validate
	log       *slog.Logger
}

// ServiceOption 定义可选配置。
type ServiceOption func(*Service)

// WithPublisher 配置事件发布器。
func WithPublisher(p Publisher) ServiceOption {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithObserver 配置领域事件观察者。
func WithObserver(o Observer) ServiceOption {
	return func(s *Service) {
		s.observer = o
	}
}

// WithServiceLogger 指定日志输出。
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// NewService 构造待办服务。
func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:    store,
		validate: validator.New(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.log == nil {
		s.log = logger.Named("todo")
	}
	return s
}

type addTodoInput struct {
	Name string `validate:"required,max=255"`
}

// GetTodos 返回全部待办，信封状态为 ok。
func (s *Service) GetTodos(ctx context.Context) (*Result, error) {
	if s.store == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "待办存储未初始化")
	}
	todos, err := s.store.GetTodos(ctx)
	if err != nil {
		return nil, err
	}
	if todos == nil {
		todos = []Todo{}
	}
	return &Result{Status: ResultOK, Todos: todos}, nil
}

// AddTodo 校验名称后追加待办，信封状态为 created。
func (s *Service) AddTodo(ctx context.Context, name string) (*Result, error) {
	if s.store == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "待办存储未初始化")
	}
	name = strings.TrimSpace(name)
	if err := s.validateName(name); err != nil {
		return nil, err
	}

	todo, err := s.store.AddTodo(ctx, name)
	if err != nil {
		return nil, err
	}

	if s.observer != nil {
		s.observer.TodoAdded(todo)
	}
	// 待办已经写入，发布失败只记录日志。
	if s.publisher != nil {
		if err := s.publisher.PublishTodoAdded(ctx, todo); err != nil {
			logger.FromContext(ctx).Error("发布 todo.added 事件失败",
				slog.Any("error", err),
				slog.String("name", todo.Name),
			)
		}
	}
	logger.Audit().Info("todo_added",
		slog.String("name", todo.Name),
		slog.String("status", string(todo.Status)),
	)
	return &Result{Status: ResultCreated, Todo: &todo}, nil
}

// Ping 检查底层存储的连通性，不支持探测的存储视为可用。
func (s *Service) Ping(ctx context.Context) error {
	if s.store == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "待办存储未初始化")
	}
	if pinger, ok := s.store.(Pinger); ok {
		return pinger.Ping(ctx)
	}
	return nil
}

// Close 释放存储资源。
func (s *Service) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

func (s *Service) validateName(name string) error {
	err := s.validate.Struct(addTodoInput{Name: name})
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !stdErrors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return xerrors.Wrap(CodeValidation, err, "名称校验失败")
	}
	switch fieldErrs[0].Tag() {
	case "required":
		return xerrors.New(CodeValidation, "名称不能为空", xerrors.WithMetadata("field", "name"))
	case "max":
		return xerrors.New(CodeValidation, fmt.Sprintf("名称长度不能超过 %d", MaxNameLength), xerrors.WithMetadata("field", "name"))
	default:
		return xerrors.Wrap(CodeValidation, err, "名称校验失败", xerrors.WithMetadata("field", "name"))
	}
}
