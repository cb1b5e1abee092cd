package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	xerrors "todos-api/internal/errors"
	gql "todos-api/internal/graphql"
	"todos-api/internal/observability/alerting"
	"todos-api/internal/observability/metrics"
	"todos-api/internal/todo"
	"todos-api/pkg/logger"
)

// Service 是 HTTP 层依赖的业务能力，由 todo.Service 实现。
type Service interface {
	gql.Service
	Ping(ctx context.Context) error
}

// Server 负责暴露 REST 与 GraphQL 接口。
type Server struct {
	addr    string
	svc     Service
	graphql http.Handler
	metrics *metrics.Registry
	alerts  alerting.Dispatcher
	log     *slog.Logger
}

// Option 定义可选配置。
type Option func(*Server)

// WithMetrics 启用请求指标与 /metrics 端点。
func WithMetrics(m *metrics.Registry) Option {
	return func(s *Server) { s.metrics = m }
}

// WithAlerts 设置告警分发器。
func WithAlerts(d alerting.Dispatcher) Option {
	return func(s *Server) { s.alerts = d }
}

// WithLogger 覆盖默认日志记录器。
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, svc Service, opts ...Option) (*Server, error) {
	if svc == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "待办服务未初始化")
	}
	s := &Server{addr: addr, svc: svc}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.log == nil {
		s.log = logger.Named("api")
	}
	handler, err := gql.NewHandler(svc, s.graphQLError)
	if err != nil {
		return nil, err
	}
	s.graphql = handler
	return s, nil
}

// Handler 返回挂载了全部路由与中间件的处理器。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/todos", s.instrument("/todos", http.HandlerFunc(s.handleTodos)))
	mux.Handle("/graphql", s.instrument("/graphql", s.graphql))
	mux.Handle("/healthz", s.instrument("/healthz", http.HandlerFunc(s.handleHealth)))
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	return withRequestID(mux)
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.log.Info("HTTP 服务已启动", slog.String("addr", s.addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// handleTodos 以 JSON 数组返回全部待办，新增只通过 GraphQL 暴露。
func (s *Server) handleTodos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		s.writeError(w, r, xerrors.New(xerrors.CodeInvalidArgument, "仅支持 GET"), http.StatusMethodNotAllowed)
		return
	}
	result, err := s.svc.GetTodos(r.Context())
	if err != nil {
		s.writeError(w, r, err, 0)
		return
	}
	writeJSON(w, result.HTTPStatus(), result.Todos)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Ping(r.Context()); err != nil {
		s.log.WarnContext(r.Context(), "健康检查失败", slog.Any("error", err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"code":   string(xerrors.CodeOf(err)),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError 输出统一错误体，status 为 0 时按错误码映射。
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, status int) {
	if status == 0 {
		status = xerrors.HTTPStatus(err)
	}
	message := err.Error()
	if coded, ok := xerrors.From(err); ok {
		message = coded.Message()
	}
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).ErrorContext(r.Context(), "请求处理失败", slog.Any("error", err))
	}
	s.alert(r.Context(), r.URL.Path, err)
	writeJSON(w, status, errorBody{Error: errorDetail{Code: string(xerrors.CodeOf(err)), Message: message}})
}

func (s *Server) graphQLError(ctx context.Context, field string, err error) {
	if xerrors.HTTPStatus(err) >= http.StatusInternalServerError {
		logger.FromContext(ctx).ErrorContext(ctx, "GraphQL 解析失败", slog.String("field", field), slog.Any("error", err))
	}
	s.alert(ctx, "/graphql#"+field, err)
}

func (s *Server) alert(ctx context.Context, route string, err error) {
	if s.alerts == nil || !xerrors.ShouldAlert(err) {
		return
	}
	if notifyErr := s.alerts.Notify(ctx, alerting.FromError(err, route, RequestIDFrom(ctx))); notifyErr != nil {
		s.log.WarnContext(ctx, "告警发送失败", slog.Any("error", notifyErr))
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: errorDetail{
				Code:    string(xerrors.CodeInitializationFailure),
				Message: "服务已关闭",
			}})
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}

var _ Service = (*todo.Service)(nil)
