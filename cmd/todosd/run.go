package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"todos-api/internal/api"
	"todos-api/internal/config"
	xerrors "todos-api/internal/errors"
	"todos-api/internal/events"
	"todos-api/internal/observability/alerting"
	"todos-api/internal/observability/metrics"
	"todos-api/internal/storage/redisstore"
	"todos-api/internal/storage/sqlstore"
	"todos-api/internal/todo"
	"todos-api/pkg/logger"
)

// connectBackoff 是启动阶段连接存储的初始退避时间。
var connectBackoff = 200 * time.Millisecond

func run(ctx context.Context, f flags) error {
	cfg, err := config.Load(f.configPath, f.envFile)
	if err != nil {
		return err
	}
	if f.store != "" {
		cfg.Store.Driver = strings.ToLower(strings.TrimSpace(f.store))
	}
	if f.addr != "" {
		cfg.Server.Address = f.addr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logger.Init(loggerConfig(cfg.Log)); err != nil {
		return err
	}
	defer logger.Sync()
	log := logger.Named("todosd")

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	publisher, err := newPublisher(ctx, cfg)
	if err != nil {
		_ = store.Close()
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn("关闭事件发布器失败", slog.Any("error", err))
		}
	}()

	opts := []todo.ServiceOption{todo.WithPublisher(publisher)}
	serverOpts := []api.Option{api.WithAlerts(newAlerts(cfg))}
	if cfg.Server.MetricsEnabled {
		registry := metrics.New()
		opts = append(opts, todo.WithObserver(registry))
		serverOpts = append(serverOpts, api.WithMetrics(registry))
	}
	svc := todo.NewService(store, opts...)
	defer func() {
		if err := svc.Close(); err != nil {
			log.Warn("关闭待办存储失败", slog.Any("error", err))
		}
	}()

	server, err := api.NewServer(cfg.Server.Address, svc, serverOpts...)
	if err != nil {
		return err
	}
	log.Info("todosd 启动",
		slog.String("store", cfg.Store.Driver),
		slog.String("events", cfg.Events.Driver),
		slog.String("addr", cfg.Server.Address),
	)
	return server.Start(ctx)
}

// openStore 按配置打开存储。只有可重试的错误才会按指数退避重试，
// 最多 store.connect_retries 次。
func openStore(ctx context.Context, cfg *config.Config) (todo.Store, error) {
	if cfg.Store.Driver == "memory" {
		return todo.NewMemoryStore(cfg.Store.Seed...), nil
	}

	enc, err := todo.ParseEncoding(cfg.Store.StatusEncoding)
	if err != nil {
		return nil, err
	}
	log := logger.Named("todosd")

	backoff := retry.WithMaxRetries(uint64(cfg.Store.ConnectRetries),
		retry.WithCappedDuration(5*time.Second, retry.NewExponential(connectBackoff)))

	var store todo.Store
	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		opened, err := openOnce(ctx, cfg, enc)
		if err != nil {
			if xerrors.RetryableError(err) {
				log.Warn("打开存储失败，稍后重试", slog.Int("attempt", attempt), slog.Any("error", err))
				return retry.RetryableError(err)
			}
			return err
		}
		store = opened
		return nil
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

func openOnce(ctx context.Context, cfg *config.Config, enc todo.StatusEncoding) (todo.Store, error) {
	switch cfg.Store.Driver {
	case "redis":
		return redisstore.Open(ctx, redisstore.Config{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Key:      cfg.Redis.Key,
			Seed:     cfg.Store.Seed,
		})
	default:
		return sqlstore.Open(ctx, sqlstore.Config{
			Driver:          cfg.Store.Driver,
			DSN:             cfg.Store.DSN,
			MaxOpenConns:    cfg.Store.MaxOpenConns,
			MaxIdleConns:    cfg.Store.MaxIdleConns,
			ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Store.ConnMaxIdleTime,
			Encoding:        enc,
			Seed:            cfg.Store.Seed,
		})
	}
}

func newPublisher(ctx context.Context, cfg *config.Config) (events.Publisher, error) {
	switch cfg.Events.Driver {
	case "memory":
		pub := events.NewMemoryPublisher(1024)
		go drainMemoryEvents(pub)
		return pub, nil
	case "redis":
		return events.NewRedisPublisher(ctx, events.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Channel:  cfg.Events.Redis.Channel,
		})
	case "rabbitmq":
		return events.NewRabbitMQPublisher(events.RabbitMQConfig{
			URL:     cfg.Events.RabbitMQ.URL,
			Queue:   cfg.Events.RabbitMQ.Queue,
			Durable: cfg.Events.RabbitMQ.Durable,
		})
	default:
		return events.NopPublisher{}, nil
	}
}

// drainMemoryEvents 将进程内事件写入日志，直到发布器关闭。
func drainMemoryEvents(pub *events.MemoryPublisher) {
	log := logger.Named("events")
	for event := range pub.Events() {
		log.Info("event",
			slog.String("id", event.ID),
			slog.String("type", event.Type),
			slog.String("name", event.Todo.Name),
		)
	}
}

func newAlerts(cfg *config.Config) *alerting.FanoutDispatcher {
	notifiers := []alerting.Notifier{&alerting.LogNotifier{Logger: logger.Named("alerting")}}
	if cfg.Alerting.WebhookURL != "" {
		notifiers = append(notifiers, alerting.NewWebhookNotifier(cfg.Alerting.WebhookURL, nil))
	}
	return alerting.NewFanout(notifiers...)
}

func loggerConfig(c config.LogConfig) logger.Config {
	return logger.Config{
		Level:       c.Level,
		Format:      c.Format,
		OutputPaths: c.Outputs,
		Audit: logger.AuditConfig{
			Enabled:    c.Audit.Enabled,
			Path:       c.Audit.Path,
			MaxSizeMB:  c.Audit.MaxSizeMB,
			MaxBackups: c.Audit.MaxBackups,
			MaxAgeDays: c.Audit.MaxAgeDays,
		},
	}
}
