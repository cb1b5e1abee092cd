package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"

	xerrors "todos-api/internal/errors"
	"todos-api/internal/todo"
)

// EnvPrefix 是环境变量前缀，例如 TODOS_STORE_DRIVER 对应 store.driver。
const EnvPrefix = "TODOS_"

// Config 描述服务启动时需要加载的全部配置。
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Store    StoreConfig    `koanf:"store"`
	Redis    RedisConfig    `koanf:"redis"`
	Events   EventsConfig   `koanf:"events"`
	Log      LogConfig      `koanf:"log"`
	Alerting AlertingConfig `koanf:"alerting"`
}

// ServerConfig 控制 API 服务的监听地址等参数。
type ServerConfig struct {
	Address        string `koanf:"address" validate:"required"`
	MetricsEnabled bool   `koanf:"metrics_enabled"`
}

// StoreConfig 选择待办存储的实现。
type StoreConfig struct {
	Driver          string        `koanf:"driver" validate:"oneof=memory sqlite mysql postgres redis"`
	DSN             string        `koanf:"dsn"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"gte=0"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time" validate:"gte=0"`
	StatusEncoding  string        `koanf:"status_encoding" validate:"oneof=unknown_first incomplete_first"`
	// ConnectRetries 仅作用于启动阶段打开存储，存储调用本身不重试。
	ConnectRetries int      `koanf:"connect_retries" validate:"gte=0,lte=20"`
	Seed           []string `koanf:"seed"`
}

// RedisConfig 描述 redis 存储使用的连接。
type RedisConfig struct {
	Address  string `koanf:"address"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db" validate:"gte=0"`
	Key      string `koanf:"key"`
}

// EventsConfig 选择 todo.added 事件的发布方式。
type EventsConfig struct {
	Driver   string               `koanf:"driver" validate:"oneof=none memory redis rabbitmq"`
	Redis    EventsRedisConfig    `koanf:"redis"`
	RabbitMQ EventsRabbitMQConfig `koanf:"rabbitmq"`
}

// EventsRedisConfig 使用顶层 redis 连接，只额外指定频道。
type EventsRedisConfig struct {
	Channel string `koanf:"channel"`
}

// EventsRabbitMQConfig 描述 RabbitMQ 连接。
type EventsRabbitMQConfig struct {
	URL     string `koanf:"url"`
	Queue   string `koanf:"queue"`
	Durable bool   `koanf:"durable"`
}

// LogConfig 控制应用日志与审计日志。
type LogConfig struct {
	Level   string      `koanf:"level" validate:"oneof=debug info warn warning error"`
	Format  string      `koanf:"format" validate:"oneof=text json"`
	Outputs []string    `koanf:"outputs"`
	Audit   AuditConfig `koanf:"audit"`
}

// AuditConfig 控制审计日志文件与轮转。
type AuditConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Path       string `koanf:"path"`
	MaxSizeMB  int    `koanf:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `koanf:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `koanf:"max_age_days" validate:"gte=0"`
}

// AlertingConfig 配置额外的告警渠道，日志渠道始终开启。
type AlertingConfig struct {
	WebhookURL string `koanf:"webhook_url" validate:"omitempty,url"`
}

// Default 返回内置默认配置。
func Default() Config {
	return Config{
		Server: ServerConfig{Address: ":8080", MetricsEnabled: true},
		Store: StoreConfig{
			Driver:          "memory",
			MaxOpenConns:    20,
			MaxIdleConns:    10,
			ConnMaxLifetime: 30 * time.Minute,
			StatusEncoding:  string(todo.DefaultEncoding),
			ConnectRetries:  5,
			Seed:            todo.DefaultSeed(),
		},
		Redis: RedisConfig{Address: "127.0.0.1:6379", Key: "todos:items"},
		Events: EventsConfig{
			Driver:   "none",
			Redis:    EventsRedisConfig{Channel: "todos:events"},
			RabbitMQ: EventsRabbitMQConfig{Queue: "todos.events", Durable: true},
		},
		Log: LogConfig{
			Level:   "info",
			Format:  "text",
			Outputs: []string{"stdout"},
			Audit:   AuditConfig{MaxSizeMB: 100, MaxBackups: 7, MaxAgeDays: 30},
		},
	}
}

var validate = sync.OnceValue(func() *validator.Validate { return validator.New() })

// Load 依次合并默认值、配置文件、.env 文件与环境变量。path 与 envFile 均可为空。
func Load(path, envFile string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "加载默认配置失败")
	}

	baseDir := ""
	if path != "" {
		data, err := readFile(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawMap(data), nil); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "合并配置文件失败")
		}
		baseDir = filepath.Dir(path)
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, fmt.Sprintf("读取环境文件 %s 失败", envFile))
		}
	}
	if err := loadEnvironment(k); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "解析配置失败")
	}

	cfg.normalise(baseDir)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readFile(path string) (map[string]any, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "读取配置文件失败")
	}
	// YAML 是 JSON 的超集，两种格式共用同一个解析器。
	data := make(map[string]any)
	if err := yaml.Unmarshal(content, &data); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "解析配置文件失败")
	}
	return data, nil
}

// loadEnvironment 只接受与已知配置项对应的 TODOS_* 变量。
func loadEnvironment(k *koanf.Koanf) error {
	known := make(map[string]string, len(k.Keys()))
	for _, key := range k.Keys() {
		known[EnvPrefix+strings.ToUpper(strings.ReplaceAll(key, ".", "_"))] = key
	}
	err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(name, value string) (string, any) {
			if !strings.HasPrefix(name, EnvPrefix) {
				name = EnvPrefix + name
			}
			if path, ok := known[name]; ok {
				return path, value
			}
			return "", nil
		},
	}), nil)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "加载环境变量失败")
	}
	return nil
}

// normalise 清理大小写并把相对路径解析到配置文件所在目录。
func (c *Config) normalise(baseDir string) {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	c.Store.StatusEncoding = strings.ToLower(strings.TrimSpace(c.Store.StatusEncoding))
	c.Events.Driver = strings.ToLower(strings.TrimSpace(c.Events.Driver))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))

	if c.Store.Driver == "sqlite" {
		c.Store.DSN = resolveSQLitePath(baseDir, c.Store.DSN)
	}
	for i, out := range c.Log.Outputs {
		c.Log.Outputs[i] = resolvePath(baseDir, out)
	}
	c.Log.Audit.Path = resolvePath(baseDir, c.Log.Audit.Path)
}

func resolvePath(baseDir, path string) string {
	switch path {
	case "", "stdout", "stderr":
		return path
	}
	if baseDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

func resolveSQLitePath(baseDir, dsn string) string {
	if dsn == "" || strings.HasPrefix(dsn, ":memory:") || strings.HasPrefix(dsn, "file:") {
		return dsn
	}
	return resolvePath(baseDir, dsn)
}

// Validate 校验字段取值以及驱动之间的依赖关系。
func (c *Config) Validate() error {
	if err := validate().Struct(c); err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "配置校验失败")
	}
	switch c.Store.Driver {
	case "sqlite", "mysql", "postgres":
		if strings.TrimSpace(c.Store.DSN) == "" {
			return xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("store.driver=%s 需要配置 store.dsn", c.Store.Driver))
		}
	case "redis":
		if strings.TrimSpace(c.Redis.Address) == "" {
			return xerrors.New(xerrors.CodeInvalidArgument, "store.driver=redis 需要配置 redis.address")
		}
	}
	switch c.Events.Driver {
	case "redis":
		if strings.TrimSpace(c.Redis.Address) == "" {
			return xerrors.New(xerrors.CodeInvalidArgument, "events.driver=redis 需要配置 redis.address")
		}
	case "rabbitmq":
		if strings.TrimSpace(c.Events.RabbitMQ.URL) == "" {
			return xerrors.New(xerrors.CodeInvalidArgument, "events.driver=rabbitmq 需要配置 events.rabbitmq.url")
		}
	}
	if c.Log.Audit.Enabled && c.Log.Audit.Path == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "开启审计日志时需要配置 log.audit.path")
	}
	return nil
}

// rawMap 将解析后的配置文件适配为 koanf.Provider。
type rawMap map[string]any

func (r rawMap) Read() (map[string]any, error) {
	return r, nil
}

func (r rawMap) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("ReadBytes not implemented")
}
