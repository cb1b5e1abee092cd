package redisstore

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/redis/go-redis/v9"

	xerrors "todos-api/internal/errors"
	"todos-api/internal/todo"
)

// Config 描述 Redis 存储的连接参数。
type Config struct {
	Address  string
	Password string
	DB       int
	// Key 是存放待办列表的键，种子标记使用 Key + ":seeded"。
	Key  string
	Seed []string
}

const defaultKey = "todos:items"

// seedScript 只有在标记键不存在时才写入种子，保证多实例并发启动时只写一次。
var seedScript = redis.NewScript(`
if redis.call("SETNX", KEYS[2], "1") == 0 then
  return 0
end
for i = 1, #ARGV do
  redis.call("RPUSH", KEYS[1], ARGV[i])
end
return #ARGV
`)

// Store 使用 Redis list 保存待办事项。
type Store struct {
	client *redis.Client
	key    string
}

var _ todo.Store = (*Store)(nil)

type record struct {
	Name   string      `json:"name"`
	Status todo.Status `json:"status"`
	User   *todo.User  `json:"user,omitempty"`
}

// Open 连接 Redis 并在首次使用时写入种子数据。
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "Redis address 不能为空")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	store, err := New(ctx, client, cfg.Key, cfg.Seed)
	if err != nil {
		client.Close()
		return nil, err
	}
	return store, nil
}

// New 使用已有客户端构造存储，便于测试时注入。
func New(ctx context.Context, client *redis.Client, key string, seed []string) (*Store, error) {
	if key == "" {
		key = defaultKey
	}
	s := &Store{client: client, key: key}
	if err := s.Ping(ctx); err != nil {
		return nil, err
	}
	if err := s.seed(ctx, seed); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) seed(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	args := make([]any, 0, len(names))
	for _, name := range names {
		payload, err := json.Marshal(record{Name: name, Status: todo.StatusIncomplete})
		if err != nil {
			return xerrors.Wrap(xerrors.CodeStorageFailure, err, "序列化种子数据失败")
		}
		args = append(args, string(payload))
	}
	if err := seedScript.Run(ctx, s.client, []string{s.key, s.key + ":seeded"}, args...).Err(); err != nil {
		return todo.Unavailable(err, "写入种子数据失败")
	}
	return nil
}

// GetTodos 返回列表中的全部待办事项。
func (s *Store) GetTodos(ctx context.Context) ([]todo.Todo, error) {
	values, err := s.client.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, todo.Unavailable(err, "读取 Redis 列表失败")
	}
	todos := make([]todo.Todo, 0, len(values))
	for _, raw := range values {
		var rec record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析待办事项失败")
		}
		if !todo.IsValidStatus(rec.Status) {
			rec.Status = todo.StatusUnknown
		}
		todos = append(todos, todo.Todo{Name: rec.Name, Status: rec.Status, User: rec.User})
	}
	return todos, nil
}

// AddTodo 追加一条 INCOMPLETE 状态的记录。
func (s *Store) AddTodo(ctx context.Context, name string) (todo.Todo, error) {
	item := todo.New(name)
	payload, err := json.Marshal(record{Name: item.Name, Status: item.Status})
	if err != nil {
		return todo.Todo{}, xerrors.Wrap(xerrors.CodeStorageFailure, err, "序列化待办事项失败")
	}
	if err := s.client.RPush(ctx, s.key, payload).Err(); err != nil {
		return todo.Todo{}, todo.Unavailable(err, "写入 Redis 列表失败")
	}
	return item, nil
}

// Ping 检查 Redis 连通性。
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return todo.Unavailable(err, "连接 Redis 失败")
	}
	return nil
}

// Close 关闭 Redis 连接。
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
