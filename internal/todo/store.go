package todo

import "context"

// Store 抽象了待办事项的存储能力，内存与持久化实现共用该接口。
//
// Store 不做输入校验，校验由 Service 负责。
type Store interface {
	GetTodos(ctx context.Context) ([]Todo, error)
	AddTodo(ctx context.Context, name string) (Todo, error)
	Close() error
}

// Pinger 由可以探测连通性的存储实现，用于健康检查。
type Pinger interface {
	Ping(ctx context.Context) error
}

// DefaultSeed 是新存储初始化时写入的两条记录。
func DefaultSeed() []string {
	return []string{"Make breakfast", "Study GraphQL"}
}
