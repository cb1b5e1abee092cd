package sqlstore

import (
	"time"

	"todos-api/internal/todo"
)

// Config 描述关系型存储的连接参数。
type Config struct {
	// Driver 取值为 mysql、postgres 或 sqlite。
	Driver string
	DSN    string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// Encoding 是状态整数编码，首次建表时写入 store_settings。
	Encoding todo.StatusEncoding
	// Seed 仅在首次初始化时写入。
	Seed []string
}
