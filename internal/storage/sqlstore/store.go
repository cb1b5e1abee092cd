package sqlstore

import (
	"context"
	"database/sql"
	"strings"

	sq "github.com/Masterminds/squirrel"

	xerrors "todos-api/internal/errors"
	"todos-api/internal/todo"
)

// Store 是基于 database/sql 的待办存储，每次调用都会从连接池借出独立连接。
type Store struct {
	db       *sql.DB
	dialect  dialect
	builder  sq.StatementBuilderType
	encoding todo.StatusEncoding
}

var _ todo.Store = (*Store)(nil)

// Open 建立连接、执行迁移，并在首次初始化时写入种子数据。
func Open(ctx context.Context, cfg Config) (*Store, error) {
	d, err := lookupDialect(cfg.Driver)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "无效的存储驱动")
	}
	enc := cfg.Encoding
	if enc == "" {
		enc = todo.DefaultEncoding
	}
	if _, err := enc.Encode(todo.StatusIncomplete); err != nil {
		return nil, err
	}

	db, err := openDatabase(ctx, d, cfg)
	if err != nil {
		return nil, err
	}
	if err := runMigrations(ctx, db, d); err != nil {
		db.Close()
		return nil, err
	}

	store := newStore(db, d, enc)
	if err := store.initialise(ctx, cfg.Seed); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func newStore(db *sql.DB, d dialect, enc todo.StatusEncoding) *Store {
	return &Store{db: db, dialect: d, builder: d.builder(), encoding: enc}
}

// Driver 返回当前使用的方言名称。
func (s *Store) Driver() string {
	return s.dialect.name
}

// GetTodos 按插入顺序返回全部待办事项。
func (s *Store) GetTodos(ctx context.Context) ([]todo.Todo, error) {
	query, args, err := s.builder.Select("id", "name", "status", "user_name").
		From("todos").
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "构造查询失败")
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, todo.Unavailable(err, "获取数据库连接失败")
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询待办事项失败")
	}
	defer rows.Close()

	todos := make([]todo.Todo, 0)
	for rows.Next() {
		var (
			id       int64
			name     string
			status   int64
			userName sql.NullString
		)
		if err := rows.Scan(&id, &name, &status, &userName); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析待办事项失败")
		}
		decoded, err := s.encoding.Decode(int(status))
		if err != nil {
			return nil, err
		}
		item := todo.Todo{Name: name, Status: decoded}
		if userName.Valid && strings.TrimSpace(userName.String) != "" {
			item.User = &todo.User{Name: userName.String}
		}
		todos = append(todos, item)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历待办事项失败")
	}
	return todos, nil
}

// AddTodo 在事务中插入一条 INCOMPLETE 状态的记录，提交成功后才返回。
func (s *Store) AddTodo(ctx context.Context, name string) (todo.Todo, error) {
	item := todo.New(name)
	code, err := s.encoding.Encode(item.Status)
	if err != nil {
		return todo.Todo{}, err
	}
	query, args, err := s.builder.Insert("todos").
		Columns("name", "status").
		Values(name, code).
		ToSql()
	if err != nil {
		return todo.Todo{}, xerrors.Wrap(xerrors.CodeStorageFailure, err, "构造插入语句失败")
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		if _, ok := xerrors.From(err); ok {
			return todo.Todo{}, err
		}
		return todo.Todo{}, xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入待办事项失败")
	}
	return item, nil
}

// Ping 检查数据库连通性。
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return todo.Unavailable(err, "数据库不可用")
	}
	return nil
}

// Close 关闭连接池。
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// withTx 借出一条连接执行事务。fn 返回的错误原样返回，
// 获取连接、开启或提交事务失败时返回 STORE_UNAVAILABLE。
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return todo.Unavailable(err, "获取数据库连接失败")
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return todo.Unavailable(err, "开启事务失败")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return todo.Unavailable(err, "提交事务失败")
	}
	return nil
}
