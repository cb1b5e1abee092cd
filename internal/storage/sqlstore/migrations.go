package sqlstore

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"sync"

	"github.com/go-sql-driver/mysql"
	"github.com/pressly/goose/v3"

	"todos-api/deploy/migrations"
	xerrors "todos-api/internal/errors"
	"todos-api/internal/todo"
)

const settingStatusEncoding = "status_encoding"

// goose 的方言与文件系统是全局状态，迁移需要串行执行。
var gooseMu sync.Mutex

func runMigrations(ctx context.Context, db *sql.DB, d dialect) error {
	gooseMu.Lock()
	defer func() {
		goose.SetBaseFS(nil)
		gooseMu.Unlock()
	}()

	goose.SetBaseFS(migrations.Files)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(d.goose); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "设置迁移方言失败")
	}
	if err := goose.UpContext(ctx, db, d.name); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "执行数据库迁移失败")
	}
	return nil
}

// initialise 在首次建表时记录状态编码并写入种子数据，之后只做编码校验。
func (s *Store) initialise(ctx context.Context, seed []string) error {
	stored, found, err := s.loadEncoding(ctx)
	if err != nil {
		return err
	}
	if found {
		return todo.CheckEncoding(stored, s.encoding)
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		insertSetting, args, err := s.builder.Insert("store_settings").
			Columns("setting_key", "setting_value").
			Values(settingStatusEncoding, string(s.encoding)).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, insertSetting, args...); err != nil {
			return err
		}
		if len(seed) == 0 {
			return nil
		}
		code, err := s.encoding.Encode(todo.StatusIncomplete)
		if err != nil {
			return err
		}
		insertSeed := s.builder.Insert("todos").Columns("name", "status")
		for _, name := range seed {
			insertSeed = insertSeed.Values(name, code)
		}
		query, seedArgs, err := insertSeed.ToSql()
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, query, seedArgs...)
		return err
	})
	if err == nil {
		return nil
	}

	// 并发初始化时另一个进程可能已经写入设置，重新读取后校验即可。
	var mysqlErr *mysql.MySQLError
	if stdErrors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		stored, found, loadErr := s.loadEncoding(ctx)
		if loadErr != nil {
			return loadErr
		}
		if found {
			return todo.CheckEncoding(stored, s.encoding)
		}
	}
	if _, ok := xerrors.From(err); ok {
		return err
	}
	return xerrors.Wrap(xerrors.CodeStorageFailure, err, "初始化待办存储失败")
}

func (s *Store) loadEncoding(ctx context.Context) (todo.StatusEncoding, bool, error) {
	query, args, err := s.builder.Select("setting_value").
		From("store_settings").
		Where("setting_key = ?", settingStatusEncoding).
		ToSql()
	if err != nil {
		return "", false, xerrors.Wrap(xerrors.CodeStorageFailure, err, "构造查询失败")
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return "", false, todo.Unavailable(err, "获取数据库连接失败")
	}
	defer conn.Close()

	var value string
	if err := conn.QueryRowContext(ctx, query, args...).Scan(&value); err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取存储设置失败")
	}
	enc, err := todo.ParseEncoding(value)
	if err != nil {
		return "", false, xerrors.Wrap(todo.CodeStatusEncodingMismatch, err, "存储记录了未知的状态编码")
	}
	return enc, true, nil
}
