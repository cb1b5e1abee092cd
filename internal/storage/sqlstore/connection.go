package sqlstore

import (
	"context"
	"database/sql"
	"strings"
	"time"

	xerrors "todos-api/internal/errors"
	"todos-api/internal/todo"

	// 注册 database/sql 驱动。
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

func openDatabase(ctx context.Context, d dialect, cfg Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "数据库 DSN 不能为空")
	}

	db, err := sql.Open(d.driverName, cfg.DSN)
	if err != nil {
		return nil, todo.Unavailable(err, "打开数据库失败")
	}

	if d.name == dialectSQLite.name {
		// SQLite 只允许单写连接，:memory: 数据库也依赖连接不被回收。
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		configurePool(db, cfg)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, todo.Unavailable(err, "无法连接到数据库")
	}

	if d.name == dialectSQLite.name {
		for _, pragma := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA journal_mode = WAL"} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				db.Close()
				return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "设置 SQLite 参数失败")
			}
		}
	}
	return db, nil
}

func configurePool(db *sql.DB, cfg Config) {
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	} else {
		db.SetMaxOpenConns(20)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	} else {
		db.SetMaxIdleConns(10)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	} else {
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
}
