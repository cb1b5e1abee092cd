package sqlstore

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

type dialect struct {
	name        string
	driverName  string
	goose       string
	placeholder sq.PlaceholderFormat
}

var (
	dialectMySQL    = dialect{name: "mysql", driverName: "mysql", goose: "mysql", placeholder: sq.Question}
	dialectPostgres = dialect{name: "postgres", driverName: "pgx", goose: "postgres", placeholder: sq.Dollar}
	dialectSQLite   = dialect{name: "sqlite", driverName: "sqlite", goose: "sqlite3", placeholder: sq.Question}
)

// ErrUnsupportedDriver 表示配置了未知的数据库驱动。
var ErrUnsupportedDriver = fmt.Errorf("暂不支持的存储驱动")

func lookupDialect(driver string) (dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "mysql":
		return dialectMySQL, nil
	case "postgres", "postgresql", "pgx":
		return dialectPostgres, nil
	case "sqlite", "sqlite3":
		return dialectSQLite, nil
	default:
		return dialect{}, fmt.Errorf("%w: %s", ErrUnsupportedDriver, driver)
	}
}

func (d dialect) builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(d.placeholder)
}
