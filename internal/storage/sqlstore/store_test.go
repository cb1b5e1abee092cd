package sqlstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	stdErrors "errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"testing"

	xerrors "todos-api/internal/errors"
	"todos-api/internal/todo"
)

const (
	selectTodosSQL    = "SELECT id, name, status, user_name FROM todos ORDER BY id ASC"
	insertTodoSQL     = "INSERT INTO todos (name,status) VALUES (?,?)"
	selectSettingSQL  = "SELECT setting_value FROM store_settings WHERE setting_key = ?"
	insertSettingSQL  = "INSERT INTO store_settings (setting_key,setting_value) VALUES (?,?)"
	insertSeedPairSQL = "INSERT INTO todos (name,status) VALUES (?,?),(?,?)"
)

func TestStoreGetTodosDecodesRows(t *testing.T) {
	db, drv := newMockDB(t, []mockOperation{
		queryOp(selectTodosSQL, mockRowsData{
			columns: []string{"id", "name", "status", "user_name"},
			values: [][]driver.Value{
				{int64(1), "Make breakfast", int64(1), nil},
				{int64(2), "Study GraphQL", int64(3), "ada"},
			},
		}),
	})
	defer db.Close()

	store := newStore(db, dialectMySQL, todo.EncodingUnknownFirst)
	todos, err := store.GetTodos(context.Background())
	if err != nil {
		t.Fatalf("get todos failed: %v", err)
	}
	if len(todos) != 2 {
		t.Fatalf("unexpected todos: %+v", todos)
	}
	if todos[0].Status != todo.StatusIncomplete || todos[0].User != nil {
		t.Fatalf("unexpected first todo: %+v", todos[0])
	}
	if todos[1].Status != todo.StatusDone || todos[1].User == nil || todos[1].User.Name != "ada" {
		t.Fatalf("unexpected second todo: %+v", todos[1])
	}
	drv.assertConsumed(t)
}

func TestStoreGetTodosEmptyTable(t *testing.T) {
	db, drv := newMockDB(t, []mockOperation{
		queryOp(selectTodosSQL, mockRowsData{columns: []string{"id", "name", "status", "user_name"}}),
	})
	defer db.Close()

	todos, err := newStore(db, dialectMySQL, todo.EncodingUnknownFirst).GetTodos(context.Background())
	if err != nil {
		t.Fatalf("get todos failed: %v", err)
	}
	if todos == nil || len(todos) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", todos)
	}
	drv.assertConsumed(t)
}

func TestStoreGetTodosRejectsForeignStatus(t *testing.T) {
	db, _ := newMockDB(t, []mockOperation{
		queryOp(selectTodosSQL, mockRowsData{
			columns: []string{"id", "name", "status", "user_name"},
			values:  [][]driver.Value{{int64(1), "legacy", int64(9), nil}},
		}),
	})
	defer db.Close()

	_, err := newStore(db, dialectMySQL, todo.EncodingIncompleteFirst).GetTodos(context.Background())
	if !stdErrors.Is(err, todo.ErrStatusEncodingMismatch) {
		t.Fatalf("expected encoding mismatch, got %v", err)
	}
}

func TestStoreAddTodoCommits(t *testing.T) {
	db, drv := newMockDB(t, []mockOperation{
		beginOp(),
		execOp(insertTodoSQL, mockResult{lastInsertID: 3, rowsAffected: 1}),
		commitOp(),
	})
	defer db.Close()

	added, err := newStore(db, dialectMySQL, todo.EncodingIncompleteFirst).AddTodo(context.Background(), "Write tests")
	if err != nil {
		t.Fatalf("add todo failed: %v", err)
	}
	if added.Name != "Write tests" || added.Status != todo.StatusIncomplete {
		t.Fatalf("unexpected todo: %+v", added)
	}
	drv.assertConsumed(t)
}

func TestStoreAddTodoCommitFailure(t *testing.T) {
	db, drv := newMockDB(t, []mockOperation{
		beginOp(),
		execOp(insertTodoSQL, mockResult{rowsAffected: 1}),
		{typ: opCommit, err: fmt.Errorf("connection reset")},
	})
	defer db.Close()

	_, err := newStore(db, dialectMySQL, todo.EncodingUnknownFirst).AddTodo(context.Background(), "x")
	if xerrors.CodeOf(err) != todo.CodeStoreUnavailable {
		t.Fatalf("expected store unavailable, got %v", err)
	}
	drv.assertConsumed(t)
}

func TestStoreAddTodoExecFailureRollsBack(t *testing.T) {
	db, drv := newMockDB(t, []mockOperation{
		beginOp(),
		{typ: opExec, query: insertTodoSQL, err: fmt.Errorf("table missing")},
		rollbackOp(),
	})
	defer db.Close()

	_, err := newStore(db, dialectMySQL, todo.EncodingUnknownFirst).AddTodo(context.Background(), "x")
	if xerrors.CodeOf(err) != xerrors.CodeStorageFailure {
		t.Fatalf("expected storage failure, got %v", err)
	}
	drv.assertConsumed(t)
}

func TestStoreInitialiseSeedsFreshDatabase(t *testing.T) {
	db, drv := newMockDB(t, []mockOperation{
		queryOp(selectSettingSQL, mockRowsData{columns: []string{"setting_value"}}),
		beginOp(),
		execOp(insertSettingSQL, mockResult{rowsAffected: 1}),
		execOp(insertSeedPairSQL, mockResult{rowsAffected: 2}),
		commitOp(),
	})
	defer db.Close()

	store := newStore(db, dialectMySQL, todo.EncodingUnknownFirst)
	if err := store.initialise(context.Background(), todo.DefaultSeed()); err != nil {
		t.Fatalf("initialise failed: %v", err)
	}
	drv.assertConsumed(t)
}

func TestStoreInitialiseSkipsSeedWhenSettingsExist(t *testing.T) {
	db, drv := newMockDB(t, []mockOperation{
		queryOp(selectSettingSQL, mockRowsData{
			columns: []string{"setting_value"},
			values:  [][]driver.Value{{"unknown_first"}},
		}),
	})
	defer db.Close()

	store := newStore(db, dialectMySQL, todo.EncodingUnknownFirst)
	if err := store.initialise(context.Background(), todo.DefaultSeed()); err != nil {
		t.Fatalf("initialise failed: %v", err)
	}
	drv.assertConsumed(t)
}

func TestStoreInitialiseDetectsEncodingMismatch(t *testing.T) {
	db, _ := newMockDB(t, []mockOperation{
		queryOp(selectSettingSQL, mockRowsData{
			columns: []string{"setting_value"},
			values:  [][]driver.Value{{"incomplete_first"}},
		}),
	})
	defer db.Close()

	err := newStore(db, dialectMySQL, todo.EncodingUnknownFirst).initialise(context.Background(), nil)
	if !stdErrors.Is(err, todo.ErrStatusEncodingMismatch) {
		t.Fatalf("expected encoding mismatch, got %v", err)
	}
}

func TestLookupDialect(t *testing.T) {
	cases := map[string]string{
		"mysql":      "mysql",
		"Postgres":   "postgres",
		"postgresql": "postgres",
		"sqlite3":    "sqlite",
	}
	for input, want := range cases {
		d, err := lookupDialect(input)
		if err != nil {
			t.Fatalf("lookup %q failed: %v", input, err)
		}
		if d.name != want {
			t.Fatalf("lookup %q: got %s want %s", input, d.name, want)
		}
	}
	if _, err := lookupDialect("oracle"); !stdErrors.Is(err, ErrUnsupportedDriver) {
		t.Fatalf("expected unsupported driver error, got %v", err)
	}
}

func TestPostgresPlaceholders(t *testing.T) {
	query, _, err := dialectPostgres.builder().Insert("todos").Columns("name", "status").Values("a", 1).ToSql()
	if err != nil {
		t.Fatalf("build insert failed: %v", err)
	}
	if !strings.Contains(query, "VALUES ($1,$2)") {
		t.Fatalf("unexpected postgres query: %s", query)
	}
}

type operationType int

const (
	opExec operationType = iota
	opQuery
	opBegin
	opCommit
	opRollback
)

type mockOperation struct {
	typ    operationType
	query  string
	result mockResult
	rows   mockRowsData
	err    error
}

type mockResult struct {
	lastInsertID int64
	rowsAffected int64
}

func (r mockResult) LastInsertId() (int64, error) { return r.lastInsertID, nil }
func (r mockResult) RowsAffected() (int64, error) { return r.rowsAffected, nil }

type mockRowsData struct {
	columns []string
	values  [][]driver.Value
}

type queueDriver struct {
	ops []mockOperation
	idx int32
}

var driverSeq atomic.Int32

func newMockDB(t *testing.T, ops []mockOperation) (*sql.DB, *queueDriver) {
	t.Helper()

	drv := &queueDriver{ops: ops}
	name := fmt.Sprintf("sqlstore-mock-%d", driverSeq.Add(1))
	sql.Register(name, drv)

	db, err := sql.Open(name, "")
	if err != nil {
		t.Fatalf("open mock db failed: %v", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, drv
}

func execOp(query string, result mockResult) mockOperation {
	return mockOperation{typ: opExec, query: query, result: result}
}

func queryOp(query string, rows mockRowsData) mockOperation {
	return mockOperation{typ: opQuery, query: query, rows: rows}
}

func beginOp() mockOperation { return mockOperation{typ: opBegin} }

func commitOp() mockOperation { return mockOperation{typ: opCommit} }

func rollbackOp() mockOperation { return mockOperation{typ: opRollback} }

func (d *queueDriver) assertConsumed(t *testing.T) {
	t.Helper()

	if int(atomic.LoadInt32(&d.idx)) != len(d.ops) {
		t.Fatalf("not all operations consumed: %d/%d", atomic.LoadInt32(&d.idx), len(d.ops))
	}
}

func (d *queueDriver) Open(name string) (driver.Conn, error) {
	return &mockConn{driver: d}, nil
}

type mockConn struct {
	driver *queueDriver
}

func (c *mockConn) Prepare(query string) (driver.Stmt, error) {
	return nil, fmt.Errorf("prepare not supported: %s", query)
}

func (c *mockConn) Close() error { return nil }

func (c *mockConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *mockConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	op, err := c.next(opBegin, "")
	if err != nil {
		return nil, err
	}
	if op.err != nil {
		return nil, op.err
	}
	return &mockTx{driver: c.driver}, nil
}

func (c *mockConn) Exec(query string, args []driver.Value) (driver.Result, error) {
	return c.ExecContext(context.Background(), query, named(args))
}

func (c *mockConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	op, err := c.next(opExec, query)
	if err != nil {
		return nil, err
	}
	if op.err != nil {
		return nil, op.err
	}
	return op.result, nil
}

func (c *mockConn) Query(query string, args []driver.Value) (driver.Rows, error) {
	return c.QueryContext(context.Background(), query, named(args))
}

func (c *mockConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	op, err := c.next(opQuery, query)
	if err != nil {
		return nil, err
	}
	if op.err != nil {
		return nil, op.err
	}
	return &mockRows{columns: op.rows.columns, values: op.rows.values}, nil
}

func (c *mockConn) Ping(ctx context.Context) error { return nil }

func (c *mockConn) next(expected operationType, query string) (*mockOperation, error) {
	idx := int(atomic.LoadInt32(&c.driver.idx))
	if idx >= len(c.driver.ops) {
		return nil, fmt.Errorf("unexpected operation: %v", expected)
	}
	op := &c.driver.ops[idx]
	if op.typ != expected {
		return nil, fmt.Errorf("expected operation %v, got %v", expected, op.typ)
	}
	atomic.AddInt32(&c.driver.idx, 1)
	if op.query != "" {
		expectedSQL := normalizeSQL(op.query)
		actualSQL := normalizeSQL(query)
		if expectedSQL != actualSQL {
			return nil, fmt.Errorf("unexpected query. want %q got %q", expectedSQL, actualSQL)
		}
	}
	return op, nil
}

type mockTx struct {
	driver *queueDriver
}

func (t *mockTx) Commit() error {
	op, err := t.next(opCommit)
	if err != nil {
		return err
	}
	return op.err
}

func (t *mockTx) Rollback() error {
	op, err := t.next(opRollback)
	if err != nil {
		return err
	}
	return op.err
}

func (t *mockTx) next(expected operationType) (*mockOperation, error) {
	idx := int(atomic.LoadInt32(&t.driver.idx))
	if idx >= len(t.driver.ops) {
		return nil, fmt.Errorf("unexpected operation: %v", expected)
	}
	op := &t.driver.ops[idx]
	if op.typ != expected {
		return nil, fmt.Errorf("expected operation %v, got %v", expected, op.typ)
	}
	atomic.AddInt32(&t.driver.idx, 1)
	return op, nil
}

type mockRows struct {
	columns []string
	values  [][]driver.Value
	idx     int
}

func (r *mockRows) Columns() []string { return r.columns }
func (r *mockRows) Close() error      { return nil }

func (r *mockRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.values) {
		return io.EOF
	}
	copy(dest, r.values[r.idx])
	r.idx++
	return nil
}

func named(args []driver.Value) []driver.NamedValue {
	namedArgs := make([]driver.NamedValue, len(args))
	for i, arg := range args {
		namedArgs[i] = driver.NamedValue{Ordinal: i + 1, Value: arg}
	}
	return namedArgs
}

func normalizeSQL(query string) string {
	fields := strings.Fields(query)
	return strings.Join(fields, " ")
}
