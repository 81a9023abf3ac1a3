// file: internal/adapter/datasource/sqlite/exec_test.go

package sqlite

import (
	"LiteLens/internal/core/domain"
	"LiteLens/internal/core/port"
	"context"
	"database/sql"
	"errors"
	"os"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute_EmptyCommandIsNoOp(t *testing.T) {
	path := usersDB(t)
	m, h := openManager(t, path)

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	for _, cmd := range []domain.SqlCommand{"", "   ", "\n\t "} {
		out, err := m.Execute(context.Background(), h, cmd, "users")
		require.NoError(t, err)
		assert.False(t, out.Executed)
		assert.Empty(t, out.RefreshTable)
	}

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after, "空命令不应修改数据库文件")
}

func TestExecute_EmptyCommandWithoutHandle(t *testing.T) {
	m := NewManager()
	out, err := m.Execute(context.Background(), nil, "  ", "")
	require.NoError(t, err)
	assert.False(t, out.Executed)
}

func TestExecute_DeleteAndRefresh(t *testing.T) {
	m, h := openManager(t, usersDB(t))
	ctx := context.Background()

	out, err := m.Execute(ctx, h, "  DELETE FROM users WHERE id = 2 ;  ", "users")
	require.NoError(t, err)
	assert.True(t, out.Executed)
	assert.Equal(t, int64(1), out.RowsAffected)
	assert.Equal(t, "users", out.RefreshTable)

	rs, err := m.FetchRows(ctx, h, out.RefreshTable, nil)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(1), "Alice"}}, rs.Rows)
}

func TestExecute_NoSelectionMeansNoRefresh(t *testing.T) {
	m, h := openManager(t, usersDB(t))

	out, err := m.Execute(context.Background(), h, "UPDATE users SET name = 'Carol' WHERE id = 1", "")
	require.NoError(t, err)
	assert.True(t, out.Executed)
	assert.Empty(t, out.RefreshTable)
}

func TestExecute_ErrorKeepsConnectionUsable(t *testing.T) {
	m, h := openManager(t, usersDB(t))
	ctx := context.Background()

	_, err := m.Execute(ctx, h, "SELEC * FROM users", "users")
	require.Error(t, err)
	var execErr *port.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.ErrorIs(t, err, port.ErrExecution)
	assert.Equal(t, "SELEC * FROM users", execErr.Statement)
	assert.NotEmpty(t, execErr.Error())

	_, err = m.Execute(ctx, h, "INSERT INTO missing_table VALUES (1)", "")
	assert.ErrorIs(t, err, port.ErrExecution)

	out, err := m.Execute(ctx, h, "INSERT INTO users VALUES (3, 'Carol')", "users")
	require.NoError(t, err)
	assert.True(t, out.Executed)

	rs, err := m.FetchRows(ctx, h, "users", nil)
	require.NoError(t, err)
	assert.Len(t, rs.Rows, 3)
}

func TestExecute_MultipleStatementsRejected(t *testing.T) {
	m, h := openManager(t, usersDB(t))
	ctx := context.Background()

	for _, cmd := range []domain.SqlCommand{
		"DELETE FROM users WHERE id = 1; DELETE FROM users WHERE id = 2",
		"DELETE FROM users WHERE id = 1;\n-- trailing\nDROP TABLE users;",
		"SELECT 1; /* x */ SELECT 2",
	} {
		_, err := m.Execute(ctx, h, cmd, "users")
		var execErr *port.ExecutionError
		require.ErrorAs(t, err, &execErr, "cmd=%q", cmd)
		assert.Equal(t, "You can only execute one statement at a time.", execErr.Error())
	}

	// 任何一部分都没有被执行
	rs, err := m.FetchRows(ctx, h, "users", nil)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(1), "Alice"}, {int64(2), "Bob"}}, rs.Rows)

	// 末尾多余的分号和注释不算第二条语句
	out, err := m.Execute(ctx, h, "DELETE FROM users WHERE id = 2;; -- done", "users")
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.RowsAffected)
}

func TestExecute_AutocommitOnlyStatements(t *testing.T) {
	path := usersDB(t)
	m, h := openManager(t, path)
	ctx := context.Background()

	for _, cmd := range []domain.SqlCommand{"VACUUM", "PRAGMA journal_mode=WAL"} {
		out, err := m.Execute(ctx, h, cmd, "")
		require.NoError(t, err, "cmd=%q", cmd)
		assert.True(t, out.Executed)
	}

	ext, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer ext.Close()
	var mode string
	require.NoError(t, ext.QueryRow(`PRAGMA journal_mode`).Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestExecute_OpenTransactionRolledBack(t *testing.T) {
	path := usersDB(t)
	m, h := openManager(t, path)
	ctx := context.Background()

	// BEGIN IMMEDIATE 会持有写锁，若事务遗留在连接上，外部写入将失败
	out, err := m.Execute(ctx, h, "BEGIN IMMEDIATE", "")
	require.NoError(t, err)
	assert.True(t, out.Executed)

	ext, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer ext.Close()
	_, err = ext.Exec(`INSERT INTO users VALUES (9, 'Zed')`)
	require.NoError(t, err)

	_, err = m.Execute(ctx, h, "INSERT INTO users VALUES (3, 'Carol')", "")
	require.NoError(t, err)

	var n int
	require.NoError(t, ext.QueryRow(`SELECT count(*) FROM users`).Scan(&n))
	assert.Equal(t, 4, n)

	// 没有活动事务时 COMMIT 被引擎拒绝，句柄不受影响
	_, err = m.Execute(ctx, h, "COMMIT", "")
	assert.ErrorIs(t, err, port.ErrExecution)
	assert.NoError(t, m.HealthCheck(ctx))
}

func TestExecute_InvalidatesSchemaCache(t *testing.T) {
	m, h := openManager(t, usersDB(t))
	ctx := context.Background()

	tables, err := m.ListTables(ctx, h)
	require.NoError(t, err)
	require.Len(t, tables, 1)

	_, err = m.Execute(ctx, h, "CREATE TABLE orders (id INTEGER, total REAL)", "")
	require.NoError(t, err)

	tables, err = m.ListTables(ctx, h)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, domain.TableSchema{Name: "orders", Columns: []string{"id", "total"}}, tables[1])
}

// -----------------------------------------------------------------------------
// 使用 sqlmock 覆盖真实引擎难以触发的回滚 / 丢弃连接路径
// -----------------------------------------------------------------------------

func newMockManager(t *testing.T) (*Manager, *Handle, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	hh := &Handle{id: "mock", path: "mock.db", db: db}
	m := NewManager()
	m.current = hh
	return m, hh, mock
}

var errNoTx = errors.New("cannot rollback - no transaction is active")

func TestExecute_SuccessReportsRowsAffected(t *testing.T) {
	m, hh, mock := newMockManager(t)
	stmt := "UPDATE users SET name = upper(name)"

	mock.ExpectExec(regexp.QuoteMeta(stmt)).WillReturnResult(sqlmock.NewResult(0, 7))
	mock.ExpectExec("ROLLBACK").WillReturnError(errNoTx)

	out, err := m.Execute(context.Background(), hh, domain.SqlCommand(stmt), "users")
	require.NoError(t, err)
	assert.Equal(t, &domain.ExecOutcome{Executed: true, RowsAffected: 7, RefreshTable: "users"}, out)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 1, hh.db.Stats().OpenConnections)
}

func TestExecute_ExecFailureIssuesRollback(t *testing.T) {
	m, hh, mock := newMockManager(t)
	stmt := "DELETE FROM users"

	mock.ExpectExec(regexp.QuoteMeta(stmt)).WillReturnError(errors.New("no such table: users"))
	mock.ExpectExec("ROLLBACK").WillReturnError(errNoTx)

	_, err := m.Execute(context.Background(), hh, domain.SqlCommand(stmt), "")
	assert.ErrorIs(t, err, port.ErrExecution)
	assert.EqualError(t, err, "no such table: users")
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 1, hh.db.Stats().OpenConnections)
}

func TestExecute_LeftoverTransactionRolledBack(t *testing.T) {
	m, hh, mock := newMockManager(t)

	mock.ExpectExec("BEGIN").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("ROLLBACK").WillReturnResult(sqlmock.NewResult(0, 0))

	out, err := m.Execute(context.Background(), hh, "BEGIN", "")
	require.NoError(t, err)
	assert.True(t, out.Executed)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 1, hh.db.Stats().OpenConnections)
}

func TestExecute_FailedRollbackDiscardsConnection(t *testing.T) {
	m, hh, mock := newMockManager(t)
	stmt := "UPDATE users SET name = 'x'"

	mock.ExpectExec(regexp.QuoteMeta(stmt)).WillReturnError(errors.New("database is locked"))
	mock.ExpectExec("ROLLBACK").WillReturnError(errors.New("disk I/O error"))
	mock.ExpectClose()

	_, err := m.Execute(context.Background(), hh, domain.SqlCommand(stmt), "users")
	var execErr *port.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "database is locked", execErr.Error())
	assert.NoError(t, mock.ExpectationsWereMet())
	// 状态不明的连接已被关闭，不会再回到连接池
	assert.Equal(t, 0, hh.db.Stats().OpenConnections)
}

func TestExecute_ConnUnavailable(t *testing.T) {
	m, hh, _ := newMockManager(t)
	require.NoError(t, hh.db.Close())

	_, err := m.Execute(context.Background(), hh, "DELETE FROM users", "")
	assert.ErrorIs(t, err, port.ErrExecution)
}
