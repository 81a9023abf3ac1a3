// Package sqlite file: internal/adapter/datasource/sqlite/exec.go
package sqlite

import (
	"LiteLens/internal/core/domain"
	"LiteLens/internal/core/port"
	"LiteLens/internal/observe"
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"log/slog"
	"strings"
)

// errMultipleStatements 命令中包含多于一条语句时返回
var errMultipleStatements = errors.New("You can only execute one statement at a time.")

// Execute 实现 port.Engine 接口：执行一条用户提交的任意 SQL。
//
// 这是有意开放的“执行任意 SQL”功能，语句原样交给引擎，不做清洗。
// 裁剪后为空的命令是空操作；包含多条语句的命令在执行任何内容之前被拒绝。
// 语句在一个独占连接上以自动提交模式执行，因此 VACUUM、PRAGMA journal_mode
// 以及事务控制语句都能直接运行。执行结束后若连接仍处于事务中则回滚，
// 回滚失败的连接被丢弃，句柄始终可以继续使用。
func (m *Manager) Execute(ctx context.Context, h port.Handle, cmd domain.SqlCommand, selectedTable string) (*domain.ExecOutcome, error) {
	stmt := cmd.Normalize()
	if stmt == "" {
		observe.ExecTotal.WithLabelValues("noop").Inc()
		return &domain.ExecOutcome{}, nil
	}

	hh, err := m.resolve(h)
	if err != nil {
		return nil, err
	}

	if countStatements(stmt) > 1 {
		return nil, m.execFailed(hh, stmt, errMultipleStatements)
	}

	conn, err := hh.db.Conn(ctx)
	if err != nil {
		return nil, m.execFailed(hh, stmt, err)
	}
	defer conn.Close()

	res, execErr := conn.ExecContext(ctx, stmt)
	m.resetConn(ctx, conn, hh)
	if execErr != nil {
		return nil, m.execFailed(hh, stmt, execErr)
	}

	// DDL 可能改变了目录
	m.invalidateSchema(hh.id)

	rowsAffected, _ := res.RowsAffected()
	observe.ExecTotal.WithLabelValues("ok").Inc()
	slog.Info("[DBManager Execute] SQL 执行成功", "path", hh.path, "rows_affected", rowsAffected)

	return &domain.ExecOutcome{
		Executed:     true,
		RowsAffected: rowsAffected,
		RefreshTable: selectedTable,
	}, nil
}

// resetConn 保证连接归还连接池时不在事务中。
// 调用方的 ctx 可能已经取消，回滚使用不会被取消的上下文。
func (m *Manager) resetConn(ctx context.Context, conn *sql.Conn, hh *Handle) {
	_, err := conn.ExecContext(context.WithoutCancel(ctx), "ROLLBACK")
	switch {
	case err == nil:
		slog.Warn("[DBManager Execute] 语句执行后仍有未结束的事务，已回滚", "path", hh.path)
	case strings.Contains(err.Error(), "no transaction is active"):
	default:
		slog.Warn("[DBManager Execute] 回滚失败，丢弃该连接", "path", hh.path, "error", err)
		// 返回 ErrBadConn 会让 database/sql 关闭并丢弃这个底层连接
		_ = conn.Raw(func(any) error { return driver.ErrBadConn })
	}
}

func (m *Manager) execFailed(hh *Handle, stmt string, err error) error {
	observe.ExecTotal.WithLabelValues("error").Inc()
	slog.Warn("[DBManager Execute] 引擎拒绝了 SQL 语句", "path", hh.path, "error", err)
	return port.NewExecutionError(stmt, err)
}
