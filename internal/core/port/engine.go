// Package port file: internal/core/port/engine.go
package port

import (
	"LiteLens/internal/core/domain"
	"context"
	"errors"
	"fmt"
)

// Standard errors
var (
	// ErrConnection 表示没有可用的打开句柄（未打开、已关闭或已被重新打开替换）。
	ErrConnection = errors.New("没有可用的数据库连接")
	// ErrUnknownTable 表示表名不在当前数据库目录中。
	ErrUnknownTable = errors.New("当前数据库中不存在指定的表")
	// ErrExecution 是所有 ExecutionError 的哨兵，便于 errors.Is 判断。
	ErrExecution = errors.New("SQL 执行失败")
)

// ExecutionError 携带底层引擎拒绝语句时的原始错误信息。
type ExecutionError struct {
	Statement string
	Err       error
}

func (e *ExecutionError) Error() string {
	return e.Err.Error()
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Is 让 errors.Is(err, ErrExecution) 对任意 ExecutionError 成立。
func (e *ExecutionError) Is(target error) bool {
	return target == ErrExecution
}

// NewExecutionError 包装引擎错误。
func NewExecutionError(stmt string, err error) *ExecutionError {
	if err == nil {
		err = fmt.Errorf("未知的执行错误")
	}
	return &ExecutionError{Statement: stmt, Err: err}
}

// Handle 是一个打开的数据库句柄的不透明视图。
type Handle interface {
	ID() string
	Path() string
}

// Engine 是数据库内省与查询执行核心的端口定义。
// 所有操作都是同步的；句柄由调用方显式持有并在每次调用时传入。
type Engine interface {
	// Open 打开 path 指向的数据库文件并替换当前句柄；path 为空或文件不存在时返回 (nil, nil)。
	Open(ctx context.Context, path string) (Handle, error)

	// Close 释放句柄，可重复调用。
	Close(h Handle) error

	// ListTables 按目录顺序列出所有表及其列
	ListTables(ctx context.Context, h Handle) ([]domain.TableSchema, error)

	// FetchRows 读取整张表并应用可选过滤条件
	FetchRows(ctx context.Context, h Handle, table string, filter *domain.SearchFilter) (*domain.RowSet, error)

	// Execute 执行一条任意 SQL 语句
	Execute(ctx context.Context, h Handle, cmd domain.SqlCommand, selectedTable string) (*domain.ExecOutcome, error)

	// HealthCheck 检查当前句柄是否可用
	HealthCheck(ctx context.Context) error

	// Type 返回适配器的类型标识符
	Type() string
}
