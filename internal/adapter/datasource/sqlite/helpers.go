// Package sqlite file: internal/adapter/datasource/sqlite/helpers.go
package sqlite

import (
	"LiteLens/internal/core/port"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// queryer 抽象出目录查询所需的最小能力，*sql.DB 与 *sql.Conn 都满足
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// listTableNames 按目录顺序返回 sqlite_master 中登记的所有表
func listTableNames(ctx context.Context, q queryer) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type='table'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	names := make([]string, 0)
	for rows.Next() {
		var tbl string
		if err := rows.Scan(&tbl); err != nil {
			return nil, fmt.Errorf("扫描表名失败: %w", err)
		}
		names = append(names, tbl)
	}
	return names, rows.Err()
}

// listColumns 返回指定表的列名，顺序与建表声明一致。
// 表名作为绑定参数传给 pragma_table_info，不拼接进 SQL 文本。
func listColumns(ctx context.Context, q queryer, tableName string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT name FROM pragma_table_info(?) ORDER BY cid`, tableName)
	if err != nil {
		return nil, fmt.Errorf("读取表 %q 的列信息失败: %w", tableName, err)
	}
	defer rows.Close()
	cols := make([]string, 0)
	for rows.Next() {
		var colName string
		if err := rows.Scan(&colName); err != nil {
			return nil, fmt.Errorf("扫描表 %q 的列名失败: %w", tableName, err)
		}
		cols = append(cols, colName)
	}
	return cols, rows.Err()
}

// lookupTable 在目录中查找表名，返回目录中登记的原始名称。
func lookupTable(ctx context.Context, q queryer, tableName string) (string, error) {
	if tableName == "" {
		return "", port.ErrUnknownTable
	}
	var name string
	err := q.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name = ?`, tableName).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("表 '%s': %w", tableName, port.ErrUnknownTable)
	}
	if err != nil {
		return "", fmt.Errorf("查询目录失败: %w: %w", port.ErrConnection, err)
	}
	return name, nil
}

// quoteIdent 把目录中取得的标识符包成双引号形式，内部的双引号加倍。
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// valueText 返回值用于搜索匹配的文本形式，NULL 视为空串
func valueText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}
