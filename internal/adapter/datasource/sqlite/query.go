// file: internal/adapter/datasource/sqlite/query.go
package sqlite

import (
	"LiteLens/internal/core/domain"
	"LiteLens/internal/core/port"
	"LiteLens/internal/observe"
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// FetchRows 实现 port.Engine 接口：读取整张表，然后在客户端应用过滤条件。
// 过滤在读取之后进行，与具体的 SQL 方言无关。
func (m *Manager) FetchRows(ctx context.Context, h port.Handle, tableName string, filter *domain.SearchFilter) (*domain.RowSet, error) {
	hh, err := m.resolve(h)
	if err != nil {
		return nil, err
	}

	rs, err := fetchAll(ctx, hh, tableName, filter)
	if err != nil {
		if errors.Is(err, port.ErrUnknownTable) {
			observe.FetchTotal.WithLabelValues("unknown_table").Inc()
		} else {
			observe.FetchTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}
	observe.FetchTotal.WithLabelValues("ok").Inc()
	observe.RowsReturned.Add(float64(len(rs.Rows)))
	return rs, nil
}

// fetchAll 是读取逻辑的内部核心实现。
func fetchAll(ctx context.Context, hh *Handle, tableName string, filter *domain.SearchFilter) (*domain.RowSet, error) {
	// 表名必须来自目录，查询文本中只出现目录里登记的标识符
	name, err := lookupTable(ctx, hh.db, tableName)
	if err != nil {
		return nil, err
	}

	rows, err := hh.db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(name))
	if err != nil {
		return nil, fmt.Errorf("查询表 '%s' 失败: %w", name, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("读取表 '%s' 的列失败: %w", name, err)
	}

	rs := &domain.RowSet{
		Table:   name,
		Columns: columns,
		Rows:    make([][]any, 0),
	}
	// BLOB 保持为 []byte，JSON 中按 base64 输出，不做有损的文本转换
	for rows.Next() {
		scanDest := make([]any, len(columns))
		scanDestPtrs := make([]any, len(columns))
		for i := range scanDest {
			scanDestPtrs[i] = &scanDest[i]
		}
		if errScan := rows.Scan(scanDestPtrs...); errScan != nil {
			return nil, fmt.Errorf("扫描表 '%s' 行数据失败: %w", name, errScan)
		}
		rs.Total++
		if rowMatches(filter, scanDest) {
			rs.Rows = append(rs.Rows, scanDest)
		}
	}
	if errRows := rows.Err(); errRows != nil {
		return nil, fmt.Errorf("迭代表 '%s' 行数据时发生错误: %w", name, errRows)
	}

	if filter != nil {
		slog.Debug("[DBManager] 过滤完成", "table", name, "filter", filter.Text(), "matched", len(rs.Rows), "total", rs.Total)
	}
	return rs, nil
}

// rowMatches 判断一行中是否至少有一个值满足前缀条件；filter 为 nil 时全部通过。
func rowMatches(filter *domain.SearchFilter, row []any) bool {
	if filter == nil {
		return true
	}
	for _, v := range row {
		if filter.MatchValue(valueText(v)) {
			return true
		}
	}
	return false
}
