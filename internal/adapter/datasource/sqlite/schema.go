// file: internal/adapter/datasource/sqlite/schema.go
package sqlite

import (
	"LiteLens/internal/core/domain"
	"LiteLens/internal/core/port"
	"context"
	"fmt"
	"log/slog"
)

// ListTables 实现 port.Engine 接口：列出目录中的每张表及其列（按目录顺序）。
// 句柄无效时返回 port.ErrConnection，不返回部分结果。
func (m *Manager) ListTables(ctx context.Context, h port.Handle) ([]domain.TableSchema, error) {
	hh, err := m.resolve(h)
	if err != nil {
		return nil, err
	}

	if cached, ok := m.schemaCache.Get(hh.id); ok {
		return cloneSchemas(cached), nil
	}

	schemas, err := loadCatalog(ctx, hh)
	if err != nil {
		return nil, err
	}
	m.schemaCache.Add(hh.id, schemas)
	slog.Debug("[DBManager] 目录快照已加载", "path", hh.path, "tables", len(schemas))
	return cloneSchemas(schemas), nil
}

// Columns 返回单张表的列名。
func (m *Manager) Columns(ctx context.Context, h port.Handle, tableName string) ([]string, error) {
	schemas, err := m.ListTables(ctx, h)
	if err != nil {
		return nil, err
	}
	for _, s := range schemas {
		if s.Name == tableName {
			return s.Columns, nil
		}
	}
	return nil, fmt.Errorf("表 '%s': %w", tableName, port.ErrUnknownTable)
}

// loadCatalog 从数据库自身的目录读取表及列信息。
// 先完整读出表名再逐表查询列，句柄只有一个连接，不能嵌套打开结果集。
func loadCatalog(ctx context.Context, hh *Handle) ([]domain.TableSchema, error) {
	names, err := listTableNames(ctx, hh.db)
	if err != nil {
		return nil, fmt.Errorf("读取数据库 '%s' 的表清单失败: %w: %w", hh.path, port.ErrConnection, err)
	}

	schemas := make([]domain.TableSchema, 0, len(names))
	for _, name := range names {
		cols, errCols := listColumns(ctx, hh.db, name)
		if errCols != nil {
			return nil, fmt.Errorf("%w: %w", port.ErrConnection, errCols)
		}
		schemas = append(schemas, domain.TableSchema{Name: name, Columns: cols})
	}
	return schemas, nil
}

// cloneSchemas 复制一份快照，避免调用方修改缓存内容
func cloneSchemas(in []domain.TableSchema) []domain.TableSchema {
	out := make([]domain.TableSchema, len(in))
	for i, s := range in {
		cols := make([]string, len(s.Columns))
		copy(cols, s.Columns)
		out[i] = domain.TableSchema{Name: s.Name, Columns: cols}
	}
	return out
}
