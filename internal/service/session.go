// Package service file: internal/service/session.go
package service

import (
	"LiteLens/internal/core/domain"
	"LiteLens/internal/core/port"
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Session 是表现层持有的唯一句柄及当前选中的表。
// 核心引擎本身不保存“当前数据库”，由 Session 显式传入句柄；重新打开时由 Session 负责替换。
type Session struct {
	engine port.Engine

	mu       sync.RWMutex
	handle   port.Handle
	selected string
}

// Status 是 Session 的只读快照
type Status struct {
	Open          bool   `json:"open"`
	Path          string `json:"path,omitempty"`
	HandleID      string `json:"handle_id,omitempty"`
	SelectedTable string `json:"selected_table,omitempty"`
	Engine        string `json:"engine"`
}

// NewSession 创建 Session
func NewSession(engine port.Engine) *Session {
	if engine == nil {
		panic("service.NewSession: engine 不能为 nil")
	}
	return &Session{engine: engine}
}

func (s *Session) snapshot() (port.Handle, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handle, s.selected
}

// OpenDatabase 打开数据库文件并返回其表清单。
// path 为空或文件不存在时什么也不做，返回 (nil, nil)。
func (s *Session) OpenDatabase(ctx context.Context, path string) ([]domain.TableSchema, error) {
	h, err := s.engine.Open(ctx, path)
	if err != nil {
		// 打开失败时旧句柄可能已被释放
		if errHealth := s.engine.HealthCheck(ctx); errHealth != nil {
			s.reset()
		}
		return nil, err
	}
	if h == nil {
		slog.Debug("[Session] 忽略空路径或不存在的文件", "path", path)
		return nil, nil
	}

	s.mu.Lock()
	s.handle = h
	s.selected = ""
	s.mu.Unlock()

	return s.engine.ListTables(ctx, h)
}

// ListTables 列出当前数据库的表
func (s *Session) ListTables(ctx context.Context) ([]domain.TableSchema, error) {
	h, _ := s.snapshot()
	return s.engine.ListTables(ctx, h)
}

// SelectTable 选中一张表并返回它的全部数据；失败时保持原有选择不变。
func (s *Session) SelectTable(ctx context.Context, table string) (*domain.RowSet, error) {
	h, _ := s.snapshot()
	rs, err := s.engine.FetchRows(ctx, h, table, nil)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.handle == h {
		s.selected = rs.Table
	}
	s.mu.Unlock()
	return rs, nil
}

// Search 用前缀过滤条件读取表数据；空白的 text 等同于不过滤。
// table 为空时使用当前选中的表。
func (s *Session) Search(ctx context.Context, table, text string) (*domain.RowSet, error) {
	h, target, err := s.target(table)
	if err != nil {
		return nil, err
	}
	return s.engine.FetchRows(ctx, h, target, domain.NewSearchFilter(text))
}

// Refresh 不带过滤条件重新读取表数据；table 为空时使用当前选中的表。
func (s *Session) Refresh(ctx context.Context, table string) (*domain.RowSet, error) {
	h, target, err := s.target(table)
	if err != nil {
		return nil, err
	}
	return s.engine.FetchRows(ctx, h, target, nil)
}

// RunSQL 执行任意 SQL；成功时结果中带有需要刷新的选中表。
func (s *Session) RunSQL(ctx context.Context, command string) (*domain.ExecOutcome, error) {
	h, selected := s.snapshot()
	return s.engine.Execute(ctx, h, domain.SqlCommand(command), selected)
}

// Close 关闭当前句柄，可重复调用
func (s *Session) Close() error {
	s.mu.Lock()
	h := s.handle
	s.handle = nil
	s.selected = ""
	s.mu.Unlock()
	if h == nil {
		return nil
	}
	return s.engine.Close(h)
}

// Status 返回当前状态
func (s *Session) Status(ctx context.Context) Status {
	h, selected := s.snapshot()
	st := Status{Engine: s.engine.Type(), SelectedTable: selected}
	if h != nil && s.engine.HealthCheck(ctx) == nil {
		st.Open = true
		st.Path = h.Path()
		st.HandleID = h.ID()
	}
	return st
}

func (s *Session) target(table string) (port.Handle, string, error) {
	h, selected := s.snapshot()
	if table != "" {
		return h, table, nil
	}
	if selected == "" {
		return nil, "", fmt.Errorf("未选择任何表: %w", port.ErrUnknownTable)
	}
	return h, selected, nil
}

func (s *Session) reset() {
	s.mu.Lock()
	s.handle = nil
	s.selected = ""
	s.mu.Unlock()
}
