// Package sqlite file: internal/adapter/datasource/sqlite/db_ops.go
package sqlite

import (
	"LiteLens/internal/core/port"
	"LiteLens/internal/observe"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Open 打开 path 指向的数据库文件，并使之成为唯一的活动句柄。
// path 为空或文件不存在时不做任何事，返回 (nil, nil)，当前句柄保持不变。
// 否则先释放旧句柄再打开新文件；打开失败时 Manager 处于 Closed 状态。
func (m *Manager) Open(ctx context.Context, path string) (port.Handle, error) {
	if path == "" {
		return nil, nil
	}
	cleanPath := filepath.Clean(path)
	info, err := os.Stat(cleanPath)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("[DBManager] 数据库文件不存在，忽略打开请求", "path", cleanPath)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取数据库文件 '%s' 信息失败: %w", cleanPath, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("'%s' 是目录而不是数据库文件", cleanPath)
	}

	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	m.mu.Lock()
	old := m.current
	m.current = nil
	m.mu.Unlock()
	if old != nil {
		m.release(old)
	}

	h, err := m.openHandle(ctx, cleanPath)
	if err != nil {
		observe.DBOpen.Set(0)
		return nil, err
	}

	m.mu.Lock()
	m.current = h
	m.mu.Unlock()
	observe.DBOpen.Set(1)
	m.watchFile(cleanPath)

	slog.Info("[DBManager] 成功打开数据库", "path", cleanPath, "handle", h.id)
	return h, nil
}

// openHandle 打开单个数据库文件并确认其确实是可读的 SQLite 数据库。
func (m *Manager) openHandle(ctx context.Context, path string) (*Handle, error) {
	dsn := fmt.Sprintf("file:%s?mode=rw&_pragma=busy_timeout(%d)", path, m.busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open '%s' 失败: %w", path, err)
	}
	// 一个句柄就是一个连接
	db.SetMaxOpenConns(1)

	if errPing := db.PingContext(ctx); errPing != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping 数据库 '%s' 失败: %w", path, errPing)
	}
	// Ping 不会读取文件头，这里读一次目录以排除非数据库文件
	if _, errProbe := listTableNames(ctx, db); errProbe != nil {
		_ = db.Close()
		return nil, fmt.Errorf("'%s' 不是可读的 SQLite 数据库: %w", path, errProbe)
	}

	return &Handle{id: uuid.NewString(), path: path, db: db}, nil
}

// Close 释放句柄；句柄为空、已关闭或已被替换时什么也不做。
func (m *Manager) Close(h port.Handle) error {
	hh, ok := h.(*Handle)
	if !ok || hh == nil {
		return nil
	}
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	m.mu.Lock()
	if m.current != hh {
		m.mu.Unlock()
		return nil
	}
	m.current = nil
	m.mu.Unlock()

	observe.DBOpen.Set(0)
	return m.release(hh)
}

// release 关闭底层连接并清理相关缓存。调用前 hh 必须已不再是 current。
func (m *Manager) release(hh *Handle) error {
	m.invalidateSchema(hh.id)
	m.unwatchFile(hh.path)
	if errClose := hh.db.Close(); errClose != nil {
		slog.Warn("[DBManager] 关闭数据库时发生错误", "path", hh.path, "error", errClose)
		return fmt.Errorf("关闭数据库 '%s' 失败: %w", hh.path, errClose)
	}
	slog.Info("[DBManager] 成功关闭数据库", "path", hh.path, "handle", hh.id)
	return nil
}

// Shutdown 关闭当前句柄（如果有），进程退出前调用。
func (m *Manager) Shutdown() error {
	m.mu.RLock()
	cur := m.current
	m.mu.RUnlock()
	if cur == nil {
		return nil
	}
	return m.Close(cur)
}

// HealthCheck 实现 port.Engine.HealthCheck
func (m *Manager) HealthCheck(ctx context.Context) error {
	m.mu.RLock()
	cur := m.current
	m.mu.RUnlock()
	if cur == nil {
		return port.ErrConnection
	}
	if err := cur.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", port.ErrConnection, err)
	}
	return nil
}
