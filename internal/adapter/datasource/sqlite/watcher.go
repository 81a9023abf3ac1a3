// Package sqlite file: internal/adapter/datasource/sqlite/watcher.go
package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// StartWatcher 启动文件系统监视器，外部程序修改已打开的数据库文件时使目录快照失效。
// 阻塞直到 ctx 结束；未启用监视时立即返回。
func (m *Manager) StartWatcher(ctx context.Context) error {
	if !m.watchEnabled {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("创建 fsnotify watcher 失败: %w", err)
	}

	m.watchMu.Lock()
	m.watcher = watcher
	if m.watchedFile != "" {
		m.addWatchDirLocked(m.watchedFile)
	}
	m.watchMu.Unlock()

	defer func() {
		m.watchMu.Lock()
		m.watcher = nil
		if m.eventTimer != nil {
			m.eventTimer.Stop()
			m.eventTimer = nil
		}
		m.watchMu.Unlock()
		_ = watcher.Close()
	}()

	slog.Info("[Watcher] 文件监视已启动")
	for {
		select {
		case <-ctx.Done():
			slog.Info("[Watcher] 文件监视已停止")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				slog.Warn("[Watcher] 文件监视器事件通道已关闭")
				return nil
			}
			m.handleFsEvent(event)
		case errWatch, ok := <-watcher.Errors:
			if !ok {
				slog.Warn("[Watcher] 文件监视器错误通道已关闭")
				return nil
			}
			slog.Error("[Watcher] 文件监视器报告错误", "error", errWatch)
		}
	}
}

// watchFile 记录当前打开的文件；监视器运行中则立即开始监视其所在目录。
func (m *Manager) watchFile(path string) {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	m.watchedFile = path
	if m.watcher != nil {
		m.addWatchDirLocked(path)
	}
}

// unwatchFile 停止监视 path 所在目录
func (m *Manager) unwatchFile(path string) {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	if m.watchedFile != path {
		return
	}
	m.watchedFile = ""
	if m.watcher != nil {
		_ = m.watcher.Remove(filepath.Dir(path))
	}
}

// addWatchDirLocked 监视文件所在目录，fsnotify 对目录的监视能覆盖原子替换等情况。调用前必须持有 watchMu。
func (m *Manager) addWatchDirLocked(path string) {
	dir := filepath.Dir(path)
	if err := m.watcher.Add(dir); err != nil {
		slog.Warn("[Watcher] 添加监视目录失败", "dir", dir, "error", err)
		return
	}
	slog.Debug("[Watcher] 已监视数据库所在目录", "dir", dir)
}

// handleFsEvent 处理单个文件系统事件，只关心当前数据库文件及其 -wal/-journal 伴随文件。
func (m *Manager) handleFsEvent(event fsnotify.Event) {
	cleanPath := filepath.Clean(event.Name)

	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	target := m.watchedFile
	if target == "" || !isCompanionFile(target, cleanPath) {
		return
	}
	if event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename) {
		slog.Warn("[Watcher] 已打开的数据库文件被移除或重命名", "path", cleanPath)
	}

	// 防抖：短时间内的多次写入只触发一次失效
	if m.eventTimer != nil {
		m.eventTimer.Stop()
	}
	m.eventTimer = time.AfterFunc(m.debounce, m.processDebouncedEvent)
}

// processDebouncedEvent 在防抖后使当前句柄的目录快照失效。
func (m *Manager) processDebouncedEvent() {
	m.mu.RLock()
	cur := m.current
	m.mu.RUnlock()
	if cur == nil {
		return
	}
	slog.Info("[Watcher] 检测到数据库文件变更，目录快照将重新加载", "path", cur.path)
	m.invalidateSchema(cur.id)
}

func isCompanionFile(dbPath, candidate string) bool {
	switch candidate {
	case dbPath, dbPath + "-wal", dbPath + "-journal":
		return true
	}
	return false
}
