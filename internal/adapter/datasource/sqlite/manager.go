// Package sqlite 单文件 SQLite 内省与查询执行引擎
// internal/adapter/datasource/sqlite/manager.go
package sqlite

import (
	"LiteLens/internal/core/domain"
	"LiteLens/internal/core/port"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	_ "modernc.org/sqlite"
)

// 断言 *Manager 实现 port.Engine 接口，编译期校验
var _ port.Engine = (*Manager)(nil)

const (
	defaultBusyTimeout     = 5 * time.Second
	defaultSchemaCacheSize = 16
	defaultSchemaCacheTTL  = 5 * time.Minute
	defaultDebounce        = 500 * time.Millisecond
)

// Handle 是对单个数据库文件的一次打开。
// 每次成功 Open 都会生成新的 id，旧句柄随即失效。
type Handle struct {
	id   string
	path string
	db   *sql.DB
}

// ID 返回句柄的唯一标识
func (h *Handle) ID() string { return h.id }

// Path 返回句柄对应的文件路径
func (h *Handle) Path() string { return h.path }

// Manager 是 SQLite 数据源适配器的核心结构体。
// 进程内同一时刻最多只有一个活动句柄；重新 Open 会先释放旧句柄。
type Manager struct {
	// lifecycleMu 串行化 Open/Close，mu 只保护 current 的读写
	lifecycleMu sync.Mutex
	mu          sync.RWMutex
	current     *Handle

	busyTimeout time.Duration

	// schemaCache 按句柄 id 缓存目录快照，执行成功或文件变更时失效
	schemaCache *lru.LRU[string, []domain.TableSchema]

	watchEnabled bool
	debounce     time.Duration
	watchMu      sync.Mutex
	watcher      *fsnotify.Watcher
	watchedFile  string
	eventTimer   *time.Timer
}

// Option 用于定制 Manager
type Option func(*Manager)

// WithBusyTimeout 设置 SQLite 的 busy_timeout
func WithBusyTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.busyTimeout = d
		}
	}
}

// WithSchemaCache 设置目录快照缓存的容量与过期时间
func WithSchemaCache(size int, ttl time.Duration) Option {
	return func(m *Manager) {
		if size <= 0 {
			size = defaultSchemaCacheSize
		}
		if ttl <= 0 {
			ttl = defaultSchemaCacheTTL
		}
		m.schemaCache = lru.NewLRU[string, []domain.TableSchema](size, nil, ttl)
	}
}

// WithWatch 控制是否监视已打开文件的外部修改
func WithWatch(enabled bool, debounce time.Duration) Option {
	return func(m *Manager) {
		m.watchEnabled = enabled
		if debounce > 0 {
			m.debounce = debounce
		}
	}
}

// NewManager 创建一个新的 Manager 实例，初始状态为 Closed。
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		busyTimeout: defaultBusyTimeout,
		schemaCache: lru.NewLRU[string, []domain.TableSchema](defaultSchemaCacheSize, nil, defaultSchemaCacheTTL),
		debounce:    defaultDebounce,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Type 实现 port.Engine.Type 接口，返回适配器类型。
func (m *Manager) Type() string {
	return "sqlite"
}

// IsOpen 报告当前是否存在活动句柄
func (m *Manager) IsOpen() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current != nil
}

// resolve 校验调用方传入的句柄仍是当前活动句柄。
func (m *Manager) resolve(h port.Handle) (*Handle, error) {
	hh, ok := h.(*Handle)
	if !ok || hh == nil {
		return nil, port.ErrConnection
	}
	m.mu.RLock()
	cur := m.current
	m.mu.RUnlock()
	if cur != hh {
		return nil, fmt.Errorf("句柄 %s (%s) 已失效: %w", hh.id, hh.path, port.ErrConnection)
	}
	return hh, nil
}

// invalidateSchema 丢弃句柄的目录快照
func (m *Manager) invalidateSchema(id string) {
	if m.schemaCache.Remove(id) {
		slog.Debug("[DBManager] 目录快照缓存已失效", "handle", id)
	}
}
