// file: internal/transport/http/router/router.go
package router

import (
	"LiteLens/internal/core/domain"
	"LiteLens/internal/observe"
	"LiteLens/internal/service"
	"LiteLens/internal/transport/http/middleware"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

// Dependencies 结构体用于将所有依赖项注入到路由器中
type Dependencies struct {
	Session *service.Session
	// Auth 为 nil 时不要求认证
	Auth        *service.Authenticator
	RateLimiter *middleware.RateLimiter
	// AllowRemote 为 false 且未启用认证时，数据库接口只接受本机回环地址的请求
	AllowRemote bool
}

// New 创建并配置一个基于 Gin 的 HTTP 路由器 (V1 版本)
func New(deps Dependencies) http.Handler {
	router := gin.New()

	// --- 配置全局中间件 ---
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(observe.PrometheusMiddleware())
	router.Use(gzip.Gzip(gzip.DefaultCompression))
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "Accept", middleware.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}))
	router.Use(middleware.ErrorHandlingMiddleware())

	router.GET("/healthz", healthHandler(deps.Session))
	router.GET("/metrics", gin.WrapH(observe.Handler()))

	v1 := router.Group("/api/v1")
	if deps.RateLimiter != nil {
		v1.Use(deps.RateLimiter.Middleware())
	}
	{
		if deps.Auth != nil {
			v1.POST("/auth/login", loginHandler(deps.Auth))
		}

		// --- 数据库平面 ---
		dbGroup := v1.Group("/db")
		if deps.Auth != nil {
			dbGroup.Use(authMiddleware(deps.Auth))
		} else if !deps.AllowRemote {
			dbGroup.Use(loopbackOnly())
		}
		{
			dbGroup.GET("/status", statusHandler(deps.Session))
			dbGroup.POST("/open", openHandler(deps.Session))
			dbGroup.POST("/close", closeHandler(deps.Session))
			dbGroup.GET("/tables", tablesHandler(deps.Session))
			dbGroup.POST("/select", selectHandler(deps.Session))
			dbGroup.GET("/rows", rowsHandler(deps.Session))
			dbGroup.POST("/exec", execHandler(deps.Session))
		}
	}

	return router
}

// =============================================================================
//  Gin 中间件 (Middleware)
// =============================================================================

// authMiddleware 把 service.Authenticator 集成到 gin 流程，并要求请求必须带有合法令牌
func authMiddleware(auth *service.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c.Request = r
		}))
		handler.ServeHTTP(c.Writer, c.Request)
		if service.ClaimFrom(c.Request) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "需要认证"})
			return
		}
		c.Next()
	}
}

// loopbackOnly 拒绝来自非本机地址的请求。
// 使用 TCP 对端地址，不信任 X-Forwarded-For 之类的请求头。
func loopbackOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := net.ParseIP(c.RemoteIP())
		if ip == nil || !ip.IsLoopback() {
			slog.Warn("[Router] 拒绝远程访问：未启用认证", "remote_ip", c.RemoteIP(), "path", c.FullPath())
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "未启用认证时只允许本机访问"})
			return
		}
		c.Next()
	}
}

// =============================================================================
//  处理器
// =============================================================================

func healthHandler(session *service.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		st := session.Status(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"status": "ok", "database_open": st.Open})
	}
}

// loginHandler 处理用户登录请求
func loginHandler(auth *service.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Username string `form:"username" json:"username" binding:"required"`
			Password string `form:"password" json:"password" binding:"required"`
		}
		if err := c.ShouldBind(&req); err != nil {
			_ = c.Error(err).SetType(gin.ErrorTypeBind)
			return
		}
		token, err := auth.Login(req.Username, req.Password)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "user": gin.H{"username": req.Username}})
	}
}

func statusHandler(session *service.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": session.Status(c.Request.Context())})
	}
}

// openHandler 打开数据库文件；空路径或不存在的文件是空操作，opened=false
func openHandler(session *service.Session) gin.HandlerFunc {
	type requestBody struct {
		Path string `json:"path"`
	}
	return func(c *gin.Context) {
		var req requestBody
		if err := c.ShouldBindJSON(&req); err != nil {
			_ = c.Error(err).SetType(gin.ErrorTypeBind)
			return
		}
		before := session.Status(c.Request.Context())
		tables, err := session.OpenDatabase(c.Request.Context(), req.Path)
		if err != nil {
			_ = c.Error(err)
			return
		}
		st := session.Status(c.Request.Context())
		if tables == nil {
			tables = []domain.TableSchema{}
		}
		opened := st.Open && st.HandleID != before.HandleID
		c.JSON(http.StatusOK, gin.H{"opened": opened, "data": tables, "status": st})
	}
}

func closeHandler(session *service.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := session.Close(); err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "closed"})
	}
}

func tablesHandler(session *service.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		tables, err := session.ListTables(c.Request.Context())
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": tables})
	}
}

func selectHandler(session *service.Session) gin.HandlerFunc {
	type requestBody struct {
		Table string `json:"table" binding:"required"`
	}
	return func(c *gin.Context) {
		var req requestBody
		if err := c.ShouldBindJSON(&req); err != nil {
			_ = c.Error(err).SetType(gin.ErrorTypeBind)
			return
		}
		rs, err := session.SelectTable(c.Request.Context(), req.Table)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": rs})
	}
}

// rowsHandler 读取表数据：带 q 参数时是搜索，否则是刷新；table 省略时使用当前选中表
func rowsHandler(session *service.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		table := c.Query("table")
		var (
			rs  *domain.RowSet
			err error
		)
		if q, has := c.GetQuery("q"); has {
			rs, err = session.Search(c.Request.Context(), table, q)
		} else {
			rs, err = session.Refresh(c.Request.Context(), table)
		}
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": rs})
	}
}

// execHandler 执行任意 SQL。成功时 refresh_table 告诉前端需要重新加载哪张表
func execHandler(session *service.Session) gin.HandlerFunc {
	type requestBody struct {
		Command string `json:"command"`
	}
	return func(c *gin.Context) {
		var req requestBody
		if err := c.ShouldBindJSON(&req); err != nil {
			_ = c.Error(err).SetType(gin.ErrorTypeBind)
			return
		}
		out, err := session.RunSQL(c.Request.Context(), req.Command)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": out, "message": "SQL 执行成功"})
	}
}
