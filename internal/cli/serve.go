// file: internal/cli/serve.go
package cli

import (
	"LiteLens/internal/config"
	"LiteLens/internal/observe"
	"LiteLens/internal/service"
	grpctransport "LiteLens/internal/transport/grpc"
	"LiteLens/internal/transport/http/middleware"
	"LiteLens/internal/transport/http/router"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP API 服务",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	slog.Info("LiteLens 正在启动...", "version", Version)

	if observe.ParseLevel(cfg.Server.LogLevel) != slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}
	observe.Register()
	observe.EnablePprof(cfg.Server.PprofAddr)

	mgr := newManager(cfg, true)
	session := service.NewSession(mgr)
	defer func() {
		slog.Info("正在关闭数据库句柄...")
		if err := session.Close(); err != nil {
			slog.Error("关闭数据库时发生错误", "error", err)
		}
	}()

	if cfg.Database.Path != "" {
		tables, err := session.OpenDatabase(ctx, cfg.Database.Path)
		switch {
		case err != nil:
			// 启动时打不开不是致命错误，可以稍后通过 API 重新打开
			slog.Warn("启动时打开数据库失败", "path", cfg.Database.Path, "error", err)
		case !session.Status(ctx).Open:
			slog.Warn("启动时指定的数据库文件不存在", "path", cfg.Database.Path)
		default:
			slog.Info("启动时已打开数据库", "path", cfg.Database.Path, "tables", len(tables))
		}
	}

	var auth *service.Authenticator
	if cfg.AuthEnabled() {
		var err error
		if auth, err = service.NewAuthenticator(cfg.Auth); err != nil {
			return fmt.Errorf("初始化认证失败: %w", err)
		}
		slog.Info("JWT 认证已启用", "users", len(cfg.Auth.Users))
	} else {
		slog.Warn("未配置 auth.jwt_secret，HTTP API 不要求认证", "allow_remote", cfg.Server.AllowRemoteWithoutAuth)
	}

	limiter := middleware.NewRateLimiter(cfg.Limits.GlobalRate, cfg.Limits.GlobalBurst, cfg.Limits.IPRate, cfg.Limits.IPBurst)
	handler := router.New(router.Dependencies{
		Session:     session,
		Auth:        auth,
		RateLimiter: limiter,
		AllowRemote: cfg.AllowRemote(),
	})
	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return mgr.StartWatcher(gctx)
	})

	g.Go(func() error {
		slog.Info("HTTP 服务已启动", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP 服务异常退出: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("收到退出信号，正在优雅关闭 HTTP 服务...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.Server.GRPCPort > 0 {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
		if err != nil {
			return fmt.Errorf("监听 gRPC 端口 %d 失败: %w", cfg.Server.GRPCPort, err)
		}
		hs := grpctransport.NewHealthServer(grpctransport.StatusFunc(func(ctx context.Context) bool {
			return session.Status(ctx).Open
		}), 5*time.Second)
		g.Go(func() error {
			return hs.Serve(gctx, lis)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("LiteLens 已退出")
	return nil
}
