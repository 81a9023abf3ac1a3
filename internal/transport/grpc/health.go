// Package grpctransport file: internal/transport/grpc/health.go
package grpctransport

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// EngineService 是健康检查中数据库引擎对应的服务名
const EngineService = "litelens.v1.Engine"

// StatusSource 报告数据库是否处于可用状态，*service.Session 通过适配函数满足它
type StatusSource interface {
	DatabaseOpen(ctx context.Context) bool
}

// StatusFunc 让普通函数满足 StatusSource
type StatusFunc func(ctx context.Context) bool

// DatabaseOpen 实现 StatusSource
func (f StatusFunc) DatabaseOpen(ctx context.Context) bool { return f(ctx) }

// HealthServer 包装标准 gRPC 健康服务，并按固定间隔同步引擎状态
type HealthServer struct {
	srv      *grpc.Server
	health   *health.Server
	source   StatusSource
	interval time.Duration
}

// NewHealthServer 创建带健康检查与反射服务的 gRPC 服务器
func NewHealthServer(source StatusSource, interval time.Duration) *HealthServer {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	hs := &HealthServer{
		srv:      grpc.NewServer(),
		health:   health.NewServer(),
		source:   source,
		interval: interval,
	}
	healthpb.RegisterHealthServer(hs.srv, hs.health)
	reflection.Register(hs.srv)
	// 进程本身始终可服务，引擎服务视数据库状态而定
	hs.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.health.SetServingStatus(EngineService, healthpb.HealthCheckResponse_NOT_SERVING)
	return hs
}

// Sync 立即根据数据库状态更新引擎服务的健康状态
func (hs *HealthServer) Sync(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if hs.source != nil && hs.source.DatabaseOpen(ctx) {
		st = healthpb.HealthCheckResponse_SERVING
	}
	hs.health.SetServingStatus(EngineService, st)
	return st
}

// Serve 在 lis 上提供服务，直到 ctx 结束后优雅停止
func (hs *HealthServer) Serve(ctx context.Context, lis net.Listener) error {
	go hs.syncLoop(ctx)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("[gRPC] 健康检查服务已启动", "addr", lis.Addr().String())
		errCh <- hs.srv.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		hs.health.Shutdown()
		hs.srv.GracefulStop()
		slog.Info("[gRPC] 健康检查服务已停止")
		return nil
	case err := <-errCh:
		return err
	}
}

func (hs *HealthServer) syncLoop(ctx context.Context) {
	ticker := time.NewTicker(hs.interval)
	defer ticker.Stop()
	hs.Sync(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hs.Sync(ctx)
		}
	}
}
