// Package middleware file: internal/transport/http/middleware/limiter.go
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

const (
	ipEntryTTL      = 15 * time.Minute
	ipCleanupPeriod = 10 * time.Minute
)

// RateLimiter 同时施加全局限制与按 IP 的限制。
// 不活跃 IP 的限制器由 go-cache 到期自动清理。
type RateLimiter struct {
	global  *rate.Limiter
	ips     *cache.Cache
	ipRate  rate.Limit
	ipBurst int
}

// NewRateLimiter 创建速率限制器，rate 单位为 req/s
func NewRateLimiter(globalRate float64, globalBurst int, ipRate float64, ipBurst int) *RateLimiter {
	rl := &RateLimiter{
		global:  rate.NewLimiter(rate.Limit(globalRate), globalBurst),
		ips:     cache.New(ipEntryTTL, ipCleanupPeriod),
		ipRate:  rate.Limit(ipRate),
		ipBurst: ipBurst,
	}
	slog.Info("[Limiter] 初始化完成",
		"global_rate", globalRate, "global_burst", globalBurst,
		"ip_rate", ipRate, "ip_burst", ipBurst)
	return rl
}

// limiterFor 返回或创建指定IP的速率限制器，每次访问都会顺延过期时间
func (rl *RateLimiter) limiterFor(ip string) *rate.Limiter {
	if v, found := rl.ips.Get(ip); found {
		lim := v.(*rate.Limiter)
		rl.ips.Set(ip, lim, cache.DefaultExpiration)
		return lim
	}
	lim := rate.NewLimiter(rl.ipRate, rl.ipBurst)
	if err := rl.ips.Add(ip, lim, cache.DefaultExpiration); err != nil {
		// 并发下已被其他请求创建
		if v, found := rl.ips.Get(ip); found {
			return v.(*rate.Limiter)
		}
	}
	return lim
}

// Allow 判断来自 ip 的请求是否放行
func (rl *RateLimiter) Allow(ip string) bool {
	if !rl.global.Allow() {
		return false
	}
	return rl.limiterFor(ip).Allow()
}

// Middleware 返回 gin 中间件，超限时返回 429
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !rl.Allow(ip) {
			slog.Warn("[Limiter] 请求过于频繁", "ip", ip, "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "请求过于频繁，请稍后再试"})
			return
		}
		c.Next()
	}
}
