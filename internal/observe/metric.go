// Package observe 暴露 Prometheus 指标
package observe

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 指标定义
var (
	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "litelens_http_request_duration_seconds",
		Help:    "HTTP 请求耗时",
		Buckets: prometheus.DefBuckets,
	}, []string{"path", "method", "code"})

	// FetchTotal 按结果统计 FetchRows 调用
	FetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "litelens_fetch_total",
		Help: "表数据读取次数",
	}, []string{"result"})

	// RowsReturned 统计过滤后返回的行数
	RowsReturned = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "litelens_rows_returned_total",
		Help: "返回给调用方的行数",
	})

	// ExecTotal 按结果 (ok/noop/error) 统计 SQL 执行
	ExecTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "litelens_exec_total",
		Help: "SQL 执行次数",
	}, []string{"result"})

	// DBOpen 当前是否有打开的数据库
	DBOpen = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "litelens_database_open",
		Help: "是否存在活动的数据库句柄 (0/1)",
	})
)

// Register 必须在 main 调用一次
func Register() {
	prometheus.MustRegister(httpRequestDuration, FetchTotal, RowsReturned, ExecTotal, DBOpen)
}

// Handler 返回 HTTP 处理器
func Handler() http.Handler { return promhttp.Handler() }

// PrometheusMiddleware 记录每个请求的耗时，path 取路由模板以控制标签基数
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequestDuration.
			WithLabelValues(path, c.Request.Method, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
