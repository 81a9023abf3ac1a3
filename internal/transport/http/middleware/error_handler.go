// Package middleware file: internal/transport/http/middleware/error_handler.go
package middleware

import (
	"LiteLens/internal/core/port"
	"LiteLens/internal/service"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// ErrorHandlingMiddleware 是一个Gin中间件，用于集中处理错误。
// 处理器通过 c.Error(err) 附加错误后直接返回，由这里决定状态码和响应体。
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		// 我们只处理最后一个错误，因为它通常是根本原因
		lastError := c.Errors.Last()
		err := lastError.Err

		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数验证失败", "details": ve.Error()})
			return
		}
		if lastError.IsType(gin.ErrorTypeBind) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求体: " + err.Error()})
			return
		}

		var execErr *port.ExecutionError
		switch {
		case errors.As(err, &execErr):
			// 引擎给出的信息是最有用的诊断，原样返回
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": execErr.Error(), "kind": "execution"})

		case errors.Is(err, port.ErrUnknownTable):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "kind": "unknown_table"})

		case errors.Is(err, port.ErrConnection):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "kind": "connection"})

		case errors.Is(err, service.ErrBadCredentials), errors.Is(err, service.ErrInvalidToken):
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})

		default:
			slog.Error("[HTTP] 未分类的错误", "path", c.FullPath(), "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "服务器内部错误"})
		}
	}
}
