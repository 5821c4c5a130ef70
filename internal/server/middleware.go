package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/resource-matcher/internal/logger"
	"github.com/spigell/resource-matcher/internal/metrics"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	loggerKey       = "logger"
)

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqLog := logger.WithFields(log, logger.RequestFields(c.GetString(requestIDKey), "")...)
		c.Set(loggerKey, reqLog)

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		}
		status := c.Writer.Status()
		switch {
		case status >= 500:
			reqLog.Error("http request", fields...)
		case status >= 400:
			reqLog.Warn("http request", fields...)
		default:
			reqLog.Info("http request", fields...)
		}
	}
}

func requestMetrics(m *metrics.Metrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		c.Next()
		m.ObserveHTTP(routeOf(c), c.Request.Method, strconv.Itoa(c.Writer.Status()))
	}
}

func recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		requestLog(c).Error("panic while serving request", zap.Any("panic", recovered))
		respondError(c, http.StatusInternalServerError, errors.New("internal server error"))
	})
}

func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unknown"
}

func requestLog(c *gin.Context) *zap.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if log, ok := v.(*zap.Logger); ok {
			return log
		}
	}
	return zap.NewNop()
}

func respondError(c *gin.Context, status int, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
