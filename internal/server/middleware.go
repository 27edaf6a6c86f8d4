package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/cfdi-tracker/internal/common"
	"github.com/joseph-ayodele/cfdi-tracker/internal/metrics"
)

// HeaderRequestID carries the request ID in both directions.
const HeaderRequestID = "X-Request-ID"

// requestID reuses the caller's X-Request-ID or assigns a new one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), id))
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

func accessLog(logger *slog.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		elapsed := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		code := c.Writer.Status()
		if m != nil {
			m.RecordHTTPRequest(route, strconv.Itoa(code), elapsed)
		}
		common.LoggerFromContext(c.Request.Context(), logger).Info("http.request",
			"method", c.Request.Method,
			"route", route,
			"status", code,
			"bytes", c.Writer.Size(),
			"elapsed_ms", elapsed.Milliseconds(),
		)
	}
}

func recovery(logger *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, err any) {
		common.LoggerFromContext(c.Request.Context(), logger).Error("http.request.panic",
			"route", c.FullPath(), "panic", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{
			Error:   http.StatusText(http.StatusInternalServerError),
			Message: "internal error",
			Code:    http.StatusInternalServerError,
		})
	})
}
