package metrics

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ceyewan/scopestat/clog"
)

// GinHTTPMiddleware 返回一个可重用的 Gin 中间件，用于记录 HTTP RED 指标
func GinHTTPMiddleware(httpMetrics *HTTPServerMetrics, opts ...Option) gin.HandlerFunc {
	logger := newOptions(opts...).logger
	return func(c *gin.Context) {
		if httpMetrics == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			// 未命中路由时统一收敛，避免将原始 URL Path 作为标签导致高基数
			route = UnknownRoute
		}

		if err := httpMetrics.Observe(c.Request.Method, route, c.Writer.Status(), time.Since(start)); err != nil {
			logger.WarnContext(c.Request.Context(), "record http metrics failed", clog.String("route", route), clog.Error(err))
		}
	}
}

// GinHandler 以 Gin 路由的形式暴露 reg
//
//	r.GET("/metrics", metrics.GinHandler(reg))
func GinHandler(reg *Registry, opts ...Option) gin.HandlerFunc {
	return gin.WrapH(Handler(reg, opts...))
}
