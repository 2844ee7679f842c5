package generic

import (
	"time"

	"emsgateway/pkg/apis"
	"emsgateway/pkg/utils/uuidutil"
	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"
)

func Default() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(logger(), gin.Recovery())
	return engine
}

// logger tags every request with an id and logs it once it is served.
func logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		requestID := c.GetHeader(apis.RequestID)
		if len(requestID) == 0 {
			requestID = uuidutil.ShortUUID()
		}
		c.Set(apis.RequestID, requestID)
		c.Header(apis.RequestID, requestID)

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}
		klog.V(4).InfoS("Received HTTP request",
			"requestId", requestID,
			"verb", c.Request.Method,
			"URI", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}
