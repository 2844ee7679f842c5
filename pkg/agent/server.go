package agent

import (
	"io"
	"net/http"
	"strings"

	"emsgateway/pkg/apis/response"
	"emsgateway/pkg/telemetry"
	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"
)

const (
	statusOK = "00"
	replyOK  = "ok"
)

// InstallHandler registers the agent endpoints. Every answer is HTTP 200 with
// the result carried in the envelope.
func InstallHandler(group *gin.RouterGroup, a *Agent) {
	group.GET("/", health())
	group.POST("/device/ems/command", emsCommand(a))
	group.POST("/device/box/command", boxCommand(a))
	group.POST("/device/box/read", boxRead(a))
	group.POST("/update/progress", reportProgress(a))
	group.POST("/device/update/getProcess", getProgress(a))
	group.POST("/data/realtime/read/ems/device", readRealtime(a))
	group.POST("/device/ems/getConfig", readConfig(a))
	group.POST("/data/realtime/write", writeRealtime(a))
	group.POST("/data/realtime/read", readDevice(a))
}

func health() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, response.Success(nil))
	}
}

func bindBytes(c *gin.Context) ([]byte, bool) {
	var values []int
	if err := c.ShouldBindJSON(&values); err != nil {
		klog.V(2).InfoS("Failed to parse request body", "path", c.FullPath(), "err", err)
		c.JSON(http.StatusOK, response.Failure(nil))
		return nil, false
	}
	return Bytes(values), true
}

func emsCommand(a *Agent) gin.HandlerFunc {
	return func(c *gin.Context) {
		b, ok := bindBytes(c)
		if !ok {
			return
		}
		cmd, err := ParseCommand(b)
		if err != nil {
			klog.V(2).InfoS("Failed to parse ems command", "len", len(b), "err", err)
			c.JSON(http.StatusOK, response.Failure(nil))
			return
		}
		klog.V(2).InfoS("Received ems command", "device", cmd.DeviceSerial, "payload", cmd.Payload)
		result := a.commander.Route(c.Request.Context(), *cmd)
		klog.V(2).InfoS("Answered ems command", "device", cmd.DeviceSerial, "result", result)
		c.JSON(http.StatusOK, response.Success(response.OptionalString(result)))
	}
}

func boxCommand(a *Agent) gin.HandlerFunc {
	return func(c *gin.Context) {
		b, ok := bindBytes(c)
		if !ok {
			return
		}
		settings, err := ParseBoxCommand(b)
		if err != nil {
			klog.V(2).InfoS("Failed to parse box command", "len", len(b), "err", err)
			c.JSON(http.StatusOK, response.Failure(nil))
			return
		}
		a.ApplySettings(c.Request.Context(), settings)
		c.JSON(http.StatusOK, response.Success(replyOK))
	}
}

func boxRead(a *Agent) gin.HandlerFunc {
	return func(c *gin.Context) {
		b, ok := bindBytes(c)
		if !ok {
			return
		}
		r, err := ParseBoxRead(b)
		if err != nil {
			klog.V(2).InfoS("Failed to parse box read", "len", len(b), "err", err)
			c.JSON(http.StatusOK, response.Failure(nil))
			return
		}
		c.JSON(http.StatusOK, response.Success(a.ReadParameters(r)))
	}
}

func reportProgress(a *Agent) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			klog.V(2).InfoS("Failed to get request body", "err", err)
			c.JSON(http.StatusOK, response.Failure(nil))
			return
		}
		if err = a.tracker.Report(strings.TrimSpace(string(body))); err != nil {
			klog.V(2).InfoS("Failed to parse progress", "body", string(body), "err", err)
			c.JSON(http.StatusOK, response.Failure(nil))
			return
		}
		c.JSON(http.StatusOK, response.Success(nil))
	}
}

func getProgress(a *Agent) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, response.Success(a.tracker.Progress(a.collectorSerial)))
	}
}

func readRealtime(a *Agent) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := a.reporter.Realtime(c.Request.Context())
		if err != nil {
			klog.V(2).InfoS("Failed to assemble realtime report", "err", err)
			c.JSON(http.StatusOK, response.Failure(nil))
			return
		}
		c.JSON(http.StatusOK, response.Success(doc))
	}
}

func readConfig(a *Agent) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := a.reporter.Config(c.Request.Context())
		if err != nil {
			klog.V(2).InfoS("Failed to assemble config report", "err", err)
			c.JSON(http.StatusOK, response.Failure(nil))
			return
		}
		c.JSON(http.StatusOK, response.Success(doc))
	}
}

func writeRealtime(a *Agent) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.writer == nil {
			c.JSON(http.StatusOK, response.Failure(nil))
			return
		}
		batch := &telemetry.Batch{}
		if err := c.ShouldBindJSON(batch); err != nil {
			klog.V(2).InfoS("Failed to parse realtime data", "err", err)
			c.JSON(http.StatusOK, response.Failure(nil))
			return
		}
		if err := a.writer.Write(c.Request.Context(), batch); err != nil {
			c.JSON(http.StatusOK, response.Failure(nil))
			return
		}
		c.JSON(http.StatusOK, response.Success(nil))
	}
}

func readDevice(a *Agent) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.querier == nil {
			c.JSON(http.StatusOK, response.Failure(nil))
			return
		}
		q := &telemetry.DeviceQuery{}
		if err := c.ShouldBindJSON(q); err != nil {
			klog.V(2).InfoS("Failed to parse realtime query", "err", err)
			c.JSON(http.StatusOK, response.Failure(nil))
			return
		}
		if err := q.Validate(); err != nil {
			klog.V(2).InfoS("Rejected realtime query", "device", q.DeviceSN, "err", err)
			c.JSON(http.StatusOK, response.Failure(nil))
			return
		}
		records, err := a.querier.Query(c.Request.Context(), q)
		if err != nil {
			c.JSON(http.StatusOK, response.Failure(nil))
			return
		}
		c.JSON(http.StatusOK, response.Success(records))
	}
}
