package device

import (
	"net/http"

	"emsgateway/pkg/apis"
	"emsgateway/pkg/apis/response"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

func InstallHandler(group *gin.RouterGroup, mgr *Manager) {
	group.GET("/devices", listDevices(mgr))
	group.GET("/devices/:serial", getDevice(mgr))
	group.GET("/devices/:serial/children", listChildren(mgr))
	group.PUT("/devices/:serial", putDevice(mgr))
	group.DELETE("/devices/:serial", deleteDevice(mgr))
}

func listDevices(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"devices": mgr.List()})
	}
}

func getDevice(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		serial := c.Param("serial")
		d, ok := mgr.Lookup(serial)
		if !ok {
			c.JSON(http.StatusNotFound, response.ErrDeviceNotFound(serial))
			return
		}
		c.Header(apis.ETag, d.GetVersion())
		c.JSON(http.StatusOK, d)
	}
}

func listChildren(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"devices": mgr.Children(c.Param("serial"))})
	}
}

func putDevice(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		d := &Device{}
		if err := c.ShouldBindJSON(d); err != nil {
			klog.V(3).InfoS("Failed to bind device", "err", err)
			c.JSON(http.StatusBadRequest, response.ErrMalformedJSON)
			return
		}
		d.Serial = c.Param("serial")
		if len(d.Name) == 0 {
			d.Name = string(d.Kind)
		}
		if err := mgr.Register(d); err != nil {
			if errors.Is(err, ErrInvalidDevice) {
				c.JSON(http.StatusBadRequest, response.ErrDeviceInvalid(err))
				return
			}
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Header(apis.ETag, d.GetVersion())
		c.JSON(http.StatusOK, d)
	}
}

func deleteDevice(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		serial := c.Param("serial")
		d, ok := mgr.Lookup(serial)
		if !ok {
			c.JSON(http.StatusNotFound, response.ErrDeviceNotFound(serial))
			return
		}
		if v := c.GetHeader(apis.IfMatch); len(v) > 0 && v != d.GetVersion() {
			c.Status(http.StatusPreconditionFailed)
			return
		}
		if _, err := mgr.Remove(serial); err != nil {
			klog.V(2).InfoS("Failed to remove device", "device", serial, "err", err)
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
