package parameter

import (
	"io"
	"net/http"

	"emsgateway/pkg/apis/response"
	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"
)

func InstallHandler(group *gin.RouterGroup, d *Dictionary) {
	group.GET("/parameters", listParameters(d))
	group.PATCH("/parameters", patchParameters(d))
}

func listParameters(d *Dictionary) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"parameters": d.Snapshot()})
	}
}

func patchParameters(d *Dictionary) gin.HandlerFunc {
	return func(c *gin.Context) {
		patch, err := io.ReadAll(c.Request.Body)
		if err != nil {
			klog.V(2).InfoS("Failed to get request body", "err", err)
			c.JSON(http.StatusBadRequest, response.ErrRequestBody)
			return
		}
		values, err := d.Patch(patch)
		if err != nil {
			klog.V(2).InfoS("Failed to patch parameters", "err", err)
			c.JSON(http.StatusBadRequest, response.ErrMalformedPatch(err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"parameters": values})
	}
}
