package web

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"

	"emsgateway/cmd/gateway/config"
	"emsgateway/pkg/agent"
	"emsgateway/pkg/device"
	"emsgateway/pkg/gateway"
	"emsgateway/pkg/generic"
	"emsgateway/pkg/parameter"
	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"
)

type Server struct {
	*generic.Server
	*config.Config
}

func NewServer(router *gin.Engine, port string, config *config.Config) *Server {
	allowMethods := []string{http.MethodPost, http.MethodGet, http.MethodDelete, http.MethodPut, http.MethodPatch}

	s := &generic.Server{
		Router:  router,
		Port:    port,
		Methods: allowMethods,
	}

	server := &Server{
		Server: s,
		Config: config,
	}

	server.InstallHandlers()

	return server
}

// InstallHandlers mounts the agent routes at the root, they are fixed by the
// uplink agent, and the management api below /api/v1.
func (s *Server) InstallHandlers() {
	if s.Config.Agent != nil {
		agent.InstallHandler(s.Router.Group(""), s.Config.Agent)
	}

	v1 := s.Router.Group("/api/v1")
	if s.Config.DeviceMgr != nil {
		device.InstallHandler(v1, s.Config.DeviceMgr)
	}
	if s.Config.Dictionary != nil {
		parameter.InstallHandler(v1, s.Config.Dictionary)
	}
	if s.Config.GatewayMgr != nil {
		gateway.InstallHandler(v1.Group("/gateway"), s.Config.GatewayMgr)
	}
}

func (s *Server) Serve() (func(ctx context.Context), error) {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", s.Port),
		Handler: s.Router,
	}
	if len(s.Config.CertFile) != 0 && len(s.Config.KeyFile) != 0 {
		x509KeyPair, err := tls.LoadX509KeyPair(s.Config.CertFile, s.Config.KeyFile)
		if err != nil {
			return nil, err
		}
		srv.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{x509KeyPair},
		}
		go func() {
			if err := srv.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
				klog.ErrorS(err, "Failed to serve https")
			}
		}()
	} else {
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				klog.ErrorS(err, "Failed to serve http")
			}
		}()
	}

	return func(ctx context.Context) {
		srv.SetKeepAlivesEnabled(false)
		if err := srv.Shutdown(ctx); err != nil {
			klog.ErrorS(err, "Failed to shutdown http server")
		}
		for _, c := range s.Config.Closers {
			if err := c.Closer(ctx); err != nil {
				klog.ErrorS(err, "Failed to close", "component", c.Label)
				continue
			}
			klog.V(2).InfoS("Closed", "component", c.Label)
		}
	}, nil
}
