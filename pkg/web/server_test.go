package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"emsgateway/cmd/gateway/config"
	"emsgateway/pkg/agent"
	"emsgateway/pkg/device"
	"emsgateway/pkg/generic"
	"emsgateway/pkg/parameter"
	"emsgateway/pkg/runtime"
	"emsgateway/pkg/upgrade"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, closers ...runtime.LabeledCloser) *Server {
	t.Helper()
	dictionary := parameter.NewDictionary(nil)
	dictionary.Load(map[uint8]string{30: "UTC"})
	c := &config.Config{
		CollectorSerial: "EMS0001",
		DeviceMgr:       device.NewManager(nil),
		Dictionary:      dictionary,
		Agent:           agent.New("EMS0001", nil, dictionary, upgrade.NewTracker(), nil),
		Closers:         closers,
	}
	return NewServer(generic.Default(), "0", c)
}

func TestRoutes(t *testing.T) {
	s := newServer(t)
	require.NoError(t, s.DeviceMgr.Register(device.New("BMS01", device.KindBMS, device.Transport{})))

	cases := []struct {
		path string
		body string
	}{
		{path: "/", body: `"code":20000`},
		{path: "/api/v1/parameters", body: `"30":"UTC"`},
		{path: "/api/v1/devices", body: `"serial":"BMS01"`},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		s.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.path, nil))
		assert.Equal(t, http.StatusOK, w.Code, tc.path)
		assert.Contains(t, w.Body.String(), tc.body, tc.path)
	}

	// no gateway manager, no host status routes
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/gateway/meta", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestShutdownRunsClosersInOrder(t *testing.T) {
	var order []string
	closer := func(label string) runtime.LabeledCloser {
		return runtime.LabeledCloser{Label: label, Closer: func(context.Context) error {
			order = append(order, label)
			return nil
		}}
	}
	s := newServer(t, closer("uplink"), closer("bridge"), closer("influx"))

	shutdown, err := s.Serve()
	require.NoError(t, err)
	shutdown(context.Background())
	assert.Equal(t, []string{"uplink", "bridge", "influx"}, order)
}

func TestServeWithMissingCertificate(t *testing.T) {
	s := newServer(t)
	s.CertFile = "/nonexistent/cert.pem"
	s.KeyFile = "/nonexistent/key.pem"
	_, err := s.Serve()
	assert.Error(t, err)
}
