package device

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"emsgateway/pkg/generic"
	"emsgateway/pkg/storage"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *generic.Store[*Device] {
	fc, err := storage.NewFsClient(t.TempDir(), storage.StoreGroupDevice)
	require.NoError(t, err)
	return generic.NewStore[*Device](fc, storage.Devices, func() *Device { return &Device{} })
}

func TestRegisterAndReload(t *testing.T) {
	store := newStore(t)
	m := NewManager(store)

	inverter := New("INV1", KindPCS, Transport{})
	bms := New("BMS1", KindBMS, Transport{})
	bms.ParentSerial = "INV1"
	require.NoError(t, m.Register(inverter))
	require.NoError(t, m.Register(bms))
	require.NoError(t, m.Register(New("DHEMS1", KindDehumidifier, Transport{Type: TransportTcp, Address: DehumidifierAddress})))

	// re-registering the same serial updates in place
	require.NoError(t, m.Register(New("DHEMS1", KindDehumidifier, Transport{Type: TransportTcp, Address: "127.0.0.1:9000"})))

	reloaded := NewManager(store)
	require.NoError(t, reloaded.Init())
	assert.Len(t, reloaded.List(), 3)

	dh, ok := reloaded.Lookup("DHEMS1")
	require.True(t, ok)
	assert.Equal(t, "127.0.0.1:9000", dh.Transport.Address)

	children := reloaded.Children("INV1")
	require.Len(t, children, 1)
	assert.Equal(t, "BMS1", children[0].Serial)

	first, ok := reloaded.FirstOfKind(KindBMS)
	require.True(t, ok)
	assert.Equal(t, "BMS1", first.Serial)

	_, err := reloaded.Remove("BMS1")
	require.NoError(t, err)
	_, ok = reloaded.Lookup("BMS1")
	assert.False(t, ok)
	_, err = reloaded.Remove("BMS1")
	assert.Equal(t, ErrUnknownDevice, err)
}

func TestRegisterRejectsInvalid(t *testing.T) {
	m := NewManager(nil)
	err := m.Register(New("", KindBMS, Transport{}))
	assert.True(t, errors.Is(err, ErrInvalidDevice))
	err = m.Register(New("X", Kind("toaster"), Transport{}))
	assert.True(t, errors.Is(err, ErrInvalidDevice))
	err = m.Register(New("X", KindBMS, Transport{Type: TransportTcp}))
	assert.True(t, errors.Is(err, ErrInvalidDevice))
}

func TestDecode(t *testing.T) {
	ds, err := Decode([]map[string]interface{}{
		{
			"serial": "LC01",
			"kind":   "liquidCooling",
			"transport": map[string]interface{}{
				"type":     "serial",
				"address":  "/dev/ttyUSB1",
				"baudRate": 19200,
				"timeout":  "3s",
			},
		},
		{"serial": "BMS9", "kind": "bms", "parentSerial": "INV1"},
	})
	require.NoError(t, err)
	require.Len(t, ds, 2)
	assert.Equal(t, TransportSerial, ds[0].Transport.Type)
	assert.Equal(t, 3*time.Second, ds[0].Transport.Timeout)
	assert.Equal(t, 19200, ds[0].Transport.BaudRate)
	assert.Equal(t, "INV1", ds[1].ParentSerial)
	assert.False(t, ds[1].IsCommandDevice())

	_, err = Decode([]map[string]interface{}{{"serial": "Q", "kind": "nope"}})
	assert.Error(t, err)
}

type fakeMessenger struct {
	mu       sync.Mutex
	requests []string
	closed   int
}

func (f *fakeMessenger) Ask(_ context.Context, request string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, request)
	return "ACK" + request, nil
}

func (f *fakeMessenger) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func TestCommandDeviceOpensChannelPerCommand(t *testing.T) {
	fake := &fakeMessenger{}
	m := NewManager(nil, WithMessenger(func(ctx context.Context, tr Transport, timeout time.Duration) (Messenger, error) {
		return fake, nil
	}))
	require.NoError(t, m.Register(New("DH1", KindDehumidifier, Transport{Type: TransportTcp, Address: "x:1"})))
	require.NoError(t, m.Register(New("BMS1", KindBMS, Transport{})))

	cd, ok := m.CommandDevice("DH1")
	require.True(t, ok)
	for i := 0; i < 3; i++ {
		reply, err := cd.SendAndReceive(context.Background(), "0103")
		require.NoError(t, err)
		assert.Equal(t, "ACK0103", reply)
	}
	assert.Equal(t, 3, fake.closed)

	_, ok = m.CommandDevice("BMS1")
	assert.False(t, ok)
	_, ok = m.CommandDevice("missing")
	assert.False(t, ok)
}

func TestCommandDeviceDuringRemove(t *testing.T) {
	fake := &fakeMessenger{}
	m := NewManager(nil, WithMessenger(func(ctx context.Context, tr Transport, timeout time.Duration) (Messenger, error) {
		return fake, nil
	}))

	var wg sync.WaitGroup
	done := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			assert.NoError(t, m.Register(New("DH1", KindDehumidifier, Transport{Type: TransportTcp, Address: "x:1"})))
			_, _ = m.Remove("DH1")
		}
		close(done)
	}()

	for {
		select {
		case <-done:
			wg.Wait()
			return
		default:
		}
		if cd, ok := m.CommandDevice("DH1"); ok {
			_, err := cd.SendAndReceive(context.Background(), "0103")
			assert.NoError(t, err)
		}
	}
}

func TestTcpCommandDevice(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				buf := make([]byte, 64)
				n, _ := c.Read(buf)
				_, _ = c.Write([]byte("R" + string(buf[:n])))
			}(conn)
		}
	}()

	m := NewManager(nil)
	require.NoError(t, m.Register(New("DH1", KindDehumidifier, Transport{Type: TransportTcp, Address: ln.Addr().String(), Timeout: time.Second})))
	cd, ok := m.CommandDevice("DH1")
	require.True(t, ok)

	reply, err := cd.SendAndReceive(context.Background(), "0103759400041FE9")
	require.NoError(t, err)
	assert.Equal(t, "R0103759400041FE9", reply)
}

func TestTcpCommandDeviceUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	m := NewManager(nil)
	require.NoError(t, m.Register(New("DH1", KindDehumidifier, Transport{Type: TransportTcp, Address: addr, Timeout: 200 * time.Millisecond})))
	cd, _ := m.CommandDevice("DH1")
	_, err = cd.SendAndReceive(context.Background(), "0103")
	assert.Error(t, err)
}
