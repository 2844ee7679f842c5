package bridge

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLink(t *testing.T) *Link {
	t.Helper()
	l := NewLink("127.0.0.1:0")
	require.NoError(t, l.Start(context.Background()))
	t.Cleanup(l.Stop)
	return l
}

func dialBridge(t *testing.T, l *Link) net.Conn {
	t.Helper()
	before := l.Accepted()
	conn, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return l.Accepted() > before && l.Connected() }, 2*time.Second, 5*time.Millisecond)
	return conn
}

// echo answers every read with prefix+payload.
func echo(conn net.Conn, prefix string) {
	go func() {
		buf := make([]byte, bufferSize)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				return
			}
			if _, err := conn.Write([]byte(prefix + string(buf[:n]))); err != nil {
				return
			}
		}
	}()
}

func TestSendWithoutClient(t *testing.T) {
	l := startLink(t)

	start := time.Now()
	reply, ok, err := l.SendAndReceive(context.Background(), "010375940004", time.Minute)
	assert.True(t, errors.Is(err, ErrNotConnected))
	assert.False(t, ok)
	assert.Empty(t, reply)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSendAndReceive(t *testing.T) {
	l := startLink(t)
	conn := dialBridge(t, l)
	echo(conn, "ACK")

	reply, ok, err := l.SendAndReceive(context.Background(), "010375940004", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ACK010375940004", reply)
}

func TestSendTimeoutIsNoData(t *testing.T) {
	l := startLink(t)
	conn := dialBridge(t, l)
	go func() { _, _ = bufio.NewReader(conn).ReadString('\n') }()

	reply, ok, err := l.SendAndReceive(context.Background(), "010375940004", 50*time.Millisecond)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, reply)
}

func TestUpgradeCommandDoesNotWait(t *testing.T) {
	l := startLink(t)
	conn := dialBridge(t, l)
	received := make(chan string, 1)
	go func() {
		buf := make([]byte, bufferSize)
		n, _ := conn.Read(buf)
		received <- string(buf[:n])
	}()

	start := time.Now()
	_, ok, err := l.SendAndReceive(context.Background(), `{"type":"upgrade","url":"http://x"}`, time.Minute)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), time.Second)
	assert.Contains(t, <-received, "upgrade")
}

func TestStaleReplyIsDropped(t *testing.T) {
	l := startLink(t)
	conn := dialBridge(t, l)

	_, err := conn.Write([]byte("UNSOLICITED"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(l.responses) == 1 }, time.Second, 5*time.Millisecond)

	echo(conn, "ACK")
	reply, ok, err := l.SendAndReceive(context.Background(), "0103", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ACK0103", reply)
}

func TestConcurrentCallersGetOwnReply(t *testing.T) {
	l := startLink(t)
	conn := dialBridge(t, l)
	echo(conn, "")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg := fmt.Sprintf("01%02X", i)
			reply, ok, err := l.SendAndReceive(context.Background(), msg, 2*time.Second)
			assert.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, msg, reply)
		}(i)
	}
	wg.Wait()
}

func TestDisconnectClearsClient(t *testing.T) {
	l := startLink(t)
	conn := dialBridge(t, l)
	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return !l.Connected() }, 2*time.Second, 5*time.Millisecond)

	_, _, err := l.SendAndReceive(context.Background(), "0103", time.Second)
	assert.True(t, errors.Is(err, ErrNotConnected))
}

func TestNewClientReplacesOld(t *testing.T) {
	l := startLink(t)
	first := dialBridge(t, l)
	second := dialBridge(t, l)
	echo(second, "NEW")

	// the first session is closed by the gateway
	_ = first.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err := first.Read(make([]byte, 1))
	assert.Error(t, err)

	reply, ok, err := l.SendAndReceive(context.Background(), "0103", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "NEW0103", reply)
}

func TestStartTwice(t *testing.T) {
	l := startLink(t)
	assert.Equal(t, ErrStarted, l.Start(context.Background()))
}

func TestLateReplyIsNotDeliveredToNextCaller(t *testing.T) {
	l := startLink(t)
	conn := dialBridge(t, l)
	go func() {
		buf := make([]byte, bufferSize)
		// the first request is answered only after the second was sent
		if _, err := conn.Read(buf); err != nil {
			return
		}
		if _, err := conn.Read(buf); err != nil {
			return
		}
		_, _ = conn.Write([]byte("010308000100020003000412AB"))
		time.Sleep(50 * time.Millisecond)
		_, _ = conn.Write([]byte("01030400050006C3D2"))
	}()

	_, ok, err := l.SendAndReceive(context.Background(), "010375940004", 50*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)

	reply, ok, err := l.SendAndReceive(context.Background(), "0103759A0002", 2*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "01030400050006C3D2", reply)
}

func TestExceptionReplyMatchesRequest(t *testing.T) {
	l := startLink(t)
	conn := dialBridge(t, l)
	go func() {
		buf := make([]byte, bufferSize)
		if _, err := conn.Read(buf); err != nil {
			return
		}
		_, _ = conn.Write([]byte("0290018DC0"))
		time.Sleep(20 * time.Millisecond)
		_, _ = conn.Write([]byte("0186028DC0"))
	}()

	reply, ok, err := l.SendAndReceive(context.Background(), "0106C3510001", 2*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "0186028DC0", reply)
}

func TestReplyMatching(t *testing.T) {
	tests := []struct {
		name    string
		request string
		reply   string
		want    bool
	}{
		{"read registers", "010375940004", "010308000100020003000412AB", true},
		{"read with other count", "0103759A0002", "010308000100020003000412AB", false},
		{"lower case reply", "0103759A0002", "0103040005000Ac3d2", true},
		{"other address", "010375940004", "020308000100020003000412AB", false},
		{"write single echo", "0106C3510001", "0106C3510001D9B7", true},
		{"write single other register", "0106C3510001", "0106C3520001D9B7", false},
		{"write multiple echo", "0110C35000020400010002", "0110C35000021234", true},
		{"write multiple other count", "0110C35000020400010002", "0110C35000031234", false},
		{"exception", "010375940004", "0183028DC0", true},
		{"exception of other function", "010375940004", "0186028DC0", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, ok := newRequest(tt.request)
			require.True(t, ok)
			assert.Equal(t, tt.want, req.matches(tt.reply))
		})
	}

	_, ok := newRequest(`{"type":"upgrade"}`)
	assert.False(t, ok)
	_, ok = newRequest("0103")
	assert.False(t, ok)
}
