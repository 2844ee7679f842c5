package bridge

import (
	"context"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/temoto/alive/v2"
	"go.uber.org/atomic"
	"k8s.io/klog/v2"
)

// Link owns the single TCP session the CAN bridge opens towards the gateway.
// Requests are ascii hex text without framing, one read is one reply.
type Link struct {
	address string

	// exchange serializes whole request/response cycles
	exchange sync.Mutex

	mu       sync.Mutex
	listener net.Listener
	client   net.Conn

	responses chan []byte
	running   *atomic.Bool
	accepted  *atomic.Uint64
	alive     *alive.Alive
}

func NewLink(address string) *Link {
	if len(address) == 0 {
		address = DefaultAddress
	}
	return &Link{
		address:   address,
		responses: make(chan []byte, 1),
		running:   atomic.NewBool(false),
		accepted:  atomic.NewUint64(0),
		alive:     alive.NewAlive(),
	}
}

func (l *Link) Start(ctx context.Context) error {
	if !l.running.CAS(false, true) {
		return ErrStarted
	}
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", l.address)
	if err != nil {
		l.running.Store(false)
		return errors.Wrapf(err, "listen on %s", l.address)
	}
	l.mu.Lock()
	l.listener = ln
	l.mu.Unlock()

	klog.V(1).InfoS("CAN bridge link listening", "address", ln.Addr().String())
	l.alive.Add(1)
	go l.acceptLoop(ln)
	return nil
}

// Addr is the bound listen address, nil before Start.
func (l *Link) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listener == nil {
		return nil
	}
	return l.listener.Addr()
}

func (l *Link) Connected() bool {
	return l.current() != nil
}

// Accepted counts bridge sessions since start.
func (l *Link) Accepted() uint64 {
	return l.accepted.Load()
}

// SendAndReceive writes message to the attached bridge and waits up to
// timeout for its reply. Replies to a register frame that do not belong to
// it are dropped while waiting. A timeout is reported as ok == false with a
// nil error, the caller treats it as "no data".
func (l *Link) SendAndReceive(ctx context.Context, message string, timeout time.Duration) (reply string, ok bool, err error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	l.exchange.Lock()
	defer l.exchange.Unlock()

	conn := l.current()
	if conn == nil {
		klog.V(2).InfoS("Failed to send to CAN bridge, no client attached")
		return "", false, ErrNotConnected
	}

	l.drain()
	_ = conn.SetWriteDeadline(time.Now().Add(timeout))
	if _, err = conn.Write([]byte(message)); err != nil {
		klog.V(2).InfoS("Failed to write to CAN bridge", "err", err)
		return "", false, errors.Wrap(err, "write to can bridge")
	}
	klog.V(4).InfoS("Sent to CAN bridge", "message", message)

	if strings.Contains(message, noReplyMarker) {
		return "", false, nil
	}

	req, correlated := newRequest(message)
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case r := <-l.responses:
			if !correlated || req.matches(string(r)) {
				return string(r), true, nil
			}
			// a late answer to an earlier request that already timed out
			klog.V(3).InfoS("Dropped CAN bridge reply of another request", "request", message, "reply", string(r))
		case <-timer.C:
			klog.V(2).InfoS("No reply from CAN bridge", "timeout", timeout)
			return "", false, nil
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-l.alive.StopChan():
			return "", false, ErrLinkClosed
		}
	}
}

func (l *Link) Stop() {
	if !l.running.CAS(true, false) {
		return
	}
	l.alive.Stop()
	l.mu.Lock()
	if l.listener != nil {
		_ = l.listener.Close()
	}
	if l.client != nil {
		_ = l.client.Close()
		l.client = nil
	}
	l.mu.Unlock()
	l.alive.Wait()
	klog.V(1).InfoS("CAN bridge link stopped")
}

func (l *Link) acceptLoop(ln net.Listener) {
	defer l.alive.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if !l.running.Load() {
				return
			}
			klog.V(2).InfoS("Failed to accept CAN bridge connection", "err", err)
			continue
		}
		if !l.alive.Add(1) {
			_ = conn.Close()
			return
		}
		l.replace(conn)
		if !l.running.Load() {
			l.drop(conn)
		}
		klog.V(1).InfoS("CAN bridge connected", "remote", conn.RemoteAddr().String())
		go l.readLoop(conn)
	}
}

func (l *Link) readLoop(conn net.Conn) {
	defer l.alive.Done()
	buf := make([]byte, bufferSize)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			klog.V(2).InfoS("CAN bridge disconnected", "remote", conn.RemoteAddr().String(), "err", err)
			l.drop(conn)
			return
		}
		if n == 0 {
			continue
		}
		msg := make([]byte, n)
		copy(msg, buf[:n])
		klog.V(4).InfoS("Received from CAN bridge", "message", string(msg))
		l.offer(msg)
	}
}

// offer keeps only the newest unread message in the slot.
func (l *Link) offer(msg []byte) {
	select {
	case l.responses <- msg:
		return
	default:
	}
	select {
	case <-l.responses:
	default:
	}
	select {
	case l.responses <- msg:
	default:
	}
}

func (l *Link) drain() {
	select {
	case stale := <-l.responses:
		klog.V(3).InfoS("Dropped unsolicited CAN bridge message", "message", string(stale))
	default:
	}
}

func (l *Link) current() net.Conn {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.client
}

func (l *Link) replace(conn net.Conn) {
	l.mu.Lock()
	old := l.client
	l.client = conn
	l.mu.Unlock()
	l.accepted.Inc()
	if old != nil {
		_ = old.Close()
	}
}

func (l *Link) drop(conn net.Conn) {
	l.mu.Lock()
	if l.client == conn {
		l.client = nil
	}
	l.mu.Unlock()
	_ = conn.Close()
}
