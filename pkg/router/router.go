package router

import (
	"context"
	"strings"
	"time"

	"emsgateway/pkg/bridge"
	"emsgateway/pkg/device"
	"emsgateway/pkg/protocol/transcode"
	"k8s.io/klog/v2"
)

// Bridge is the CAN bridge side of the router.
type Bridge interface {
	SendAndReceive(ctx context.Context, message string, timeout time.Duration) (string, bool, error)
}

// Registry resolves a serial number to a command device.
type Registry interface {
	CommandDevice(serial string) (device.CommandDevice, bool)
}

// Command is an opaque cloud command for one device.
type Command struct {
	CollectorSerial string
	DeviceSerial    string
	Payload         string
}

type Option func(*Router)

func WithTailMode(mode transcode.TailMode) Option {
	return func(r *Router) {
		r.tail = mode
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(r *Router) {
		r.timeout = timeout
	}
}

// Router delivers cloud commands to command devices or the CAN bridge. It
// never fails towards its caller, any delivery problem yields an empty
// result.
type Router struct {
	registry Registry
	bridge   Bridge
	tail     transcode.TailMode
	timeout  time.Duration
}

func NewRouter(registry Registry, b Bridge, opts ...Option) *Router {
	r := &Router{
		registry: registry,
		bridge:   b,
		tail:     transcode.TailCRC,
		timeout:  bridge.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Router) Route(ctx context.Context, cmd Command) string {
	payload := strings.ToUpper(strings.TrimSpace(cmd.Payload))
	if len(payload) == 0 {
		klog.V(2).InfoS("Dropped empty command", "device", cmd.DeviceSerial)
		return ""
	}

	if cd, ok := r.registry.CommandDevice(cmd.DeviceSerial); ok {
		send := func(frame string) string {
			reply, err := cd.SendAndReceive(ctx, frame)
			if err != nil {
				klog.V(2).InfoS("Failed to deliver command to device", "device", cmd.DeviceSerial, "frame", frame, "err", err)
				return ""
			}
			return reply
		}
		if transcode.NeedsSplit(payload) {
			return r.splitAndSend(payload, send)
		}
		return send(payload)
	}

	send := func(frame string) string {
		return r.toBridge(ctx, frame)
	}
	if transcode.IsMultipleWrite(payload) && !transcode.IsBMSDirect(payload) {
		return r.splitAndSend(payload, send)
	}
	return send(payload)
}

// Upgrade forwards a firmware upgrade command to the CAN bridge without
// waiting for an answer.
func (r *Router) Upgrade(ctx context.Context, command string) {
	if _, _, err := r.bridge.SendAndReceive(ctx, command, r.timeout); err != nil {
		klog.V(2).InfoS("Failed to forward upgrade command", "err", err)
		return
	}
	klog.V(2).InfoS("Forwarded upgrade command", "command", command)
}

func (r *Router) toBridge(ctx context.Context, frame string) string {
	reply, ok, err := r.bridge.SendAndReceive(ctx, frame, r.timeout)
	if err != nil {
		klog.V(2).InfoS("Failed to deliver command to CAN bridge", "frame", frame, "err", err)
		return ""
	}
	if !ok {
		klog.V(2).InfoS("No reply from CAN bridge, continue", "frame", frame)
		return ""
	}
	return reply
}

func (r *Router) splitAndSend(payload string, send func(string) string) string {
	frames, err := transcode.Split(payload, r.tail)
	if err != nil {
		klog.V(2).InfoS("Failed to transcode command", "frame", payload, "err", err)
		return ""
	}
	replies := make([]string, 0, len(frames))
	for _, f := range frames {
		reply := send(f)
		klog.V(4).InfoS("Single register write answered", "frame", f, "reply", reply)
		replies = append(replies, reply)
	}
	return transcode.Aggregate(payload, replies)
}
