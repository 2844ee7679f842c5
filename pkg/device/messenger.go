package device

import (
	"context"
	"net"
	"strings"
	"time"

	"emsgateway/pkg/utils/crcutil"
	"emsgateway/pkg/utils/hexutil"
	"github.com/goburrow/modbus"
	"github.com/pkg/errors"
	"go.bug.st/serial"
	"k8s.io/klog/v2"
)

// Messenger carries one ascii hex request to a command device and returns
// its reply.
type Messenger interface {
	Ask(ctx context.Context, request string) (string, error)
	Close() error
}

var _ Messenger = (*TcpClient)(nil)
var _ Messenger = (*SerialClient)(nil)
var _ Messenger = (*ModbusTcpClient)(nil)

// NewMessenger opens the channel described by t.
type NewMessenger func(ctx context.Context, t Transport, timeout time.Duration) (Messenger, error)

func OpenMessenger(ctx context.Context, t Transport, timeout time.Duration) (Messenger, error) {
	switch t.Type {
	case TransportTcp:
		return DialTcp(ctx, t.Address, timeout)
	case TransportSerial:
		return OpenSerial(t.Address, t.BaudRate, timeout)
	case TransportModbusTcp:
		return NewModbusTcpClient(t.Address, timeout), nil
	default:
		return nil, ErrNotCommandable
	}
}

type TcpClient struct {
	Timeout time.Duration
	Tunnel  net.Conn
}

func DialTcp(ctx context.Context, address string, timeout time.Duration) (*TcpClient, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		klog.V(2).InfoS("Failed to connect command device", "address", address, "err", err)
		return nil, errors.Wrapf(err, "dial %s", address)
	}
	return &TcpClient{Timeout: timeout, Tunnel: conn}, nil
}

func (tc *TcpClient) Close() error {
	return tc.Tunnel.Close()
}

func (tc *TcpClient) Ask(ctx context.Context, request string) (string, error) {
	deadline := time.Now().Add(tc.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := tc.Tunnel.SetDeadline(deadline); err != nil {
		return "", err
	}
	if _, err := tc.Tunnel.Write([]byte(request)); err != nil {
		klog.V(2).InfoS("Failed to write to command device", "err", err)
		return "", errors.Wrap(err, "write")
	}
	buf := make([]byte, readBufferSize)
	n, err := tc.Tunnel.Read(buf)
	if err != nil {
		klog.V(2).InfoS("Failed to read from command device", "err", err)
		return "", errors.Wrap(err, "read")
	}
	if n == 0 {
		return "", ErrNoReply
	}
	return string(buf[:n]), nil
}

type SerialClient struct {
	Timeout time.Duration
	Port    serial.Port
}

func OpenSerial(name string, baudRate int, timeout time.Duration) (*SerialClient, error) {
	if baudRate <= 0 {
		baudRate = defaultBaudRate
	}
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		klog.V(2).InfoS("Failed to open serial port", "port", name, "err", err)
		return nil, errors.Wrapf(err, "open %s", name)
	}
	return &SerialClient{Timeout: timeout, Port: port}, nil
}

func (sc *SerialClient) Close() error {
	return sc.Port.Close()
}

// Ask reads until the line stays quiet for one read timeout or the buffer
// is full.
func (sc *SerialClient) Ask(_ context.Context, request string) (string, error) {
	rql, err := sc.Port.Write([]byte(request))
	if err != nil {
		klog.V(2).InfoS("Failed to write byte to series port", "error", err)
		return "", errors.Wrap(err, "write")
	}
	klog.V(5).InfoS("Succeed to write byte to series port", "request", request, "length", rql)
	if err = sc.Port.SetReadTimeout(sc.Timeout); err != nil {
		return "", err
	}

	var sb strings.Builder
	buf := make([]byte, 256)
	for sb.Len() < readBufferSize {
		n, err := sc.Port.Read(buf)
		if err != nil {
			klog.V(2).InfoS("Failed to read byte from series port", "error", err)
			return "", errors.Wrap(err, "read")
		}
		if n == 0 {
			break
		}
		sb.Write(buf[:n])
	}
	if sb.Len() == 0 {
		return "", ErrNoReply
	}
	return sb.String(), nil
}

// ModbusTcpClient re-frames an rtu style request (addr, pdu, crc) as a
// Modbus TCP transaction and answers in rtu style again.
type ModbusTcpClient struct {
	handler *modbus.TCPClientHandler
}

func NewModbusTcpClient(address string, timeout time.Duration) *ModbusTcpClient {
	h := modbus.NewTCPClientHandler(address)
	h.Timeout = timeout
	return &ModbusTcpClient{handler: h}
}

func (mc *ModbusTcpClient) Close() error {
	return mc.handler.Close()
}

func (mc *ModbusTcpClient) Ask(_ context.Context, request string) (string, error) {
	frame, err := hexutil.Decode(request)
	if err != nil || len(frame) < 2 {
		return "", errors.Errorf("malformed frame %q", request)
	}
	if len(frame) > 4 && crcutil.VerifyFrame(frame) {
		frame = frame[:len(frame)-2]
	}

	mc.handler.SlaveId = frame[0]
	adu, err := mc.handler.Encode(&modbus.ProtocolDataUnit{FunctionCode: frame[1], Data: frame[2:]})
	if err != nil {
		return "", errors.Wrap(err, "encode")
	}
	resp, err := mc.handler.Send(adu)
	if err != nil {
		klog.V(2).InfoS("Failed to send modbus tcp request", "err", err)
		return "", errors.Wrap(err, "send")
	}
	if err = mc.handler.Verify(adu, resp); err != nil {
		return "", errors.Wrap(err, "verify")
	}
	pdu, err := mc.handler.Decode(resp)
	if err != nil {
		return "", errors.Wrap(err, "decode")
	}

	reply := append([]byte{frame[0], pdu.FunctionCode}, pdu.Data...)
	crc := crcutil.LowFirst(reply)
	return hexutil.Upper(append(reply, crc[:]...)), nil
}
