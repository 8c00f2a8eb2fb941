package plc

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/robinson/gos7"

	"tunnel_hmi/internal/models"
)

const (
	defaultS7Timeout     = 2 * time.Second
	defaultS7IdleTimeout = 30 * time.Second
)

var errS7NotConnected = errors.New("s7 transport not connected")

// areaClient is the part of gos7.Client the transport drives.
type areaClient interface {
	AGReadDB(dbNumber int, start int, size int, buffer []byte) error
	AGWriteDB(dbNumber int, start int, size int, buffer []byte) error
	AGReadEB(start int, size int, buffer []byte) error
	AGWriteEB(start int, size int, buffer []byte) error
	AGReadAB(start int, size int, buffer []byte) error
	AGWriteAB(start int, size int, buffer []byte) error
	AGReadMB(start int, size int, buffer []byte) error
	AGWriteMB(start int, size int, buffer []byte) error
}

// S7Transport speaks the S7 protocol through github.com/robinson/gos7.
// Any failed exchange marks the link down until the next connect.
type S7Transport struct {
	Timeout     time.Duration
	IdleTimeout time.Duration

	handler *gos7.TCPClientHandler
	client  areaClient
	faulted bool
}

// NewS7TransportFactory returns a factory producing S7 transports with the given timeout.
func NewS7TransportFactory(timeout time.Duration) TransportFactory {
	if timeout <= 0 {
		timeout = defaultS7Timeout
	}
	return func() Transport {
		return &S7Transport{Timeout: timeout, IdleTimeout: defaultS7IdleTimeout}
	}
}

var (
	_ Transport         = (*S7Transport)(nil)
	_ PortConnector     = (*S7Transport)(nil)
	_ ConnectionChecker = (*S7Transport)(nil)
)

// Connect dials the controller on the well-known port.
func (t *S7Transport) Connect(address string, rack, slot int) error {
	return t.ConnectPort(address, rack, slot, DefaultPort)
}

// ConnectPort dials address:port and opens an S7 session on rack/slot.
func (t *S7Transport) ConnectPort(address string, rack, slot, port int) error {
	h := gos7.NewTCPClientHandler(net.JoinHostPort(address, strconv.Itoa(port)), rack, slot)
	h.Timeout = t.Timeout
	h.IdleTimeout = t.IdleTimeout
	if err := h.Connect(); err != nil {
		return err
	}
	t.handler = h
	t.client = gos7.NewClient(h)
	t.faulted = false
	return nil
}

// Connected reports whether a session is open and no exchange has failed on it.
func (t *S7Transport) Connected() bool {
	return t.client != nil && !t.faulted
}

// ReadArea reads size bytes at offset of the given area.
func (t *S7Transport) ReadArea(area models.Area, block, offset, size int) ([]byte, error) {
	if t.client == nil {
		return nil, errS7NotConnected
	}
	buf := make([]byte, size)
	var err error
	switch area {
	case models.AreaDataBlock:
		err = t.client.AGReadDB(block, offset, size, buf)
	case models.AreaInput:
		err = t.client.AGReadEB(offset, size, buf)
	case models.AreaOutput:
		err = t.client.AGReadAB(offset, size, buf)
	case models.AreaMemory:
		err = t.client.AGReadMB(offset, size, buf)
	default:
		return nil, fmt.Errorf("unsupported area %q", area)
	}
	if err != nil {
		t.faulted = true
		return nil, err
	}
	return buf, nil
}

// WriteArea writes data at offset of the given area.
func (t *S7Transport) WriteArea(area models.Area, block, offset int, data []byte) error {
	if t.client == nil {
		return errS7NotConnected
	}
	var err error
	switch area {
	case models.AreaDataBlock:
		err = t.client.AGWriteDB(block, offset, len(data), data)
	case models.AreaInput:
		err = t.client.AGWriteEB(offset, len(data), data)
	case models.AreaOutput:
		err = t.client.AGWriteAB(offset, len(data), data)
	case models.AreaMemory:
		err = t.client.AGWriteMB(offset, len(data), data)
	default:
		return fmt.Errorf("unsupported area %q", area)
	}
	if err != nil {
		t.faulted = true
	}
	return err
}

// Close tears down the TCP session.
func (t *S7Transport) Close() error {
	if t.handler == nil {
		return nil
	}
	err := t.handler.Close()
	t.handler = nil
	t.client = nil
	t.faulted = false
	return err
}
