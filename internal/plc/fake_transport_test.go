package plc

import (
	"errors"
	"fmt"
	"sync"

	"tunnel_hmi/internal/models"
)

// memory is controller RAM shared by every transport a factory hands out.
type memory struct {
	mu     sync.Mutex
	areas  map[models.Area]map[int][]byte
	writes []writeOp

	failReadAt  map[string]bool // "DB101.0" style keys
	failWrites  bool
	connectErrs map[int]error
	dials       []int
	closes      int
}

type writeOp struct {
	area   models.Area
	block  int
	offset int
	data   []byte
}

func newMemory() *memory {
	return &memory{
		areas:       make(map[models.Area]map[int][]byte),
		failReadAt:  make(map[string]bool),
		connectErrs: make(map[int]error),
	}
}

func locKey(area models.Area, block, offset int) string {
	return fmt.Sprintf("%s%d.%d", area, block, offset)
}

func (m *memory) bytes(area models.Area, block, offset, size int) []byte {
	if m.areas[area] == nil {
		m.areas[area] = make(map[int][]byte)
	}
	buf := m.areas[area][block]
	if len(buf) < offset+size {
		grown := make([]byte, offset+size)
		copy(grown, buf)
		buf = grown
		m.areas[area][block] = buf
	}
	return buf[offset : offset+size]
}

func (m *memory) put(area models.Area, block, offset int, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy(m.bytes(area, block, offset, len(data)), data)
}

func (m *memory) get(area models.Area, block, offset, size int) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, size)
	copy(out, m.bytes(area, block, offset, size))
	return out
}

// memTransport has no port-aware connect.
type memTransport struct {
	mem       *memory
	connected bool
}

func (t *memTransport) Connect(address string, rack, slot int) error {
	return t.connect(DefaultPort)
}

func (t *memTransport) connect(port int) error {
	t.mem.mu.Lock()
	defer t.mem.mu.Unlock()
	t.mem.dials = append(t.mem.dials, port)
	if err := t.mem.connectErrs[port]; err != nil {
		return err
	}
	t.connected = true
	return nil
}

func (t *memTransport) ReadArea(area models.Area, block, offset, size int) ([]byte, error) {
	t.mem.mu.Lock()
	fail := t.mem.failReadAt[locKey(area, block, offset)]
	t.mem.mu.Unlock()
	if fail {
		return nil, errors.New("ISO: connection reset")
	}
	return t.mem.get(area, block, offset, size), nil
}

func (t *memTransport) WriteArea(area models.Area, block, offset int, data []byte) error {
	t.mem.mu.Lock()
	if t.mem.failWrites {
		t.mem.mu.Unlock()
		return errors.New("ISO: write refused")
	}
	t.mem.writes = append(t.mem.writes, writeOp{area: area, block: block, offset: offset, data: append([]byte(nil), data...)})
	t.mem.mu.Unlock()
	t.mem.put(area, block, offset, data)
	return nil
}

func (t *memTransport) Close() error {
	t.mem.mu.Lock()
	t.mem.closes++
	t.mem.mu.Unlock()
	t.connected = false
	return nil
}

// portTransport adds ConnectPort and a link-state probe.
type portTransport struct {
	memTransport
}

func (t *portTransport) ConnectPort(address string, rack, slot, port int) error {
	return t.connect(port)
}

func (t *portTransport) Connected() bool { return t.connected }

func portFactory(mem *memory) TransportFactory {
	return func() Transport { return &portTransport{memTransport{mem: mem}} }
}

func noPortFactory(mem *memory) TransportFactory {
	return func() Transport { return &memTransport{mem: mem} }
}
