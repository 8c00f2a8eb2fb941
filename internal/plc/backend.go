// Package plc implements the field-protocol backends: a live S7 backend and a
// software thermal simulator behind one Backend interface.
//
// Every method is safe to call from the poller's worker. Failures never escape
// as errors; they degrade to false or a partial map and update LastError, and
// any transport fault marks the backend disconnected so the next call
// reconnects first.
package plc

import (
	"sync"

	"tunnel_hmi/internal/models"
)

// Backend is the capability set shared by the live and simulated controllers.
type Backend interface {
	Connect() bool
	Disconnect()
	IsConnected() bool
	ReadAll() map[int]models.ZoneSnapshot
	WriteSetpoint(zoneID int, value float64) bool
	WriteSetpointPulp1(zoneID int, value float64) bool
	WriteSetpointPulp2(zoneID int, value float64) bool
	// WriteRunning writes the raw running bit. Pulsing is decided by the poller.
	WriteRunning(zoneID int, value bool) bool
	WriteByKey(zoneID int, key models.SignalKey, value any) bool
	LastError() string
}

// AddressWriter is implemented by backends that can write a resolved address
// without going through a zone's current tag map.
type AddressWriter interface {
	WriteTag(tag models.TagAddress, value any) bool
}

// Kind names a backend implementation.
type Kind string

const (
	KindLive      Kind = "live"
	KindSimulated Kind = "simulated"
)

// ConnectionState is owned by one backend instance and never shared.
type ConnectionState struct {
	mu        sync.Mutex
	connected bool
	lastErr   string
}

func (s *ConnectionState) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *ConnectionState) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}

// LastError is not cleared by reading.
func (s *ConnectionState) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *ConnectionState) fail(err error) {
	s.mu.Lock()
	s.connected = false
	s.lastErr = err.Error()
	s.mu.Unlock()
}

// record stores err without touching connectivity.
func (s *ConnectionState) record(err error) {
	s.mu.Lock()
	s.lastErr = err.Error()
	s.mu.Unlock()
}
