package plc

import "tunnel_hmi/internal/models"

// DefaultPort is the well-known ISO-on-TCP port of S7 controllers.
const DefaultPort = 102

// Transport is the raw area read/write client the live backend drives.
// A Transport is used by one backend at a time and recreated on every
// connect attempt.
type Transport interface {
	Connect(address string, rack, slot int) error
	ReadArea(area models.Area, block, offset, size int) ([]byte, error)
	WriteArea(area models.Area, block, offset int, data []byte) error
	Close() error
}

// PortConnector is implemented by transports that accept an explicit TCP port.
// Transports without it are connected with the three-argument Connect.
type PortConnector interface {
	ConnectPort(address string, rack, slot, port int) error
}

// ConnectionChecker is implemented by transports that can report link state.
type ConnectionChecker interface {
	Connected() bool
}

// TransportFactory builds a fresh, unconnected transport.
type TransportFactory func() Transport
