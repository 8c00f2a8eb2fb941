package plc

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"tunnel_hmi/internal/logger"
	"tunnel_hmi/internal/models"
	"tunnel_hmi/internal/zones"
)

var (
	errNoTransportFactory = errors.New("plc: live backend needs a transport factory")
	errNoAddress          = errors.New("plc: live backend needs a controller address")
)

// LiveConfig holds the connection parameters of the live controller.
type LiveConfig struct {
	Address string
	Rack    int
	Slot    int
	Port    int
	// RetryDefaultPort retries once on DefaultPort when the configured port fails.
	RetryDefaultPort bool
}

// Live talks to a real controller through a Transport.
type Live struct {
	cfg          LiveConfig
	zones        *zones.Registry
	newTransport TransportFactory
	log          *logger.Logger
	now          func() time.Time

	mu        sync.Mutex // serializes transport use
	transport Transport
	state     ConnectionState
}

var (
	_ Backend       = (*Live)(nil)
	_ AddressWriter = (*Live)(nil)
)

// NewLive builds a live backend. It does not connect.
func NewLive(cfg LiveConfig, reg *zones.Registry, factory TransportFactory, log *logger.Logger) (*Live, error) {
	if factory == nil {
		return nil, errNoTransportFactory
	}
	if cfg.Address == "" {
		return nil, errNoAddress
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Live{
		cfg:          cfg,
		zones:        reg,
		newTransport: factory,
		log:          log.Named("plc.live"),
		now:          time.Now,
	}, nil
}

// Connect is idempotent and never panics; failures land in LastError.
func (l *Live) Connect() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connectLocked()
}

func (l *Live) connectLocked() bool {
	if l.state.Connected() && l.transport != nil {
		return true
	}
	// A fresh client per attempt; a half-open one refuses parameter changes.
	l.closeLocked()
	l.transport = l.newTransport()

	err := l.dial(l.cfg.Port)
	if err != nil {
		cerr := &ConnectError{Address: l.cfg.Address, Port: l.cfg.Port, Err: err}
		if l.cfg.RetryDefaultPort && l.cfg.Port != DefaultPort {
			l.log.Warnw("plc_connect_retry_default_port", "port", l.cfg.Port, "err", err)
			if ferr := l.dial(DefaultPort); ferr != nil {
				cerr.FallbackErr = ferr
			} else {
				err = nil
			}
		}
		if err != nil {
			l.state.fail(cerr)
			l.log.Warnw("plc_connect_failed", "address", l.cfg.Address, "err", cerr)
			return false
		}
	}
	l.state.setConnected(true)
	l.log.Infow("plc_connected", "address", l.cfg.Address, "rack", l.cfg.Rack, "slot", l.cfg.Slot)
	return true
}

func (l *Live) dial(port int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transport panic: %v", r)
		}
	}()
	if pc, ok := l.transport.(PortConnector); ok {
		return pc.ConnectPort(l.cfg.Address, l.cfg.Rack, l.cfg.Slot, port)
	}
	return l.transport.Connect(l.cfg.Address, l.cfg.Rack, l.cfg.Slot)
}

// Disconnect closes the transport, swallowing close failures.
func (l *Live) Disconnect() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closeLocked()
	l.state.setConnected(false)
}

func (l *Live) closeLocked() {
	if l.transport == nil {
		return
	}
	func() {
		defer func() { _ = recover() }()
		_ = l.transport.Close()
	}()
	l.transport = nil
}

// IsConnected re-verifies the link when the transport can report it and
// otherwise falls back to the cached flag. A recorded failure always wins.
func (l *Live) IsConnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.state.Connected() || l.transport == nil {
		return false
	}
	if c, ok := l.transport.(ConnectionChecker); ok {
		if !safeConnected(c) {
			l.state.setConnected(false)
			return false
		}
	}
	return true
}

func safeConnected(c ConnectionChecker) (up bool) {
	defer func() {
		if r := recover(); r != nil {
			up = false
		}
	}()
	return c.Connected()
}

func (l *Live) LastError() string { return l.state.LastError() }

// ReadAll reads every configured zone. The first failing transaction aborts
// the rest of the tick; zones already read are returned untouched.
func (l *Live) ReadAll() map[int]models.ZoneSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[int]models.ZoneSnapshot)
	if !l.state.Connected() && !l.connectLocked() {
		return out
	}
	now := l.now()
	for _, zc := range l.zones.List() {
		snap, err := l.readZone(zc, now)
		if err != nil {
			l.state.fail(fmt.Errorf("zone %d read failed: %w", zc.ID, err))
			return out
		}
		out[zc.ID] = snap
	}
	return out
}

func (l *Live) readZone(zc models.ZoneConfig, now time.Time) (models.ZoneSnapshot, error) {
	snap := models.ZoneSnapshot{ID: zc.ID, Name: zc.Name, SampledAt: now}
	reals := []struct {
		key models.SignalKey
		dst *float64
	}{
		{models.KeyAmbientTemp, &snap.AmbientTemp},
		{models.KeyPulpTemp1, &snap.PulpTemp1},
		{models.KeyPulpTemp2, &snap.PulpTemp2},
		{models.KeySetpoint, &snap.Setpoint},
		{models.KeySetpointPulp1, &snap.SetpointPulp1},
		{models.KeySetpointPulp2, &snap.SetpointPulp2},
		{models.KeyValvePosition, &snap.ValvePositionPct},
	}
	for _, r := range reals {
		tag, ok := zc.Tag(r.key)
		if !ok {
			continue
		}
		v, err := l.readTag(tag)
		if err != nil {
			return snap, err
		}
		*r.dst = asFloatLoose(v)
	}
	bools := []struct {
		key models.SignalKey
		dst *bool
	}{
		{models.KeyRunning, &snap.Running},
		{models.KeyDefrostActive, &snap.DefrostActive},
	}
	for _, b := range bools {
		tag, ok := zc.Tag(b.key)
		if !ok {
			continue
		}
		v, err := l.readTag(tag)
		if err != nil {
			return snap, err
		}
		*b.dst = asBoolLoose(v)
	}
	return snap, nil
}

// readTag returns float64 for REAL and bool for BOOL tags.
func (l *Live) readTag(tag models.TagAddress) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &TransactionError{Op: "read", Tag: tag, Err: fmt.Errorf("transport panic: %v", r)}
		}
	}()
	buf, err := l.transport.ReadArea(tag.Area, tag.BlockNumber(), tag.Offset, tag.Size())
	if err != nil {
		return nil, &TransactionError{Op: "read", Tag: tag, Err: err}
	}
	if len(buf) < tag.Size() {
		return nil, &TransactionError{Op: "read", Tag: tag, Err: fmt.Errorf("short read: %d bytes", len(buf))}
	}
	switch tag.Type {
	case models.TypeReal32:
		return decodeReal(buf), nil
	case models.TypeBool:
		return getBit(buf[0], tag.Bit), nil
	default:
		return nil, &TransactionError{Op: "read", Tag: tag, Err: errUnsupportedType}
	}
}

// writeTag writes a REAL directly and a BOOL by read-modify-write of its byte.
func (l *Live) writeTag(tag models.TagAddress, value any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &TransactionError{Op: "write", Tag: tag, Err: fmt.Errorf("transport panic: %v", r)}
		}
	}()
	switch tag.Type {
	case models.TypeReal32:
		f, err := asFloat(value)
		if err != nil {
			return &TransactionError{Op: "write", Tag: tag, Err: err}
		}
		if err := l.transport.WriteArea(tag.Area, tag.BlockNumber(), tag.Offset, encodeReal(f)); err != nil {
			return &TransactionError{Op: "write", Tag: tag, Err: err}
		}
		return nil
	case models.TypeBool:
		b, err := asBool(value)
		if err != nil {
			return &TransactionError{Op: "write", Tag: tag, Err: err}
		}
		cur, err := l.transport.ReadArea(tag.Area, tag.BlockNumber(), tag.Offset, models.BoolSize)
		if err != nil {
			return &TransactionError{Op: "write", Tag: tag, Err: err}
		}
		if len(cur) < models.BoolSize {
			return &TransactionError{Op: "write", Tag: tag, Err: errors.New("short read of current byte")}
		}
		next := []byte{setBit(cur[0], tag.Bit, b)}
		if err := l.transport.WriteArea(tag.Area, tag.BlockNumber(), tag.Offset, next); err != nil {
			return &TransactionError{Op: "write", Tag: tag, Err: err}
		}
		return nil
	default:
		return &TransactionError{Op: "write", Tag: tag, Err: errUnsupportedType}
	}
}

func (l *Live) WriteSetpoint(zoneID int, value float64) bool {
	return l.WriteByKey(zoneID, models.KeySetpoint, value)
}

func (l *Live) WriteSetpointPulp1(zoneID int, value float64) bool {
	return l.WriteByKey(zoneID, models.KeySetpointPulp1, value)
}

func (l *Live) WriteSetpointPulp2(zoneID int, value float64) bool {
	return l.WriteByKey(zoneID, models.KeySetpointPulp2, value)
}

func (l *Live) WriteRunning(zoneID int, value bool) bool {
	return l.WriteByKey(zoneID, models.KeyRunning, value)
}

// WriteByKey resolves key in the zone's tag map and writes value to it.
// Resolution failures are recorded but do not mark the link down.
func (l *Live) WriteByKey(zoneID int, key models.SignalKey, value any) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	zc, ok := l.zones.Get(zoneID)
	if !ok {
		l.state.record(fmt.Errorf("%w: %d", zones.ErrUnknownZone, zoneID))
		return false
	}
	tag, ok := zc.Tag(key)
	if !ok {
		l.state.record(&ResolutionError{ZoneID: zoneID, Key: key})
		return false
	}
	if !l.state.Connected() && !l.connectLocked() {
		return false
	}
	if err := l.writeTag(tag, value); err != nil {
		l.state.fail(err)
		return false
	}
	return true
}

// WriteTag writes value to an already resolved address. Pulse resets use it so
// the bit that was set is the bit that gets cleared, whatever the tag map says now.
func (l *Live) WriteTag(tag models.TagAddress, value any) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := tag.Validate(); err != nil {
		l.state.record(err)
		return false
	}
	if !l.state.Connected() && !l.connectLocked() {
		return false
	}
	if err := l.writeTag(tag, value); err != nil {
		l.state.fail(err)
		return false
	}
	return true
}
