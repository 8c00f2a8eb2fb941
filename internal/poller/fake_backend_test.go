package poller

import (
	"sync"
	"time"

	"tunnel_hmi/internal/events"
	"tunnel_hmi/internal/models"
	"tunnel_hmi/internal/plc"
)

type write struct {
	zone  int
	key   models.SignalKey
	value any
	at    time.Time
}

// fakeBackend returns canned readings and records every write.
type fakeBackend struct {
	mu          sync.Mutex
	connected   bool
	lastErr     string
	readings    map[int]models.ZoneSnapshot
	failKeys    map[models.SignalKey]bool
	writes      []write
	reads       int
	disconnects int
}

var _ plc.Backend = (*fakeBackend)(nil)

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		connected: true,
		readings:  map[int]models.ZoneSnapshot{},
		failKeys:  map[models.SignalKey]bool{},
	}
}

func (f *fakeBackend) Connect() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeBackend) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.connected = false
}

func (f *fakeBackend) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeBackend) LastError() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

func (f *fakeBackend) ReadAll() map[int]models.ZoneSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	out := make(map[int]models.ZoneSnapshot)
	if !f.connected {
		return out
	}
	for id, s := range f.readings {
		out[id] = s
	}
	return out
}

func (f *fakeBackend) WriteSetpoint(id int, v float64) bool {
	return f.WriteByKey(id, models.KeySetpoint, v)
}

func (f *fakeBackend) WriteSetpointPulp1(id int, v float64) bool {
	return f.WriteByKey(id, models.KeySetpointPulp1, v)
}

func (f *fakeBackend) WriteSetpointPulp2(id int, v float64) bool {
	return f.WriteByKey(id, models.KeySetpointPulp2, v)
}

func (f *fakeBackend) WriteRunning(id int, v bool) bool {
	return f.WriteByKey(id, models.KeyRunning, v)
}

func (f *fakeBackend) WriteByKey(id int, key models.SignalKey, v any) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failKeys[key] {
		f.connected = false
		f.lastErr = "write " + string(key) + ": connection reset"
		return false
	}
	f.writes = append(f.writes, write{zone: id, key: key, value: v, at: time.Now()})
	return true
}

func (f *fakeBackend) set(fn func(f *fakeBackend)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeBackend) writesTo(key models.SignalKey) []write {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []write
	for _, w := range f.writes {
		if w.key == key {
			out = append(out, w)
		}
	}
	return out
}

func (f *fakeBackend) allWrites() []write {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]write(nil), f.writes...)
}

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) of(kind events.Kind) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, ev := range r.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
