// Package poller drives a plc.Backend at a fixed interval and serializes every
// command onto the same worker goroutine as the ticks.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"tunnel_hmi/internal/events"
	"tunnel_hmi/internal/logger"
	"tunnel_hmi/internal/models"
	"tunnel_hmi/internal/plc"
	"tunnel_hmi/internal/zones"
)

const (
	DefaultInterval = 1000 * time.Millisecond
	MinInterval     = 200 * time.Millisecond

	// PulseWidth is how long a momentary command bit is held before reset.
	PulseWidth = 200 * time.Millisecond
	// DefrostAutoClear releases a level defrost request raised by TriggerDefrost.
	DefrostAutoClear = 30 * time.Second
)

var (
	ErrNotRunning         = errors.New("poller is not running")
	ErrWriteFailed        = errors.New("backend write failed")
	ErrInvalidCalibration = errors.New("calibration key not supported")
)

// Defrost level tags in priority order, and the key tried when none is configured.
var (
	defrostLevelKeys   = []models.SignalKey{models.KeyDefrostCmd, models.KeyDefrost}
	defrostFallbackKey = models.KeyDefrostCmd
)

// Options tune a Poller. Zero values pick the defaults.
type Options struct {
	Interval  time.Duration
	Publisher events.Publisher
	Logger    *logger.Logger
}

type job struct {
	fn  func() error
	res chan error
}

type run struct {
	cancel context.CancelFunc
	done   chan struct{}
}

type deferredTask struct {
	timer *time.Timer
	fn    func()
}

// Poller owns the tick loop of one backend instance.
type Poller struct {
	backend  plc.Backend
	zones    *zones.Registry
	pub      events.Publisher
	log      *logger.Logger
	interval time.Duration

	pulseWidth time.Duration
	autoClear  time.Duration
	now        func() time.Time

	jobs chan job

	mu  sync.Mutex // guards run
	run *run

	pendMu  sync.Mutex
	pending map[uint64]*deferredTask
	nextID  uint64

	// worker-owned
	cooling       *coolingTimers
	lastConnected *bool
	lastError     string

	latest    atomic.Pointer[events.Batch]
	connected atomic.Bool
}

type nopPublisher struct{}

func (nopPublisher) Publish(events.Event) {}

// New builds a stopped poller over backend and reg.
func New(backend plc.Backend, reg *zones.Registry, opts Options) *Poller {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	if interval < MinInterval {
		interval = MinInterval
	}
	pub := opts.Publisher
	if pub == nil {
		pub = nopPublisher{}
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Poller{
		backend:    backend,
		zones:      reg,
		pub:        pub,
		log:        log.Named("poller"),
		interval:   interval,
		pulseWidth: PulseWidth,
		autoClear:  DefrostAutoClear,
		now:        time.Now,
		jobs:       make(chan job),
		pending:    make(map[uint64]*deferredTask),
		cooling:    newCoolingTimers(),
	}
}

func (p *Poller) Interval() time.Duration { return p.interval }

// Start launches the worker. Starting a running poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.run != nil {
		return
	}
	wctx, cancel := context.WithCancel(ctx)
	r := &run{cancel: cancel, done: make(chan struct{})}
	p.run = r
	go p.loop(wctx, r.done)
	p.log.Infow("poller_started", "interval", p.interval)
}

// Stop halts the worker, runs any pending resets, then disconnects the backend.
// Stopping a stopped poller is a no-op.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.run == nil {
		return
	}
	p.run.cancel()
	<-p.run.done
	p.run = nil

	p.flushDeferred()
	p.disconnect()
	p.log.Infow("poller_stopped")
}

// Running reports whether the worker is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.run != nil
}

func (p *Poller) disconnect() {
	defer func() {
		if r := recover(); r != nil {
			p.log.Warnw("plc_disconnect_failed", "err", r)
		}
	}()
	p.backend.Disconnect()
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.tick()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick()
		case j := <-p.jobs:
			j.res <- j.fn()
		}
	}
}

// submit runs fn on the worker and waits for its result.
func (p *Poller) submit(fn func() error) error {
	p.mu.Lock()
	r := p.run
	p.mu.Unlock()
	if r == nil {
		return ErrNotRunning
	}
	j := job{fn: fn, res: make(chan error, 1)}
	select {
	case p.jobs <- j:
	case <-r.done:
		return ErrNotRunning
	}
	return <-j.res
}

func (p *Poller) tick() {
	start := p.now()
	raw := p.backend.ReadAll()
	connected := p.backend.IsConnected()
	p.observeConnectivity(connected)

	now := p.now()
	out := make(map[int]models.ZoneSnapshot, len(raw))
	for id, snap := range raw {
		if zc, ok := p.zones.Get(id); ok {
			applyCalibration(&snap, zc.Calibrations)
			if snap.Name == "" {
				snap.Name = zc.Name
			}
		}
		snap.CoolingElapsedSeconds = p.cooling.observe(id, snap.Running, now)
		out[id] = snap
	}

	if len(out) > 0 {
		batch := events.Batch{Zones: out, SampledAt: now, TickDuration: p.now().Sub(start)}
		p.latest.Store(&batch)
		p.pub.Publish(events.SnapshotEvent(batch))
	}
	if !connected {
		p.observeError(p.backend.LastError())
	}
}

func applyCalibration(snap *models.ZoneSnapshot, cal models.Calibration) {
	snap.AmbientTemp += cal[models.KeyAmbientTemp]
	snap.PulpTemp1 += cal[models.KeyPulpTemp1]
	snap.PulpTemp2 += cal[models.KeyPulpTemp2]
}

func (p *Poller) observeConnectivity(connected bool) {
	p.connected.Store(connected)
	if p.lastConnected != nil && *p.lastConnected == connected {
		return
	}
	p.lastConnected = &connected
	if connected {
		p.lastError = ""
		p.log.Infow("plc_connectivity_changed", "connected", true)
	} else {
		p.log.Warnw("plc_connectivity_changed", "connected", false, "last_error", p.backend.LastError())
	}
	p.pub.Publish(events.ConnectivityEvent(connected, p.now()))
}

// observeError emits an error event only when the message changes.
func (p *Poller) observeError(msg string) {
	if msg == "" || msg == p.lastError {
		return
	}
	p.lastError = msg
	p.log.Warnw("plc_recoverable_error", "err", msg)
	p.pub.Publish(events.ErrorEvent(msg, p.now()))
}

// Latest returns the most recent published batch.
func (p *Poller) Latest() (events.Batch, bool) {
	b := p.latest.Load()
	if b == nil {
		return events.Batch{}, false
	}
	out := *b
	out.Zones = make(map[int]models.ZoneSnapshot, len(b.Zones))
	for id, s := range b.Zones {
		out.Zones[id] = s
	}
	return out, true
}

// Connected is the connectivity observed by the last tick or command.
func (p *Poller) Connected() bool { return p.connected.Load() }

func (p *Poller) LastError() string { return p.backend.LastError() }

// schedule arms a one-shot that runs fn on the worker after d.
// zoneID and key must already be captured by value in fn.
func (p *Poller) schedule(d time.Duration, fn func()) {
	p.pendMu.Lock()
	id := p.nextID
	p.nextID++
	task := &deferredTask{fn: fn}
	task.timer = time.AfterFunc(d, func() {
		err := p.submit(func() error {
			if t := p.takePending(id); t != nil {
				t.fn()
			}
			return nil
		})
		if err != nil {
			p.log.Debugw("deferred_task_dropped", "err", err)
		}
	})
	p.pending[id] = task
	p.pendMu.Unlock()
}

func (p *Poller) takePending(id uint64) *deferredTask {
	p.pendMu.Lock()
	defer p.pendMu.Unlock()
	t, ok := p.pending[id]
	if !ok {
		return nil
	}
	delete(p.pending, id)
	return t
}

// flushDeferred runs every pending one-shot immediately. Called with the worker stopped.
func (p *Poller) flushDeferred() {
	p.pendMu.Lock()
	tasks := p.pending
	p.pending = make(map[uint64]*deferredTask)
	p.pendMu.Unlock()

	for _, t := range tasks {
		t.timer.Stop()
		t.fn()
	}
}

// command runs write on the worker and reports the outcome as an event.
func (p *Poller) command(name string, zoneID int, write func() bool) error {
	err := p.submit(func() error {
		if !p.zones.Has(zoneID) {
			return fmt.Errorf("%w: %d", zones.ErrUnknownZone, zoneID)
		}
		if write() {
			return nil
		}
		p.observeConnectivity(p.backend.IsConnected())
		return fmt.Errorf("%w: %s", ErrWriteFailed, p.backend.LastError())
	})
	if errors.Is(err, ErrNotRunning) {
		return err
	}

	res := events.CommandResult{ID: uuid.NewString(), ZoneID: zoneID, Command: name, OK: err == nil}
	if err != nil {
		res.Error = err.Error()
		p.log.Warnw("poller_command_failed", "command", name, "zone", zoneID, "err", err)
	} else {
		p.log.Debugw("poller_command_ok", "command", name, "zone", zoneID)
	}
	p.pub.Publish(events.CommandEvent(res, p.now()))
	return err
}

func (p *Poller) SetSetpoint(zoneID int, value float64) error {
	return p.command("set_setpoint", zoneID, func() bool {
		return p.backend.WriteSetpoint(zoneID, value)
	})
}

func (p *Poller) SetSetpointPulp1(zoneID int, value float64) error {
	return p.command("set_setpoint_pulp_1", zoneID, func() bool {
		return p.backend.WriteSetpointPulp1(zoneID, value)
	})
}

func (p *Poller) SetSetpointPulp2(zoneID int, value float64) error {
	return p.command("set_setpoint_pulp_2", zoneID, func() bool {
		return p.backend.WriteSetpointPulp2(zoneID, value)
	})
}

// SetRunning pulses the zone's on/off tag when both are configured and
// otherwise writes the running bit directly.
func (p *Poller) SetRunning(zoneID int, on bool) error {
	return p.command("set_running", zoneID, func() bool {
		zc, _ := p.zones.Get(zoneID)
		_, hasOn := zc.Tag(models.KeyRunOnPulse)
		_, hasOff := zc.Tag(models.KeyRunOffPulse)
		if hasOn && hasOff {
			key := models.KeyRunOffPulse
			if on {
				key = models.KeyRunOnPulse
			}
			return p.pulse(zoneID, key)
		}
		return p.backend.WriteRunning(zoneID, on)
	})
}

// SetDefrost holds the defrost request level at on.
func (p *Poller) SetDefrost(zoneID int, on bool) error {
	return p.command("set_defrost", zoneID, func() bool {
		zc, _ := p.zones.Get(zoneID)
		return p.backend.WriteByKey(zoneID, defrostLevelKey(zc), on)
	})
}

// TriggerDefrost starts one defrost cycle: a pulse on defrost_pulse when
// configured, else a level request that clears itself after the safety timeout.
func (p *Poller) TriggerDefrost(zoneID int) error {
	return p.command("trigger_defrost", zoneID, func() bool {
		zc, _ := p.zones.Get(zoneID)
		if _, ok := zc.Tag(models.KeyDefrostPulse); ok {
			return p.pulse(zoneID, models.KeyDefrostPulse)
		}
		key := defrostLevelKey(zc)
		if !p.backend.WriteByKey(zoneID, key, true) {
			return false
		}
		p.log.Debugw("defrost_auto_clear_scheduled", "zone", zoneID, "key", key, "after", p.autoClear)
		p.schedule(p.autoClear, func() { p.release(zoneID, key) })
		return true
	})
}

func defrostLevelKey(zc models.ZoneConfig) models.SignalKey {
	for _, k := range defrostLevelKeys {
		if _, ok := zc.Tag(k); ok {
			return k
		}
	}
	return defrostFallbackKey
}

// pulse writes key true and schedules its reset against the address resolved
// now, so a tag edit inside the pulse window cannot strand the bit.
func (p *Poller) pulse(zoneID int, key models.SignalKey) bool {
	zc, _ := p.zones.Get(zoneID)
	tag, resolved := zc.Tag(key)
	if !p.backend.WriteByKey(zoneID, key, true) {
		return false
	}
	p.log.Debugw("pulse_scheduled", "zone", zoneID, "key", key, "width", p.pulseWidth)
	p.schedule(p.pulseWidth, func() {
		if aw, ok := p.backend.(plc.AddressWriter); ok && resolved {
			if !aw.WriteTag(tag, false) {
				p.log.Warnw("pulse_reset_failed", "zone", zoneID, "key", key, "tag", tag.String(), "err", p.backend.LastError())
			}
			return
		}
		p.release(zoneID, key)
	})
	return true
}

func (p *Poller) release(zoneID int, key models.SignalKey) {
	if !p.backend.WriteByKey(zoneID, key, false) {
		p.log.Warnw("pulse_reset_failed", "zone", zoneID, "key", key, "err", p.backend.LastError())
	}
}

// UpdateTags replaces the zone's tag map; the next tick reads through it.
func (p *Poller) UpdateTags(zoneID int, tags models.TagMap) error {
	return p.submit(func() error {
		if err := p.zones.ReplaceTags(zoneID, tags); err != nil {
			return err
		}
		p.log.Infow("zone_tags_updated", "zone", zoneID, "tags", len(tags))
		return nil
	})
}

// UpdateCalibration replaces the zone's offsets and mirrors them to the
// controller's calibration tags. Mirror failures are logged only.
func (p *Poller) UpdateCalibration(zoneID int, offsets models.Calibration) error {
	for k := range offsets {
		if !isCalibrated(k) {
			return fmt.Errorf("%w: %s", ErrInvalidCalibration, k)
		}
	}
	return p.submit(func() error {
		if err := p.zones.ReplaceCalibration(zoneID, offsets); err != nil {
			return err
		}
		for _, k := range models.CalibratedSignals {
			v, ok := offsets[k]
			if !ok {
				continue
			}
			if !p.backend.WriteByKey(zoneID, models.CalibrationTagKey(k), v) {
				p.log.Debugw("calibration_mirror_skipped", "zone", zoneID, "key", k, "err", p.backend.LastError())
			}
		}
		p.log.Infow("zone_calibration_updated", "zone", zoneID, "offsets", offsets)
		return nil
	})
}

func isCalibrated(k models.SignalKey) bool {
	for _, s := range models.CalibratedSignals {
		if s == k {
			return true
		}
	}
	return false
}
