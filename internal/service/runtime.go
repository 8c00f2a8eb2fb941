package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"tunnel_hmi/internal/events"
	"tunnel_hmi/internal/logger"
	"tunnel_hmi/internal/models"
	"tunnel_hmi/internal/plc"
	"tunnel_hmi/internal/poller"
	"tunnel_hmi/internal/zones"
)

var errRuntimeStopped = errors.New("runtime is not started")

// BackendBuilder creates a fresh backend for one set of connection settings.
type BackendBuilder func(s models.ConnectionSettings) (plc.Backend, plc.Kind)

// NewBackendBuilder picks the simulator when asked to, and falls back to it
// once when the live backend cannot be constructed.
func NewBackendBuilder(reg *zones.Registry, factory plc.TransportFactory, log *logger.Logger) BackendBuilder {
	if log == nil {
		log = logger.Nop()
	}
	return func(s models.ConnectionSettings) (plc.Backend, plc.Kind) {
		if !s.Simulation {
			live, err := plc.NewLive(plc.LiveConfig{
				Address:          s.Address,
				Rack:             s.Rack,
				Slot:             s.Slot,
				Port:             s.Port,
				RetryDefaultPort: s.RetryDefaultPort,
			}, reg, factory, log)
			if err == nil {
				return live, plc.KindLive
			}
			log.Warnw("plc_live_unavailable_using_simulation", "address", s.Address, "err", err)
		}
		return plc.NewSimulated(reg, time.Now().UnixNano()), plc.KindSimulated
	}
}

// Runtime owns the current backend and its poller. Reconfiguration replaces
// both; the registry and the event publisher outlive them.
type Runtime struct {
	reg   *zones.Registry
	pub   events.Publisher
	build BackendBuilder
	log   *logger.Logger

	mu       sync.RWMutex
	ctx      context.Context
	settings models.ConnectionSettings
	kind     plc.Kind
	poller   *poller.Poller
}

func NewRuntime(reg *zones.Registry, pub events.Publisher, build BackendBuilder, log *logger.Logger) *Runtime {
	if log == nil {
		log = logger.Nop()
	}
	return &Runtime{reg: reg, pub: pub, build: build, log: log.Named("runtime")}
}

// Start builds the first backend and starts polling until ctx ends or Stop is called.
func (r *Runtime) Start(ctx context.Context, s models.ConnectionSettings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.poller != nil {
		return
	}
	r.ctx = ctx
	r.startLocked(s)
}

func (r *Runtime) startLocked(s models.ConnectionSettings) {
	backend, kind := r.build(s)
	p := poller.New(backend, r.reg, poller.Options{
		Interval:  time.Duration(s.PollIntervalMs) * time.Millisecond,
		Publisher: r.pub,
		Logger:    r.log,
	})
	p.Start(r.ctx)
	r.settings, r.kind, r.poller = s, kind, p
	r.log.Infow("runtime_started", "backend", kind, "address", s.Address, "interval", p.Interval())
}

// Restart tears down the current poller and backend and starts fresh ones.
func (r *Runtime) Restart(s models.ConnectionSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.poller == nil {
		return errRuntimeStopped
	}
	r.poller.Stop()
	r.startLocked(s)
	return nil
}

func (r *Runtime) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.poller == nil {
		return
	}
	r.poller.Stop()
	r.poller = nil
}

// Poller returns the active poller, or nil when stopped.
func (r *Runtime) Poller() *poller.Poller {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.poller
}

func (r *Runtime) Settings() models.ConnectionSettings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.settings
}

func (r *Runtime) Kind() plc.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.kind
}

// active returns the running poller or poller.ErrNotRunning.
func (r *Runtime) active() (*poller.Poller, error) {
	p := r.Poller()
	if p == nil {
		return nil, poller.ErrNotRunning
	}
	return p, nil
}
