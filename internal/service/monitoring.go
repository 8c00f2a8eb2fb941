package service

import (
	"fmt"
	"time"

	"tunnel_hmi/internal/events"
	"tunnel_hmi/internal/models"
	"tunnel_hmi/internal/plc"
	"tunnel_hmi/internal/zones"
)

// Status summarizes the acquisition side for operators.
type Status struct {
	Connected      bool      `json:"connected"`
	LastError      string    `json:"last_error,omitempty"`
	Backend        plc.Kind  `json:"backend"`
	Address        string    `json:"address"`
	PollIntervalMs int64     `json:"poll_interval_ms"`
	Polling        bool      `json:"polling"`
	LastSampleAt   time.Time `json:"last_sample_at,omitempty"`
}

type MonitoringService struct {
	rt *Runtime
}

func NewMonitoringService(rt *Runtime) *MonitoringService {
	return &MonitoringService{rt: rt}
}

// Latest returns the last published batch of the active poller.
func (s *MonitoringService) Latest() (events.Batch, bool) {
	p := s.rt.Poller()
	if p == nil {
		return events.Batch{}, false
	}
	return p.Latest()
}

// Snapshot returns one zone from the latest batch.
func (s *MonitoringService) Snapshot(id int) (models.ZoneSnapshot, error) {
	b, ok := s.Latest()
	if ok {
		if snap, ok := b.Zones[id]; ok {
			return snap, nil
		}
	}
	return models.ZoneSnapshot{}, fmt.Errorf("%w: %d", zones.ErrUnknownZone, id)
}

func (s *MonitoringService) Status() Status {
	st := Status{Backend: s.rt.Kind(), Address: s.rt.Settings().Address}
	p := s.rt.Poller()
	if p == nil {
		return st
	}
	st.Polling = p.Running()
	st.Connected = p.Connected()
	st.LastError = p.LastError()
	st.PollIntervalMs = p.Interval().Milliseconds()
	if b, ok := p.Latest(); ok {
		st.LastSampleAt = b.SampledAt
	}
	return st
}
