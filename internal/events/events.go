// Package events carries what the poller reports to the presentation side:
// one snapshot batch per tick, edge-triggered connectivity changes,
// recoverable errors and command outcomes.
package events

import (
	"time"

	"tunnel_hmi/internal/models"
)

// Kind discriminates Event payloads.
type Kind string

const (
	KindSnapshot     Kind = "snapshot"
	KindConnectivity Kind = "connectivity"
	KindError        Kind = "error"
	KindCommand      Kind = "command"
)

// Batch is every zone read in one tick. Consumers never see two ticks mixed.
type Batch struct {
	Zones        map[int]models.ZoneSnapshot `json:"zones"`
	SampledAt    time.Time                   `json:"sampled_at"`
	TickDuration time.Duration               `json:"tick_duration_ns"`
}

// CommandResult reports the outcome of one dispatched command.
type CommandResult struct {
	ID      string `json:"id"`
	ZoneID  int    `json:"zone_id"`
	Command string `json:"command"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

// Event is one message on the bus. Exactly one payload field is set, matching Kind.
type Event struct {
	Kind      Kind           `json:"type"`
	At        time.Time      `json:"at"`
	Batch     *Batch         `json:"batch,omitempty"`
	Connected *bool          `json:"connected,omitempty"`
	Error     string         `json:"error,omitempty"`
	Command   *CommandResult `json:"command,omitempty"`
}

func SnapshotEvent(b Batch) Event {
	return Event{Kind: KindSnapshot, At: b.SampledAt, Batch: &b}
}

func ConnectivityEvent(connected bool, at time.Time) Event {
	return Event{Kind: KindConnectivity, At: at, Connected: &connected}
}

func ErrorEvent(msg string, at time.Time) Event {
	return Event{Kind: KindError, At: at, Error: msg}
}

func CommandEvent(r CommandResult, at time.Time) Event {
	return Event{Kind: KindCommand, At: at, Command: &r}
}

// Publisher accepts events without blocking the caller.
type Publisher interface {
	Publish(ev Event)
}
