package models

import "time"

// ConnectionSettings are the controller parameters an operator applied at
// runtime. They take precedence over the static config on the next start.
type ConnectionSettings struct {
	Address          string    `json:"address"`
	Rack             int       `json:"rack"`
	Slot             int       `json:"slot"`
	Port             int       `json:"port"`
	PollIntervalMs   int       `json:"poll_interval_ms"`
	Simulation       bool      `json:"simulation"`
	RetryDefaultPort bool      `json:"retry_default_port"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ZoneOverride is a persisted runtime edit of one zone. A nil map means the
// static configuration still applies for that part.
type ZoneOverride struct {
	ZoneID       int         `json:"zone_id"`
	Tags         TagMap      `json:"tags,omitempty"`
	Calibrations Calibration `json:"calibrations,omitempty"`
	UpdatedAt    time.Time   `json:"updated_at"`
}
