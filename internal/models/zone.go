package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTag wraps every tag map validation failure.
var ErrInvalidTag = errors.New("invalid tag")

// SignalKey names one signal inside a zone's tag map.
type SignalKey string

// Known signal keys. Anything else is still addressable through WriteByKey.
const (
	KeyAmbientTemp   SignalKey = "ambient_temp"
	KeyPulpTemp1     SignalKey = "pulp_temp_1"
	KeyPulpTemp2     SignalKey = "pulp_temp_2"
	KeySetpoint      SignalKey = "setpoint"
	KeySetpointPulp1 SignalKey = "setpoint_pulp_1"
	KeySetpointPulp2 SignalKey = "setpoint_pulp_2"
	KeyRunning       SignalKey = "running"
	KeyRunOnPulse    SignalKey = "run_on_pulse"
	KeyRunOffPulse   SignalKey = "run_off_pulse"
	KeyDefrostCmd    SignalKey = "defrost_cmd"
	KeyDefrost       SignalKey = "defrost"
	KeyDefrostPulse  SignalKey = "defrost_pulse"
	KeyDefrostActive SignalKey = "defrost_active"
	KeyValvePosition SignalKey = "valve_position"

	KeyCalAmbientTemp SignalKey = "cal_ambient_temp"
	KeyCalPulpTemp1   SignalKey = "cal_pulp_temp_1"
	KeyCalPulpTemp2   SignalKey = "cal_pulp_temp_2"
)

// CalibratedSignals are the temperature signals that accept an additive offset.
var CalibratedSignals = []SignalKey{KeyAmbientTemp, KeyPulpTemp1, KeyPulpTemp2}

// CalibrationTagKey maps a calibrated signal to the controller tag that mirrors its offset.
func CalibrationTagKey(signal SignalKey) SignalKey {
	return "cal_" + signal
}

// IsCalibrationKey reports whether key is one of the controller calibration tags.
func IsCalibrationKey(key SignalKey) bool {
	for _, s := range CalibratedSignals {
		if CalibrationTagKey(s) == key {
			return true
		}
	}
	return false
}

// TagMap maps signal keys to controller addresses.
type TagMap map[SignalKey]TagAddress

// Clone returns an independent copy.
func (m TagMap) Clone() TagMap {
	out := make(TagMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Validate normalizes nothing; it only reports the first invalid address.
func (m TagMap) Validate() error {
	for k, t := range m {
		if k == "" {
			return fmt.Errorf("%w: empty signal key", ErrInvalidTag)
		}
		if err := t.Validate(); err != nil {
			return fmt.Errorf("%w %s: %v", ErrInvalidTag, k, err)
		}
	}
	return nil
}

// Calibration maps calibrated signal keys to additive offsets in °C.
type Calibration map[SignalKey]float64

// Clone returns an independent copy.
func (c Calibration) Clone() Calibration {
	out := make(Calibration, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// ZoneConfig describes one refrigeration tunnel.
type ZoneConfig struct {
	ID           int         `json:"id" mapstructure:"id"`
	Name         string      `json:"name" mapstructure:"name"`
	Tags         TagMap      `json:"tags" mapstructure:"tags"`
	Calibrations Calibration `json:"calibrations,omitempty" mapstructure:"calibrations"`
}

// Tag resolves a signal key. Absence is a valid result.
func (z ZoneConfig) Tag(key SignalKey) (TagAddress, bool) {
	t, ok := z.Tags[key]
	return t, ok
}

// Clone returns a deep copy so callers can hold it past a hot replacement.
func (z ZoneConfig) Clone() ZoneConfig {
	z.Tags = z.Tags.Clone()
	z.Calibrations = z.Calibrations.Clone()
	return z
}

// ZoneSnapshot is one zone's process state for one tick. Never mutated once published.
type ZoneSnapshot struct {
	ID                    int       `json:"id"`
	Name                  string    `json:"name"`
	AmbientTemp           float64   `json:"ambient_temp"`
	PulpTemp1             float64   `json:"pulp_temp_1"`
	PulpTemp2             float64   `json:"pulp_temp_2"`
	Setpoint              float64   `json:"setpoint"`
	SetpointPulp1         float64   `json:"setpoint_pulp_1"`
	SetpointPulp2         float64   `json:"setpoint_pulp_2"`
	Running               bool      `json:"running"`
	DefrostActive         bool      `json:"defrost_active"`
	ValvePositionPct      float64   `json:"valve_position_pct"`
	CoolingElapsedSeconds float64   `json:"cooling_elapsed_seconds"`
	SampledAt             time.Time `json:"sampled_at"`
}
