package service

import (
	"errors"
	"fmt"
)

// SetpointTarget selects which setpoint a write goes to.
type SetpointTarget string

const (
	TargetAmbient SetpointTarget = "ambient"
	TargetPulp1   SetpointTarget = "pulp_1"
	TargetPulp2   SetpointTarget = "pulp_2"
)

// Operator-facing setpoint limits in °C.
const (
	MinSetpointC = -40.0
	MaxSetpointC = 60.0
)

var (
	ErrInvalidTarget = errors.New("setpoint target must be ambient, pulp_1 or pulp_2")
	ErrSetpointRange = fmt.Errorf("setpoint must be within %.0f..%.0f °C", MinSetpointC, MaxSetpointC)
)

type ControlService struct {
	rt *Runtime
}

func NewControlService(rt *Runtime) *ControlService {
	return &ControlService{rt: rt}
}

func (s *ControlService) SetRunning(zoneID int, on bool) error {
	p, err := s.rt.active()
	if err != nil {
		return err
	}
	return p.SetRunning(zoneID, on)
}

func (s *ControlService) SetSetpoint(zoneID int, target SetpointTarget, value float64) error {
	if value < MinSetpointC || value > MaxSetpointC {
		return ErrSetpointRange
	}
	p, err := s.rt.active()
	if err != nil {
		return err
	}
	switch target {
	case TargetAmbient, "":
		return p.SetSetpoint(zoneID, value)
	case TargetPulp1:
		return p.SetSetpointPulp1(zoneID, value)
	case TargetPulp2:
		return p.SetSetpointPulp2(zoneID, value)
	default:
		return fmt.Errorf("%w: %q", ErrInvalidTarget, target)
	}
}

func (s *ControlService) SetDefrost(zoneID int, on bool) error {
	p, err := s.rt.active()
	if err != nil {
		return err
	}
	return p.SetDefrost(zoneID, on)
}

func (s *ControlService) TriggerDefrost(zoneID int) error {
	p, err := s.rt.active()
	if err != nil {
		return err
	}
	return p.TriggerDefrost(zoneID)
}
