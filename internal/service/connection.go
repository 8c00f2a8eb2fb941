package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tunnel_hmi/internal/models"
	"tunnel_hmi/internal/repository"
)

// Connection parameter limits exposed to operators.
const (
	MaxRackSlot       = 10
	MinPollIntervalMs = 200
	MaxPollIntervalMs = 30000
)

var ErrInvalidConnection = errors.New("invalid connection settings")

type ConnectionService struct {
	rt   *Runtime
	repo repository.ConnectionRepo
}

func NewConnectionService(rt *Runtime, repo repository.ConnectionRepo) *ConnectionService {
	return &ConnectionService{rt: rt, repo: repo}
}

func (s *ConnectionService) CurrentConnection() models.ConnectionSettings {
	return s.rt.Settings()
}

// ApplyConnection validates and persists s, then restarts polling on a fresh backend.
func (s *ConnectionService) ApplyConnection(ctx context.Context, cs models.ConnectionSettings) error {
	cs.Address = strings.TrimSpace(cs.Address)
	if err := ValidateConnection(cs); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, cs); err != nil {
		return err
	}
	return s.rt.Restart(cs)
}

func ValidateConnection(cs models.ConnectionSettings) error {
	switch {
	case !cs.Simulation && cs.Address == "":
		return fmt.Errorf("%w: address is required", ErrInvalidConnection)
	case cs.Rack < 0 || cs.Rack > MaxRackSlot:
		return fmt.Errorf("%w: rack must be within 0..%d", ErrInvalidConnection, MaxRackSlot)
	case cs.Slot < 0 || cs.Slot > MaxRackSlot:
		return fmt.Errorf("%w: slot must be within 0..%d", ErrInvalidConnection, MaxRackSlot)
	case cs.Port < 1 || cs.Port > 65535:
		return fmt.Errorf("%w: port must be within 1..65535", ErrInvalidConnection)
	case cs.PollIntervalMs < MinPollIntervalMs || cs.PollIntervalMs > MaxPollIntervalMs:
		return fmt.Errorf("%w: poll interval must be within %d..%d ms", ErrInvalidConnection, MinPollIntervalMs, MaxPollIntervalMs)
	}
	return nil
}
