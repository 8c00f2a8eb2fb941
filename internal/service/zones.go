package service

import (
	"context"
	"errors"
	"fmt"

	"tunnel_hmi/internal/logger"
	"tunnel_hmi/internal/models"
	"tunnel_hmi/internal/repository"
	"tunnel_hmi/internal/zones"
)

// Calibration offsets accepted from operators, in °C.
const MaxCalibrationOffsetC = 10.0

var (
	ErrOffsetRange = fmt.Errorf("calibration offset must be within ±%.0f °C", MaxCalibrationOffsetC)
	// ErrNotPersisted means the edit is live but will not survive a restart.
	ErrNotPersisted = errors.New("change applied but not saved")
)

type ZoneService struct {
	reg       *zones.Registry
	rt        *Runtime
	overrides repository.ZoneOverrideRepo
}

func NewZoneService(reg *zones.Registry, rt *Runtime, overrides repository.ZoneOverrideRepo) *ZoneService {
	return &ZoneService{reg: reg, rt: rt, overrides: overrides}
}

func (s *ZoneService) ListZones() []models.ZoneConfig {
	return s.reg.List()
}

func (s *ZoneService) GetZone(id int) (models.ZoneConfig, error) {
	z, ok := s.reg.Get(id)
	if !ok {
		return models.ZoneConfig{}, fmt.Errorf("%w: %d", zones.ErrUnknownZone, id)
	}
	return z, nil
}

// UpdateTags normalizes and swaps the zone's tag map, then persists it.
func (s *ZoneService) UpdateTags(ctx context.Context, id int, tags models.TagMap) error {
	norm := make(models.TagMap, len(tags))
	for k, t := range tags {
		norm[k] = t.Normalize()
	}
	p, err := s.rt.active()
	if err != nil {
		return err
	}
	if err := p.UpdateTags(id, norm); err != nil {
		return err
	}
	if err := s.overrides.SaveTags(ctx, id, norm); err != nil {
		return fmt.Errorf("%w: %v", ErrNotPersisted, err)
	}
	return nil
}

// UpdateCalibration swaps the zone's offsets, mirrors them to the controller
// and persists them.
func (s *ZoneService) UpdateCalibration(ctx context.Context, id int, cal models.Calibration) error {
	for k, v := range cal {
		if v < -MaxCalibrationOffsetC || v > MaxCalibrationOffsetC {
			return fmt.Errorf("%w: %s=%.2f", ErrOffsetRange, k, v)
		}
	}
	p, err := s.rt.active()
	if err != nil {
		return err
	}
	if err := p.UpdateCalibration(id, cal); err != nil {
		return err
	}
	if err := s.overrides.SaveCalibration(ctx, id, cal); err != nil {
		return fmt.Errorf("%w: %v", ErrNotPersisted, err)
	}
	return nil
}

// ApplyOverrides layers persisted edits over the static zone list. Overrides
// for zones no longer configured are skipped.
func ApplyOverrides(ctx context.Context, reg *zones.Registry, repo repository.ZoneOverrideRepo, log *logger.Logger) error {
	if log == nil {
		log = logger.Nop()
	}
	list, err := repo.List(ctx)
	if err != nil {
		return err
	}
	for _, o := range list {
		if !reg.Has(o.ZoneID) {
			log.Warnw("zone_override_skipped", "zone", o.ZoneID, "reason", "zone not configured")
			continue
		}
		if o.Tags != nil {
			if err := reg.ReplaceTags(o.ZoneID, o.Tags); err != nil {
				log.Warnw("zone_override_skipped", "zone", o.ZoneID, "err", err)
				continue
			}
		}
		if o.Calibrations != nil {
			if err := reg.ReplaceCalibration(o.ZoneID, o.Calibrations); err != nil {
				return err
			}
		}
	}
	return nil
}
