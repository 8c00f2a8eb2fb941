package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"tunnel_hmi/internal/models"
)

type ZoneOverrideSQLite struct {
	db  *sql.DB
	now func() time.Time
}

func NewZoneOverrideSQLite(db *sql.DB) *ZoneOverrideSQLite {
	return &ZoneOverrideSQLite{db: db, now: time.Now}
}

var _ ZoneOverrideRepo = (*ZoneOverrideSQLite)(nil)

const (
	upsertTagsSQL = `
		INSERT INTO zone_overrides (zone_id, tags, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(zone_id) DO UPDATE SET tags=excluded.tags, updated_at=excluded.updated_at
	`
	upsertCalibrationSQL = `
		INSERT INTO zone_overrides (zone_id, calibrations, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(zone_id) DO UPDATE SET calibrations=excluded.calibrations, updated_at=excluded.updated_at
	`
	selectOverridesSQL = `SELECT zone_id, tags, calibrations, updated_at FROM zone_overrides ORDER BY zone_id`
)

func (r *ZoneOverrideSQLite) SaveTags(ctx context.Context, zoneID int, tags models.TagMap) error {
	b, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("marshal tags for zone %d: %w", zoneID, err)
	}
	if _, err := r.db.ExecContext(ctx, upsertTagsSQL, zoneID, string(b), r.now().UTC()); err != nil {
		return fmt.Errorf("save tags for zone %d: %w", zoneID, err)
	}
	return nil
}

func (r *ZoneOverrideSQLite) SaveCalibration(ctx context.Context, zoneID int, cal models.Calibration) error {
	b, err := json.Marshal(cal)
	if err != nil {
		return fmt.Errorf("marshal calibration for zone %d: %w", zoneID, err)
	}
	if _, err := r.db.ExecContext(ctx, upsertCalibrationSQL, zoneID, string(b), r.now().UTC()); err != nil {
		return fmt.Errorf("save calibration for zone %d: %w", zoneID, err)
	}
	return nil
}

// List returns every override ordered by zone id.
func (r *ZoneOverrideSQLite) List(ctx context.Context) ([]models.ZoneOverride, error) {
	rows, err := r.db.QueryContext(ctx, selectOverridesSQL)
	if err != nil {
		return nil, fmt.Errorf("query zone overrides: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.ZoneOverride
	for rows.Next() {
		var (
			o         models.ZoneOverride
			tags, cal sql.NullString
		)
		if err := rows.Scan(&o.ZoneID, &tags, &cal, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan zone override: %w", err)
		}
		if tags.Valid && tags.String != "" {
			if err := json.Unmarshal([]byte(tags.String), &o.Tags); err != nil {
				return nil, fmt.Errorf("decode tags for zone %d: %w", o.ZoneID, err)
			}
		}
		if cal.Valid && cal.String != "" {
			if err := json.Unmarshal([]byte(cal.String), &o.Calibrations); err != nil {
				return nil, fmt.Errorf("decode calibration for zone %d: %w", o.ZoneID, err)
			}
		}
		o.UpdatedAt = o.UpdatedAt.UTC()
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate zone overrides: %w", err)
	}
	return out, nil
}
