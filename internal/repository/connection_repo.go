package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tunnel_hmi/internal/models"
)

type ConnectionSQLite struct {
	db *sql.DB
}

func NewConnectionSQLite(db *sql.DB) *ConnectionSQLite {
	return &ConnectionSQLite{db: db}
}

var _ ConnectionRepo = (*ConnectionSQLite)(nil)

const (
	connectionRowID = 1

	upsertConnectionSQL = `
		INSERT INTO plc_connection (id, address, rack, slot, port, poll_interval_ms, simulation, retry_default_port, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			address=excluded.address,
			rack=excluded.rack,
			slot=excluded.slot,
			port=excluded.port,
			poll_interval_ms=excluded.poll_interval_ms,
			simulation=excluded.simulation,
			retry_default_port=excluded.retry_default_port,
			updated_at=excluded.updated_at
	`

	selectConnectionSQL = `
		SELECT address, rack, slot, port, poll_interval_ms, simulation, retry_default_port, updated_at
		FROM plc_connection WHERE id=?
	`
)

// Save upserts the single connection row; a zero UpdatedAt is stamped with now.
func (r *ConnectionSQLite) Save(ctx context.Context, s models.ConnectionSettings) error {
	ts := s.UpdatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := r.db.ExecContext(ctx, upsertConnectionSQL,
		connectionRowID,
		s.Address,
		s.Rack,
		s.Slot,
		s.Port,
		s.PollIntervalMs,
		s.Simulation,
		s.RetryDefaultPort,
		ts.UTC(),
	)
	if err != nil {
		return fmt.Errorf("save plc connection: %w", err)
	}
	return nil
}

// Load returns ok=false when nothing was ever saved.
func (r *ConnectionSQLite) Load(ctx context.Context) (models.ConnectionSettings, bool, error) {
	var s models.ConnectionSettings
	err := r.db.QueryRowContext(ctx, selectConnectionSQL, connectionRowID).Scan(
		&s.Address,
		&s.Rack,
		&s.Slot,
		&s.Port,
		&s.PollIntervalMs,
		&s.Simulation,
		&s.RetryDefaultPort,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ConnectionSettings{}, false, nil
		}
		return models.ConnectionSettings{}, false, fmt.Errorf("load plc connection: %w", err)
	}
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, true, nil
}
