package repository

import (
	"context"
	"database/sql"

	"tunnel_hmi/internal/models"
)

type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*models.Operator, error)
}

// ZoneOverrideRepo persists runtime tag and calibration edits per zone.
type ZoneOverrideRepo interface {
	SaveTags(ctx context.Context, zoneID int, tags models.TagMap) error
	SaveCalibration(ctx context.Context, zoneID int, cal models.Calibration) error
	List(ctx context.Context) ([]models.ZoneOverride, error)
}

// ConnectionRepo persists the last applied controller connection.
type ConnectionRepo interface {
	Save(ctx context.Context, s models.ConnectionSettings) error
	Load(ctx context.Context) (models.ConnectionSettings, bool, error)
}

type Repository struct {
	Overrides  ZoneOverrideRepo
	Connection ConnectionRepo
	Auth       Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Overrides:  NewZoneOverrideSQLite(db),
		Connection: NewConnectionSQLite(db),
		Auth:       NewOperatorRepository(db),
	}
}
