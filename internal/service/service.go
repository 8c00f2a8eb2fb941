package service

import (
	"context"
	"time"

	"tunnel_hmi/internal/events"
	"tunnel_hmi/internal/models"
	"tunnel_hmi/internal/repository"
	"tunnel_hmi/internal/zones"
)

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Control issues commands to the controller through the poller.
type Control interface {
	SetRunning(zoneID int, on bool) error
	SetSetpoint(zoneID int, target SetpointTarget, value float64) error
	SetDefrost(zoneID int, on bool) error
	TriggerDefrost(zoneID int) error
}

// ZoneConfig exposes the tag registry and its runtime edits.
type ZoneConfig interface {
	ListZones() []models.ZoneConfig
	GetZone(id int) (models.ZoneConfig, error)
	UpdateTags(ctx context.Context, id int, tags models.TagMap) error
	UpdateCalibration(ctx context.Context, id int, cal models.Calibration) error
}

// Monitoring exposes the latest process state.
type Monitoring interface {
	Latest() (events.Batch, bool)
	Snapshot(id int) (models.ZoneSnapshot, error)
	Status() Status
}

// Connection reads and replaces the controller connection at runtime.
type Connection interface {
	CurrentConnection() models.ConnectionSettings
	ApplyConnection(ctx context.Context, s models.ConnectionSettings) error
}

type Service struct {
	Control
	ZoneConfig
	Monitoring
	Connection
	Authorization
}

// Deps are the long-lived collaborators the services share.
type Deps struct {
	Repos      *repository.Repository
	Registry   *zones.Registry
	Runtime    *Runtime
	SigningKey string
	TokenTTL   time.Duration
}

func NewService(d Deps) *Service {
	return &Service{
		Control:       NewControlService(d.Runtime),
		ZoneConfig:    NewZoneService(d.Registry, d.Runtime, d.Repos.Overrides),
		Monitoring:    NewMonitoringService(d.Runtime),
		Connection:    NewConnectionService(d.Runtime, d.Repos.Connection),
		Authorization: NewAuthService(d.Repos.Auth, d.SigningKey, d.TokenTTL),
	}
}
