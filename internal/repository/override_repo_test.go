package repository_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"tunnel_hmi/internal/models"
	"tunnel_hmi/internal/repository"
)

func TestZoneOverrideSQLite_SaveTags(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func() { _ = db.Close() }()

	tags := models.TagMap{models.KeyRunning: models.Bool(301, 0, 3)}
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO zone_overrides (zone_id, tags, updated_at)")).
		WithArgs(4, `{"running":{"area":"DB","db":301,"start":0,"type":"BOOL","bit":3}}`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repository.NewZoneOverrideSQLite(db).SaveTags(context.Background(), 4, tags); err != nil {
		t.Fatalf("SaveTags() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestZoneOverrideSQLite_SaveCalibration_ExecError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO zone_overrides (zone_id, calibrations, updated_at)")).
		WithArgs(2, `{"ambient_temp":-0.5}`, sqlmock.AnyArg()).
		WillReturnError(errors.New("disk full"))

	err = repository.NewZoneOverrideSQLite(db).SaveCalibration(context.Background(), 2, models.Calibration{models.KeyAmbientTemp: -0.5})
	if err == nil {
		t.Fatalf("SaveCalibration() expected error, got nil")
	}
}

func TestZoneOverrideSQLite_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func() { _ = db.Close() }()

	ts := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"zone_id", "tags", "calibrations", "updated_at"}).
		AddRow(1, `{"setpoint":{"area":"DB","db":201,"start":4,"type":"REAL"}}`, nil, ts).
		AddRow(2, nil, `{"pulp_temp_1":0.25}`, ts)
	mock.ExpectQuery(regexp.QuoteMeta("FROM zone_overrides")).WillReturnRows(rows)

	got, err := repository.NewZoneOverrideSQLite(db).List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("List() len = %d, want 2", len(got))
	}
	if got[0].Tags[models.KeySetpoint] != models.Real(201, 4) || got[0].Calibrations != nil {
		t.Fatalf("zone 1 override mismatch: %+v", got[0])
	}
	if got[1].Tags != nil || got[1].Calibrations[models.KeyPulpTemp1] != 0.25 {
		t.Fatalf("zone 2 override mismatch: %+v", got[1])
	}
}

func TestZoneOverrideSQLite_List_BadJSON(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows([]string{"zone_id", "tags", "calibrations", "updated_at"}).
		AddRow(1, `[not a map]`, nil, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM zone_overrides")).WillReturnRows(rows)

	if _, err := repository.NewZoneOverrideSQLite(db).List(context.Background()); err == nil {
		t.Fatalf("List() expected decode error, got nil")
	}
}
