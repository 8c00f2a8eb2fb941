package service

import (
	"context"
	"errors"
	"sync"

	"tunnel_hmi/internal/models"
)

type fakeOverrides struct {
	mu      sync.Mutex
	tags    map[int]models.TagMap
	cal     map[int]models.Calibration
	list    []models.ZoneOverride
	saveErr error
}

func newFakeOverrides() *fakeOverrides {
	return &fakeOverrides{tags: map[int]models.TagMap{}, cal: map[int]models.Calibration{}}
}

func (f *fakeOverrides) SaveTags(_ context.Context, id int, tags models.TagMap) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.tags[id] = tags
	return nil
}

func (f *fakeOverrides) SaveCalibration(_ context.Context, id int, cal models.Calibration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.cal[id] = cal
	return nil
}

func (f *fakeOverrides) List(context.Context) ([]models.ZoneOverride, error) {
	return f.list, nil
}

type fakeConnectionRepo struct {
	saved   []models.ConnectionSettings
	saveErr error
}

func (f *fakeConnectionRepo) Save(_ context.Context, s models.ConnectionSettings) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, s)
	return nil
}

func (f *fakeConnectionRepo) Load(context.Context) (models.ConnectionSettings, bool, error) {
	if len(f.saved) == 0 {
		return models.ConnectionSettings{}, false, nil
	}
	return f.saved[len(f.saved)-1], true, nil
}

var errDiskFull = errors.New("disk full")
