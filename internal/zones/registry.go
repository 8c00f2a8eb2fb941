// Package zones holds the live, hot-replaceable zone configuration shared by
// the backends and the poller.
package zones

import (
	"errors"
	"fmt"
	"sync"

	"tunnel_hmi/internal/models"
)

// ErrUnknownZone is returned for any operation naming a zone id that was never configured.
var ErrUnknownZone = errors.New("unknown zone")

var errDuplicateZone = errors.New("duplicate zone id")

// Registry is an ordered set of zone configurations keyed by id.
// Entries are copy-on-write: readers receive clones, writers swap whole values.
type Registry struct {
	mu    sync.RWMutex
	order []int
	byID  map[int]models.ZoneConfig
}

// NewRegistry builds a registry preserving the order of cfgs.
func NewRegistry(cfgs []models.ZoneConfig) (*Registry, error) {
	r := &Registry{byID: make(map[int]models.ZoneConfig, len(cfgs))}
	for _, c := range cfgs {
		if _, ok := r.byID[c.ID]; ok {
			return nil, fmt.Errorf("%w: %d", errDuplicateZone, c.ID)
		}
		if c.Tags == nil {
			c.Tags = models.TagMap{}
		}
		if c.Calibrations == nil {
			c.Calibrations = models.Calibration{}
		}
		r.byID[c.ID] = c.Clone()
		r.order = append(r.order, c.ID)
	}
	return r, nil
}

// Get returns a copy of the zone's configuration.
func (r *Registry) Get(id int) (models.ZoneConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	if !ok {
		return models.ZoneConfig{}, false
	}
	return c.Clone(), true
}

// Has reports whether id is configured.
func (r *Registry) Has(id int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byID[id]
	return ok
}

// IDs returns zone ids in configuration order.
func (r *Registry) IDs() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]int, len(r.order))
	copy(out, r.order)
	return out
}

// List returns copies of every zone in configuration order.
func (r *Registry) List() []models.ZoneConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.ZoneConfig, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id].Clone())
	}
	return out
}

// ReplaceTags swaps the zone's whole tag map.
func (r *Registry) ReplaceTags(id int, tags models.TagMap) error {
	if err := tags.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownZone, id)
	}
	c.Tags = tags.Clone()
	r.byID[id] = c
	return nil
}

// ReplaceCalibration swaps the zone's offsets. Offsets overwrite, never accumulate.
func (r *Registry) ReplaceCalibration(id int, offsets models.Calibration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownZone, id)
	}
	c.Calibrations = offsets.Clone()
	r.byID[id] = c
	return nil
}
