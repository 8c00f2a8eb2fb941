package poller

import "time"

// coolingTimers tracks, per zone, since when running has been continuously true.
// Owned by the worker goroutine.
type coolingTimers struct {
	since map[int]time.Time
}

func newCoolingTimers() *coolingTimers {
	return &coolingTimers{since: make(map[int]time.Time)}
}

// observe advances the zone's IDLE/RUNNING machine and returns the elapsed seconds.
func (c *coolingTimers) observe(zoneID int, running bool, now time.Time) float64 {
	if !running {
		delete(c.since, zoneID)
		return 0
	}
	t0, ok := c.since[zoneID]
	if !ok {
		c.since[zoneID] = now
		return 0
	}
	elapsed := now.Sub(t0).Seconds()
	if elapsed < 0 {
		// wall clock stepped backwards
		c.since[zoneID] = now
		return 0
	}
	return elapsed
}
