package plc

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tunnel_hmi/internal/models"
	"tunnel_hmi/internal/zones"
)

// steppedClock advances by step on every call.
type steppedClock struct {
	t    time.Time
	step time.Duration
}

func (c *steppedClock) now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

// simTags extends the live test map with every key the simulator models.
func simTags(i int) models.TagMap {
	tags := tunnelTags(i)
	tags[models.KeySetpointPulp1] = models.Real(200+i, 4)
	tags[models.KeySetpointPulp2] = models.Real(200+i, 8)
	tags[models.KeyCalAmbientTemp] = models.Real(400+i, 0)
	tags[models.KeyCalPulpTemp1] = models.Real(400+i, 4)
	tags[models.KeyCalPulpTemp2] = models.Real(400+i, 8)
	tags[models.KeyRunOnPulse] = models.Bool(300+i, 1, 0)
	tags[models.KeyRunOffPulse] = models.Bool(300+i, 1, 1)
	tags[models.KeyDefrostPulse] = models.Bool(300+i, 1, 2)
	tags[models.KeyDefrostCmd] = models.Bool(300+i, 1, 3)
	return tags
}

func newTestSim(t *testing.T, step time.Duration, ids ...int) *Simulated {
	t.Helper()
	cfgs := make([]models.ZoneConfig, 0, len(ids))
	for _, id := range ids {
		cfgs = append(cfgs, models.ZoneConfig{ID: id, Name: "Tunnel", Tags: simTags(id)})
	}
	reg, err := zones.NewRegistry(cfgs)
	require.NoError(t, err)
	s := NewSimulated(reg, 42)
	clk := &steppedClock{t: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC), step: step}
	s.now = clk.now
	s.lastStep = clk.t
	return s
}

func TestSimulated_PulpRelaxesTowardAmbientWhenStopped(t *testing.T) {
	s := newTestSim(t, time.Second, 1)
	z := s.byZone[1]
	z.ambient = 25
	z.pulp1 = 0
	z.running = false

	gap := math.Abs(z.pulp1 - z.ambient)
	for i := 0; i < 20; i++ {
		snap := s.ReadAll()[1]
		next := math.Abs(snap.PulpTemp1 - snap.AmbientTemp)
		// Per-step noise (±0.05 pulp, ±0.02 ambient) is far below the relaxation step here.
		require.Less(t, next, gap, "step %d", i)
		gap = next
	}
}

func TestSimulated_PulpRelaxesTowardOwnSetpointWhenRunning(t *testing.T) {
	s := newTestSim(t, time.Second, 1)
	require.True(t, s.WriteSetpointPulp1(1, -2))
	require.True(t, s.WriteRunning(1, true))

	var snap models.ZoneSnapshot
	for i := 0; i < 120; i++ {
		snap = s.ReadAll()[1]
	}
	assert.InDelta(t, -2, snap.PulpTemp1, 0.5)
	assert.InDelta(t, 100, snap.ValvePositionPct, 1)
	assert.True(t, snap.Running)
}

func TestSimulated_StepIsClampedToOneSecond(t *testing.T) {
	s := newTestSim(t, time.Hour, 1)
	z := s.byZone[1]
	z.ambient = 25
	z.pulp1 = 0

	snap := s.ReadAll()[1]
	// One clamped second moves the pulp by about 1/8 of the gap, not all the way.
	assert.InDelta(t, 25.0/8.0, snap.PulpTemp1, 0.2)
}

func TestSimulated_ClampsRanges(t *testing.T) {
	s := newTestSim(t, time.Second, 1)
	z := s.byZone[1]
	z.ambient = 80
	z.pulp1 = -90
	z.pulp2 = 200

	snap := s.ReadAll()[1]
	assert.LessOrEqual(t, snap.AmbientTemp, SimAmbientMax)
	assert.GreaterOrEqual(t, snap.PulpTemp1, SimPulpMin)
	assert.LessOrEqual(t, snap.PulpTemp2, SimPulpMax)
}

func TestSimulated_CalibrationIsStoredButNeverApplied(t *testing.T) {
	s := newTestSim(t, time.Second, 1)
	z := s.byZone[1]
	z.ambient = 10
	before := s.ReadAll()[1].AmbientTemp

	require.True(t, s.WriteByKey(1, models.KeyCalAmbientTemp, 5.0))
	after := s.ReadAll()[1].AmbientTemp

	assert.Equal(t, 5.0, s.Offsets(1)[models.KeyAmbientTemp])
	assert.InDelta(t, before, after, 2*SimAmbientWalk+1e-9, "raw reading must not include the offset")
}

func TestSimulated_PulseKeysActOnRisingEdge(t *testing.T) {
	s := newTestSim(t, time.Second, 1)

	require.True(t, s.WriteByKey(1, models.KeyRunOnPulse, true))
	require.True(t, s.WriteByKey(1, models.KeyRunOnPulse, false))
	assert.True(t, s.ReadAll()[1].Running)

	require.True(t, s.WriteByKey(1, models.KeyRunOffPulse, true))
	assert.False(t, s.ReadAll()[1].Running)

	require.True(t, s.WriteByKey(1, models.KeyDefrostPulse, true))
	assert.True(t, s.ReadAll()[1].DefrostActive)
}

func TestSimulated_PulseDefrostEndsAfterCycle(t *testing.T) {
	s := newTestSim(t, time.Second, 1)
	require.True(t, s.WriteByKey(1, models.KeyDefrostPulse, true))

	var snap models.ZoneSnapshot
	for i := 0; i < int(SimDefrostCycle/time.Second)+1; i++ {
		snap = s.ReadAll()[1]
	}
	assert.False(t, snap.DefrostActive)
}

func TestSimulated_WriteErrors(t *testing.T) {
	s := newTestSim(t, time.Second, 1)

	assert.False(t, s.WriteSetpoint(9, 1))
	assert.Contains(t, s.LastError(), "unknown zone")

	assert.False(t, s.WriteByKey(1, "door_heater", true))
	assert.Contains(t, s.LastError(), "door_heater")

	assert.True(t, s.WriteSetpoint(1, 0), "zero is a valid setpoint")
}

func TestSimulated_KnownKeyWithoutTagIsRejected(t *testing.T) {
	reg, err := zones.NewRegistry([]models.ZoneConfig{{
		ID:   1,
		Name: "Tunnel 1",
		Tags: models.TagMap{models.KeyAmbientTemp: models.Real(101, 0)},
	}})
	require.NoError(t, err)
	s := NewSimulated(reg, 42)

	assert.False(t, s.WriteSetpoint(1, 2))
	assert.Contains(t, s.LastError(), string(models.KeySetpoint))

	assert.False(t, s.WriteRunning(1, true))
	assert.Contains(t, s.LastError(), string(models.KeyRunning))
	assert.False(t, s.ReadAll()[1].Running)
}

func TestSimulated_ReconnectsOnRead(t *testing.T) {
	s := newTestSim(t, time.Second, 1, 2)
	s.Disconnect()
	require.False(t, s.IsConnected())

	got := s.ReadAll()
	assert.Len(t, got, 2)
	assert.True(t, s.IsConnected())
}
