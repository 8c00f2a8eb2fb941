package plc

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tunnel_hmi/internal/models"
	"tunnel_hmi/internal/zones"
)

func tunnelTags(i int) models.TagMap {
	return models.TagMap{
		models.KeyAmbientTemp: models.Real(100+i, 0),
		models.KeyPulpTemp1:   models.Real(100+i, 4),
		models.KeyPulpTemp2:   models.Real(100+i, 8),
		models.KeySetpoint:    models.Real(200+i, 0),
		models.KeyRunning:     models.Bool(300+i, 0, 1),
	}
}

func newTestRegistry(t *testing.T, ids ...int) *zones.Registry {
	t.Helper()
	cfgs := make([]models.ZoneConfig, 0, len(ids))
	for _, id := range ids {
		cfgs = append(cfgs, models.ZoneConfig{ID: id, Name: "Tunnel", Tags: tunnelTags(id)})
	}
	reg, err := zones.NewRegistry(cfgs)
	require.NoError(t, err)
	return reg
}

func newTestLive(t *testing.T, reg *zones.Registry, mem *memory, cfg LiveConfig) *Live {
	t.Helper()
	if cfg.Address == "" {
		cfg.Address = "10.0.0.5"
	}
	l, err := NewLive(cfg, reg, portFactory(mem), nil)
	require.NoError(t, err)
	l.now = func() time.Time { return time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC) }
	return l
}

func TestLive_ReadAllYieldsNonDefaultSnapshot(t *testing.T) {
	mem := newMemory()
	mem.put(models.AreaDataBlock, 101, 0, encodeReal(-1.5))
	mem.put(models.AreaDataBlock, 101, 4, encodeReal(3.25))
	mem.put(models.AreaDataBlock, 101, 8, encodeReal(4.75))
	mem.put(models.AreaDataBlock, 201, 0, encodeReal(-2))
	mem.put(models.AreaDataBlock, 301, 0, []byte{0b0000_0010})

	l := newTestLive(t, newTestRegistry(t, 1), mem, LiveConfig{})
	require.True(t, l.Connect())

	got := l.ReadAll()
	require.Contains(t, got, 1)
	snap := got[1]
	assert.Equal(t, -1.5, snap.AmbientTemp)
	assert.Equal(t, 3.25, snap.PulpTemp1)
	assert.Equal(t, 4.75, snap.PulpTemp2)
	assert.Equal(t, -2.0, snap.Setpoint)
	assert.True(t, snap.Running)
	assert.False(t, snap.SampledAt.IsZero())
	assert.True(t, l.IsConnected())
}

func TestLive_MissingOptionalTagsDegradeToZero(t *testing.T) {
	mem := newMemory()
	mem.put(models.AreaDataBlock, 101, 0, encodeReal(12))
	reg, err := zones.NewRegistry([]models.ZoneConfig{{
		ID:   4,
		Name: "Sparse",
		Tags: models.TagMap{models.KeyAmbientTemp: models.Real(101, 0)},
	}})
	require.NoError(t, err)

	l := newTestLive(t, reg, mem, LiveConfig{})
	got := l.ReadAll()

	require.Contains(t, got, 4)
	assert.Equal(t, 12.0, got[4].AmbientTemp)
	assert.Zero(t, got[4].SetpointPulp1)
	assert.False(t, got[4].Running)
	assert.True(t, l.IsConnected())
}

func TestLive_BoolWritePreservesNeighborBits(t *testing.T) {
	mem := newMemory()
	mem.put(models.AreaDataBlock, 301, 0, []byte{0b1010_0101})
	l := newTestLive(t, newTestRegistry(t, 1), mem, LiveConfig{})

	require.True(t, l.WriteRunning(1, true))
	assert.Equal(t, []byte{0b1010_0111}, mem.get(models.AreaDataBlock, 301, 0, 1))

	require.True(t, l.WriteRunning(1, false))
	assert.Equal(t, []byte{0b1010_0101}, mem.get(models.AreaDataBlock, 301, 0, 1))

	for _, w := range mem.writes {
		assert.Len(t, w.data, 1, "bool writes must be one byte windows")
	}
}

func TestLive_RealWriteIsFourBytesBigEndian(t *testing.T) {
	mem := newMemory()
	l := newTestLive(t, newTestRegistry(t, 2), mem, LiveConfig{})

	require.True(t, l.WriteSetpoint(2, 1.5))
	require.Len(t, mem.writes, 1)
	assert.Equal(t, models.AreaDataBlock, mem.writes[0].area)
	assert.Equal(t, 202, mem.writes[0].block)
	assert.Equal(t, []byte{0x3F, 0xC0, 0x00, 0x00}, mem.writes[0].data)
}

func TestLive_WriteMissingTagReturnsFalseWithError(t *testing.T) {
	mem := newMemory()
	l := newTestLive(t, newTestRegistry(t, 1), mem, LiveConfig{})
	require.True(t, l.Connect())

	assert.False(t, l.WriteSetpointPulp1(1, 4))
	assert.Contains(t, l.LastError(), "setpoint_pulp_1")
	assert.Contains(t, l.LastError(), "zone 1")
	assert.True(t, l.IsConnected(), "resolution failures keep the link up")
	assert.Empty(t, mem.writes)
}

func TestLive_WriteUnknownZone(t *testing.T) {
	l := newTestLive(t, newTestRegistry(t, 1), newMemory(), LiveConfig{})
	assert.False(t, l.WriteSetpoint(99, 4))
	assert.Contains(t, l.LastError(), "unknown zone")
}

func TestLive_ReadFailureAbortsTickAndKeepsEarlierZones(t *testing.T) {
	mem := newMemory()
	mem.put(models.AreaDataBlock, 101, 0, encodeReal(7))
	mem.failReadAt[locKey(models.AreaDataBlock, 102, 0)] = true

	l := newTestLive(t, newTestRegistry(t, 1, 2, 3), mem, LiveConfig{})
	got := l.ReadAll()

	require.Len(t, got, 1)
	assert.Equal(t, 7.0, got[1].AmbientTemp)
	assert.False(t, l.IsConnected())
	assert.Contains(t, l.LastError(), "zone 2")

	delete(mem.failReadAt, locKey(models.AreaDataBlock, 102, 0))
	got = l.ReadAll()
	assert.Len(t, got, 3, "next tick reconnects and reads every zone")
	assert.True(t, l.IsConnected())
}

func TestLive_WriteFailureMarksDisconnected(t *testing.T) {
	mem := newMemory()
	l := newTestLive(t, newTestRegistry(t, 1), mem, LiveConfig{})
	require.True(t, l.Connect())
	mem.failWrites = true

	assert.False(t, l.WriteSetpoint(1, 3))
	assert.False(t, l.IsConnected())
	assert.Contains(t, l.LastError(), "write refused")
}

func TestLive_ConnectRetriesDefaultPort(t *testing.T) {
	t.Run("fallback succeeds", func(t *testing.T) {
		mem := newMemory()
		mem.connectErrs[1102] = errors.New("connection refused")
		l := newTestLive(t, newTestRegistry(t, 1), mem, LiveConfig{Port: 1102, RetryDefaultPort: true})

		assert.True(t, l.Connect())
		assert.Equal(t, []int{1102, DefaultPort}, mem.dials)
	})

	t.Run("both fail", func(t *testing.T) {
		mem := newMemory()
		mem.connectErrs[1102] = errors.New("refused 1102")
		mem.connectErrs[DefaultPort] = errors.New("refused 102")
		l := newTestLive(t, newTestRegistry(t, 1), mem, LiveConfig{Port: 1102, RetryDefaultPort: true})

		assert.False(t, l.Connect())
		assert.Contains(t, l.LastError(), "refused 1102")
		assert.Contains(t, l.LastError(), "refused 102")
		assert.False(t, l.IsConnected())
	})

	t.Run("retry disabled", func(t *testing.T) {
		mem := newMemory()
		mem.connectErrs[1102] = errors.New("refused")
		l := newTestLive(t, newTestRegistry(t, 1), mem, LiveConfig{Port: 1102})

		assert.False(t, l.Connect())
		assert.Equal(t, []int{1102}, mem.dials)
	})

	t.Run("default port failure is not retried", func(t *testing.T) {
		mem := newMemory()
		mem.connectErrs[DefaultPort] = errors.New("refused")
		l := newTestLive(t, newTestRegistry(t, 1), mem, LiveConfig{RetryDefaultPort: true})

		assert.False(t, l.Connect())
		assert.Equal(t, []int{DefaultPort}, mem.dials)
	})
}

func TestLive_TransportWithoutPortUsesThreeArgConnect(t *testing.T) {
	mem := newMemory()
	l, err := NewLive(LiveConfig{Address: "10.0.0.5", Port: 2000}, newTestRegistry(t, 1), noPortFactory(mem), nil)
	require.NoError(t, err)

	assert.True(t, l.Connect())
	assert.Equal(t, []int{DefaultPort}, mem.dials)
	assert.True(t, l.IsConnected(), "falls back to the cached flag")
}

func TestLive_ConnectIsIdempotent(t *testing.T) {
	mem := newMemory()
	l := newTestLive(t, newTestRegistry(t, 1), mem, LiveConfig{})

	require.True(t, l.Connect())
	require.True(t, l.Connect())
	assert.Len(t, mem.dials, 1)

	l.Disconnect()
	assert.False(t, l.IsConnected())
	assert.Equal(t, 1, mem.closes)
}

func TestNewLive_RequiresFactoryAndAddress(t *testing.T) {
	_, err := NewLive(LiveConfig{Address: "10.0.0.5"}, newTestRegistry(t, 1), nil, nil)
	assert.ErrorIs(t, err, errNoTransportFactory)

	_, err = NewLive(LiveConfig{}, newTestRegistry(t, 1), noPortFactory(newMemory()), nil)
	assert.ErrorIs(t, err, errNoAddress)
}
