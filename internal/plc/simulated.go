package plc

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"tunnel_hmi/internal/models"
	"tunnel_hmi/internal/zones"
)

// Thermal model constants.
const (
	SimAmbientMin     = -20.0
	SimAmbientMax     = 50.0
	SimPulpMin        = -30.0
	SimPulpMax        = 60.0
	SimAmbientWalk    = 0.02 // °C per step, uniform
	SimPulpNoise      = 0.05 // °C per step, uniform
	SimPulpTau        = 8 * time.Second
	SimValveTau       = 3 * time.Second
	SimMaxStep        = time.Second
	SimDefrostCycle   = 30 * time.Second
	simInitialAmbient = 25.0
	simInitialPulp    = 20.0
	simInitialSP      = 5.0
)

type simZone struct {
	ambient  float64
	pulp1    float64
	pulp2    float64
	setpoint float64
	spPulp1  float64
	spPulp2  float64
	running  bool
	defrost  bool
	// defrostLeft > 0 means a pulse-started cycle that ends on its own.
	defrostLeft time.Duration
	valve       float64
	offsets     models.Calibration
	pulses      map[models.SignalKey]bool
	extra       map[models.SignalKey]any
}

// Simulated is a physics-lite stand-in for the controller used offline.
// It never applies calibration offsets; those are stored only so the
// controller-side calibration tags can be mirrored.
type Simulated struct {
	zones *zones.Registry
	now   func() time.Time

	mu       sync.Mutex
	rng      *rand.Rand
	state    ConnectionState
	byZone   map[int]*simZone
	lastStep time.Time
}

var _ Backend = (*Simulated)(nil)

// NewSimulated builds a simulator for every zone in reg. A zero seed uses the clock.
func NewSimulated(reg *zones.Registry, seed int64) *Simulated {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s := &Simulated{
		zones:  reg,
		now:    time.Now,
		rng:    rand.New(rand.NewSource(seed)),
		byZone: make(map[int]*simZone),
	}
	for _, id := range reg.IDs() {
		s.zoneLocked(id)
	}
	s.lastStep = s.now()
	s.state.setConnected(true)
	return s
}

func (s *Simulated) uniform(span float64) float64 {
	return (s.rng.Float64()*2 - 1) * span
}

func (s *Simulated) zoneLocked(id int) *simZone {
	z, ok := s.byZone[id]
	if !ok {
		z = &simZone{
			ambient:  simInitialAmbient + s.uniform(1),
			pulp1:    simInitialPulp + s.uniform(1),
			pulp2:    simInitialPulp + s.uniform(1),
			setpoint: simInitialSP,
			spPulp1:  simInitialSP,
			spPulp2:  simInitialSP,
			offsets:  models.Calibration{},
			pulses:   make(map[models.SignalKey]bool),
			extra:    make(map[models.SignalKey]any),
		}
		s.byZone[id] = z
	}
	return z
}

func (s *Simulated) Connect() bool {
	s.state.setConnected(true)
	return true
}

func (s *Simulated) Disconnect() { s.state.setConnected(false) }

func (s *Simulated) IsConnected() bool { return s.state.Connected() }

func (s *Simulated) LastError() string { return s.state.LastError() }

// step advances the model by the wall-clock delta since the previous call, at most SimMaxStep.
func (s *Simulated) step() time.Time {
	now := s.now()
	dt := now.Sub(s.lastStep)
	s.lastStep = now
	if dt < 0 {
		dt = 0
	}
	if dt > SimMaxStep {
		dt = SimMaxStep
	}
	alpha := math.Min(1, dt.Seconds()/SimPulpTau.Seconds())
	valveAlpha := math.Min(1, dt.Seconds()/SimValveTau.Seconds())

	for _, z := range s.byZone {
		z.ambient = clamp(z.ambient+s.uniform(SimAmbientWalk), SimAmbientMin, SimAmbientMax)

		if z.defrostLeft > 0 {
			z.defrostLeft -= dt
			if z.defrostLeft <= 0 {
				z.defrostLeft = 0
				z.defrost = false
			}
		}
		cooling := z.running && !z.defrost

		z.pulp1 = s.relax(z.pulp1, z.spPulp1, z.ambient, cooling, alpha)
		z.pulp2 = s.relax(z.pulp2, z.spPulp2, z.ambient, cooling, alpha)

		valveTarget := 0.0
		if cooling {
			valveTarget = 100
		}
		z.valve = clamp(z.valve+(valveTarget-z.valve)*valveAlpha, 0, 100)
	}
	return now
}

// relax moves cur first-order toward its setpoint when cooling, otherwise toward ambient.
func (s *Simulated) relax(cur, setpoint, ambient float64, cooling bool, alpha float64) float64 {
	target := ambient
	if cooling {
		target = setpoint
	}
	next := cur + (target-cur)*alpha + s.uniform(SimPulpNoise)
	return clamp(next, SimPulpMin, SimPulpMax)
}

// ReadAll advances the model once and returns raw, uncalibrated readings.
func (s *Simulated) ReadAll() map[int]models.ZoneSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Connected() {
		s.state.setConnected(true)
	}
	for _, id := range s.zones.IDs() {
		s.zoneLocked(id)
	}
	now := s.step()

	out := make(map[int]models.ZoneSnapshot)
	for _, zc := range s.zones.List() {
		z := s.byZone[zc.ID]
		out[zc.ID] = models.ZoneSnapshot{
			ID:               zc.ID,
			Name:             zc.Name,
			AmbientTemp:      z.ambient,
			PulpTemp1:        z.pulp1,
			PulpTemp2:        z.pulp2,
			Setpoint:         z.setpoint,
			SetpointPulp1:    z.spPulp1,
			SetpointPulp2:    z.spPulp2,
			Running:          z.running,
			DefrostActive:    z.defrost,
			ValvePositionPct: z.valve,
			SampledAt:        now,
		}
	}
	return out
}

func (s *Simulated) WriteSetpoint(zoneID int, value float64) bool {
	return s.WriteByKey(zoneID, models.KeySetpoint, value)
}

func (s *Simulated) WriteSetpointPulp1(zoneID int, value float64) bool {
	return s.WriteByKey(zoneID, models.KeySetpointPulp1, value)
}

func (s *Simulated) WriteSetpointPulp2(zoneID int, value float64) bool {
	return s.WriteByKey(zoneID, models.KeySetpointPulp2, value)
}

func (s *Simulated) WriteRunning(zoneID int, value bool) bool {
	return s.WriteByKey(zoneID, models.KeyRunning, value)
}

// WriteByKey updates the model directly once key resolves in the zone's tag
// map. Pulse keys act on their rising edge.
func (s *Simulated) WriteByKey(zoneID int, key models.SignalKey, value any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	zc, ok := s.zones.Get(zoneID)
	if !ok {
		s.state.record(fmt.Errorf("%w: %d", zones.ErrUnknownZone, zoneID))
		return false
	}
	// Same contract as the live backend: only configured tags are writable.
	if _, ok := zc.Tag(key); !ok {
		s.state.record(&ResolutionError{ZoneID: zoneID, Key: key})
		return false
	}
	z := s.zoneLocked(zoneID)

	switch key {
	case models.KeySetpoint, models.KeySetpointPulp1, models.KeySetpointPulp2:
		f, err := asFloat(value)
		if err != nil {
			s.state.record(err)
			return false
		}
		switch key {
		case models.KeySetpoint:
			z.setpoint = f
		case models.KeySetpointPulp1:
			z.spPulp1 = f
		default:
			z.spPulp2 = f
		}
		return true
	case models.KeyCalAmbientTemp, models.KeyCalPulpTemp1, models.KeyCalPulpTemp2:
		f, err := asFloat(value)
		if err != nil {
			s.state.record(err)
			return false
		}
		z.offsets[key[len("cal_"):]] = f
		return true
	case models.KeyRunning, models.KeyDefrostCmd, models.KeyDefrost,
		models.KeyRunOnPulse, models.KeyRunOffPulse, models.KeyDefrostPulse:
		b, err := asBool(value)
		if err != nil {
			s.state.record(err)
			return false
		}
		s.applyBool(z, key, b)
		return true
	}

	z.extra[key] = value
	return true
}

func (s *Simulated) applyBool(z *simZone, key models.SignalKey, v bool) {
	switch key {
	case models.KeyRunning:
		z.running = v
	case models.KeyDefrostCmd, models.KeyDefrost:
		z.defrost = v
		z.defrostLeft = 0
	default:
		rising := v && !z.pulses[key]
		z.pulses[key] = v
		if !rising {
			return
		}
		switch key {
		case models.KeyRunOnPulse:
			z.running = true
		case models.KeyRunOffPulse:
			z.running = false
		case models.KeyDefrostPulse:
			z.defrost = true
			z.defrostLeft = SimDefrostCycle
		}
	}
}

// Offsets returns the calibration values written through the controller tags.
func (s *Simulated) Offsets(zoneID int) models.Calibration {
	s.mu.Lock()
	defer s.mu.Unlock()
	z, ok := s.byZone[zoneID]
	if !ok {
		return models.Calibration{}
	}
	return z.offsets.Clone()
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
