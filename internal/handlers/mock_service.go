package handlers

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"tunnel_hmi/internal/events"
	"tunnel_hmi/internal/models"
	"tunnel_hmi/internal/service"
	"tunnel_hmi/internal/zones"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type controlCall struct {
	Op     string
	ZoneID int
	On     bool
	Target service.SetpointTarget
	Value  float64
}

type mockControl struct {
	err   error
	calls []controlCall
}

func (m *mockControl) SetRunning(zoneID int, on bool) error {
	m.calls = append(m.calls, controlCall{Op: "running", ZoneID: zoneID, On: on})
	return m.err
}
func (m *mockControl) SetSetpoint(zoneID int, target service.SetpointTarget, value float64) error {
	m.calls = append(m.calls, controlCall{Op: "setpoint", ZoneID: zoneID, Target: target, Value: value})
	return m.err
}
func (m *mockControl) SetDefrost(zoneID int, on bool) error {
	m.calls = append(m.calls, controlCall{Op: "defrost", ZoneID: zoneID, On: on})
	return m.err
}
func (m *mockControl) TriggerDefrost(zoneID int) error {
	m.calls = append(m.calls, controlCall{Op: "trigger_defrost", ZoneID: zoneID})
	return m.err
}

type mockZones struct {
	zones     []models.ZoneConfig
	updateErr error

	lastTags models.TagMap
	lastCal  models.Calibration
}

func (m *mockZones) ListZones() []models.ZoneConfig { return m.zones }
func (m *mockZones) GetZone(id int) (models.ZoneConfig, error) {
	for _, z := range m.zones {
		if z.ID == id {
			return z, nil
		}
	}
	return models.ZoneConfig{}, fmt.Errorf("%w: %d", zones.ErrUnknownZone, id)
}
func (m *mockZones) UpdateTags(ctx context.Context, id int, tags models.TagMap) error {
	m.lastTags = tags
	return m.updateErr
}
func (m *mockZones) UpdateCalibration(ctx context.Context, id int, cal models.Calibration) error {
	m.lastCal = cal
	return m.updateErr
}

type mockMonitoring struct {
	batch    events.Batch
	hasBatch bool
	status   service.Status
}

func (m *mockMonitoring) Latest() (events.Batch, bool) { return m.batch, m.hasBatch }
func (m *mockMonitoring) Snapshot(id int) (models.ZoneSnapshot, error) {
	if snap, ok := m.batch.Zones[id]; ok && m.hasBatch {
		return snap, nil
	}
	return models.ZoneSnapshot{}, fmt.Errorf("%w: %d", zones.ErrUnknownZone, id)
}
func (m *mockMonitoring) Status() service.Status { return m.status }

type mockConnection struct {
	current  models.ConnectionSettings
	applyErr error
	applied  []models.ConnectionSettings
}

func (m *mockConnection) CurrentConnection() models.ConnectionSettings { return m.current }
func (m *mockConnection) ApplyConnection(ctx context.Context, s models.ConnectionSettings) error {
	m.applied = append(m.applied, s)
	if m.applyErr != nil {
		return m.applyErr
	}
	m.current = s
	return nil
}

// fakeSource is an EventSource with one externally fed stream.
type fakeSource struct {
	ch chan events.Event

	mu        sync.Mutex
	cancelled int
}

func newFakeSource() *fakeSource {
	return &fakeSource{ch: make(chan events.Event, events.DefaultBuffer)}
}

func (f *fakeSource) Subscribe(int) (<-chan events.Event, func()) {
	return f.ch, func() {
		f.mu.Lock()
		f.cancelled++
		f.mu.Unlock()
	}
}

func (f *fakeSource) cancels() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service, src EventSource) *gin.Engine {
	h := NewHandler(s, src, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
