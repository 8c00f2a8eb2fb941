package handlers

import (
	"net/http"
	"strconv"
	"time"

	"tunnel_hmi/internal/events"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Send/receive timing configuration and message size limits.
const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMsgSize        = 1 << 12 // 4 KB
	defaultHeartbeat  = 5 * time.Second
	maxHeartbeat      = 60 * time.Second
	maxHeartbeatMilli = 60_000
)

// Envelope types besides the event kinds.
const wsTypeStatus = "status"

// wsEnvelope is the frame written to stream clients. Type is either an
// event kind or "status".
type wsEnvelope struct {
	Type  string      `json:"type"`
	At    time.Time   `json:"at"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true }, // served on the plant network only
}

func envelopeFor(ev events.Event) wsEnvelope {
	env := wsEnvelope{Type: string(ev.Kind), At: ev.At}
	switch ev.Kind {
	case events.KindSnapshot:
		env.Data = ev.Batch
	case events.KindConnectivity:
		env.Data = gin.H{"connected": ev.Connected != nil && *ev.Connected}
	case events.KindError:
		env.Error = ev.Error
	case events.KindCommand:
		env.Data = ev.Command
		if ev.Command != nil {
			env.Error = ev.Command.Error
		}
	}
	return env
}

// @Summary      Live process stream
// @Description  WebSocket. Sends the latest batch and status on connect, then every bus event and a status heartbeat (?interval=5s or ?interval_ms=5000).
// @Tags         monitoring
// @Router       /ws [get]
func (h *Handler) wsConnect(c *gin.Context) {
	heartbeat := h.parseInterval(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Errorw("ws_upgrade_failed", "err", err)
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Subscribe before the initial frames so nothing published in between is lost.
	var stream <-chan events.Event
	if h.src != nil {
		ch, cancel := h.src.Subscribe(events.DefaultBuffer)
		defer cancel()
		stream = ch
	}

	done := make(chan struct{})
	go h.startReader(conn, done)

	ticker := time.NewTicker(heartbeat)
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ping.Stop()
	}()

	if err := h.sendInitial(conn); err != nil {
		h.log.Infow("ws_write_failed_initial", "err", err)
		return
	}

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.log.Infow("ws_ping_failed", "err", err)
				return
			}
		case <-ticker.C:
			if err := h.sendStatus(conn); err != nil {
				h.log.Infow("ws_write_failed", "err", err)
				return
			}
		case ev, ok := <-stream:
			if !ok {
				return
			}
			if err := h.write(conn, envelopeFor(ev)); err != nil {
				h.log.Infow("ws_write_failed", "kind", ev.Kind, "err", err)
				return
			}
		}
	}
}

// parseInterval reads ?interval=5s or ?interval_ms=5000 with bounds.
func (h *Handler) parseInterval(c *gin.Context) time.Duration {
	if s := c.Query("interval"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 && d <= maxHeartbeat {
			return d
		}
	}

	if ms := c.Query("interval_ms"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v > 0 && v <= maxHeartbeatMilli {
			return time.Duration(v) * time.Millisecond
		}
	}

	return defaultHeartbeat
}

// startReader drains incoming messages to handle control frames and detect closure.
func (h *Handler) startReader(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.log.Debugw("ws_read_closed", "err", err)
			return
		}
	}
}

// sendInitial writes the latest batch, when there is one, followed by the status.
func (h *Handler) sendInitial(conn *websocket.Conn) error {
	if b, ok := h.services.Latest(); ok {
		if err := h.write(conn, envelopeFor(events.SnapshotEvent(b))); err != nil {
			return err
		}
	}
	return h.sendStatus(conn)
}

func (h *Handler) sendStatus(conn *websocket.Conn) error {
	return h.write(conn, wsEnvelope{Type: wsTypeStatus, At: time.Now(), Data: h.services.Status()})
}

func (h *Handler) write(conn *websocket.Conn, env wsEnvelope) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(env)
}
