package launch_ctl

import (
	"context"
	"encoding/json"
	"expvar"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// VizConfig controls the telemetry HTTP endpoint (expvar for jplot, a
// JSON snapshot, and a websocket stream).
type VizConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

var vizVars = expvar.NewMap("launch")

// VizMetrics publishes telemetry snapshots to HTTP clients.
type VizMetrics struct {
	server *http.Server
	hub    *telemetryHub

	mu   sync.RWMutex
	last Telemetry
}

// NewVizMetrics builds the telemetry surface without serving it.
func NewVizMetrics() *VizMetrics {
	return &VizMetrics{hub: newTelemetryHub()}
}

// StartViz serves Handler on cfg.Addr. It returns nil when disabled.
func StartViz(cfg VizConfig) (*VizMetrics, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:7070"
	}

	v := NewVizMetrics()
	v.server = &http.Server{Addr: cfg.Addr, Handler: v.Handler()}
	go func() {
		if err := v.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("viz server error: %v", err)
		}
	}()
	return v, nil
}

// Handler routes the telemetry endpoints.
func (v *VizMetrics) Handler() http.Handler {
	router := mux.NewRouter()
	router.Handle("/debug/vars", expvar.Handler()).Methods("GET")
	router.HandleFunc("/telemetry", v.serveSnapshot).Methods("GET")
	router.HandleFunc("/telemetry/ws", v.serveStream).Methods("GET")
	return router
}

// Close shuts down the HTTP server and disconnects stream clients.
func (v *VizMetrics) Close() error {
	if v == nil {
		return nil
	}
	v.hub.closeAll()
	if v.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return v.server.Shutdown(ctx)
}

// Update publishes the latest snapshot.
func (v *VizMetrics) Update(tm Telemetry) {
	if v == nil {
		return
	}
	v.mu.Lock()
	v.last = tm
	v.mu.Unlock()

	setFloat(vizVars, "measured_rpm", tm.MeasuredRPM)
	setFloat(vizVars, "target_rpm", tm.TargetRPM)
	setFloat(vizVars, "flywheel_power", tm.FlywheelPower)
	setFloat(vizVars, "indexer_angle", tm.IndexerAngle)
	setFloat(vizVars, "indexer_error", tm.IndexerError)
	setFloat(vizVars, "indexer_power", tm.IndexerPower)
	setFloat(vizVars, "turn_rate", tm.TurnRate)
	setFloat(vizVars, "intake_power", tm.IntakePower)
	setString(vizVars, "launcher_state", tm.Launcher)
	setString(vizVars, "stage", tm.Stage)

	payload, err := json.Marshal(tm)
	if err != nil {
		return
	}
	v.hub.broadcast(payload)
}

// Last returns the most recently published snapshot.
func (v *VizMetrics) Last() Telemetry {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.last
}

func (v *VizMetrics) serveSnapshot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v.Last()); err != nil {
		log.Printf("telemetry encode: %v", err)
	}
}

func (v *VizMetrics) serveStream(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("telemetry upgrade: %v", err)
		return
	}
	v.hub.serve(conn)
}

// setFloat updates an expvar.Float stored inside a map.
func setFloat(m *expvar.Map, key string, value float64) {
	if v := m.Get(key); v != nil {
		if f, ok := v.(*expvar.Float); ok {
			f.Set(value)
			return
		}
	}
	f := new(expvar.Float)
	f.Set(value)
	m.Set(key, f)
}

func setString(m *expvar.Map, key string, value string) {
	if v := m.Get(key); v != nil {
		if s, ok := v.(*expvar.String); ok {
			s.Set(value)
			return
		}
	}
	s := new(expvar.String)
	s.Set(value)
	m.Set(key, s)
}

type telemetryClient struct {
	conn *websocket.Conn
	send chan []byte
}

// telemetryHub fans snapshots out to websocket clients. Slow clients
// drop frames rather than stall the control loop.
type telemetryHub struct {
	mu      sync.Mutex
	clients map[*telemetryClient]struct{}
}

func newTelemetryHub() *telemetryHub {
	return &telemetryHub{clients: map[*telemetryClient]struct{}{}}
}

func (h *telemetryHub) broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
		}
	}
}

// serve blocks until the client disconnects.
func (h *telemetryHub) serve(conn *websocket.Conn) {
	c := &telemetryClient{conn: conn, send: make(chan []byte, 16)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		h.remove(c)
		_ = conn.Close()
	}()

	for {
		select {
		case <-closed:
			return
		case payload, ok := <-c.send:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}

func (h *telemetryHub) remove(c *telemetryClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
	}
}

func (h *telemetryHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

func (h *telemetryHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
