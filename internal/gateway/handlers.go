// Package gateway serves screen results over REST and websockets.
package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"volscreener/internal/markethours"
	"volscreener/internal/model"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Controller is the refresh loop as seen by the gateway.
type Controller interface {
	Latest() (model.ScreenResult, bool)
	Trigger() bool
	SetInterval(minutes int) error
	Interval() time.Duration
	Progress() float64
	Running() bool
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// RegisterRoutes registers all HTTP routes on the provided mux.
func RegisterRoutes(mux *http.ServeMux, hub *Hub, ctl Controller, now func() time.Time, log *zap.Logger) {
	log = log.With(zap.String("component", "gateway"))
	if now == nil {
		now = time.Now
	}

	// WebSocket endpoint
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("ws upgrade error", zap.Error(err))
			return
		}
		hub.Attach(conn)
	})

	// REST: latest screen result
	mux.HandleFunc("/api/screen", func(w http.ResponseWriter, r *http.Request) {
		if !allow(w, r, http.MethodGet) {
			return
		}
		res, ok := ctl.Latest()
		if !ok {
			writeJSON(w, http.StatusAccepted, map[string]interface{}{
				"type":     "pending",
				"message":  "First screening cycle in progress",
				"progress": ctl.Progress(),
			})
			return
		}
		writeJSON(w, http.StatusOK, NewScreenOut(res))
	})

	// REST: market and refresher status
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if !allow(w, r, http.MethodGet) {
			return
		}
		t := now()
		st := StatusOut{
			MarketOpen:      markethours.IsMarketOpen(t),
			MarketStatus:    markethours.StatusString(t),
			TimeIST:         formatIST(t),
			Running:         ctl.Running(),
			Progress:        ctl.Progress(),
			IntervalMinutes: int(ctl.Interval() / time.Minute),
			Clients:         hub.ClientCount(),
		}
		if res, ok := ctl.Latest(); ok {
			st.LastUpdate = formatIST(res.GeneratedAt)
		}
		writeJSON(w, http.StatusOK, st)
	})

	// REST: POST /api/refresh starts a cycle now
	mux.HandleFunc("/api/refresh", func(w http.ResponseWriter, r *http.Request) {
		if !allow(w, r, http.MethodPost) {
			return
		}
		if !ctl.Trigger() {
			writeJSON(w, http.StatusConflict, map[string]string{"status": "already_running"})
			return
		}
		log.Info("manual refresh requested")
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
	})

	// REST: POST /api/interval {"minutes": 5}
	mux.HandleFunc("/api/interval", func(w http.ResponseWriter, r *http.Request) {
		if !allow(w, r, http.MethodPost) {
			return
		}
		var req struct {
			Minutes int `json:"minutes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
			return
		}
		if err := ctl.SetInterval(req.Minutes); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		log.Info("refresh interval updated", zap.Int("minutes", req.Minutes))
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "minutes": req.Minutes})
	})
}

// allow applies CORS, answers preflight and rejects other methods.
func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	SetCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return false
	}
	if r.Method != method {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
