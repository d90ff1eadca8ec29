package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"volscreener/internal/markethours"
	"volscreener/internal/model"
)

type fakeController struct {
	result   *model.ScreenResult
	running  bool
	interval time.Duration
}

func (f *fakeController) Latest() (model.ScreenResult, bool) {
	if f.result == nil {
		return model.ScreenResult{}, false
	}
	return *f.result, true
}

func (f *fakeController) Trigger() bool {
	if f.running {
		return false
	}
	f.running = true
	return true
}

func (f *fakeController) SetInterval(m int) error {
	if m != 1 && m != 5 && m != 10 {
		return errors.New("unsupported interval")
	}
	f.interval = time.Duration(m) * time.Minute
	return nil
}

func (f *fakeController) Interval() time.Duration { return f.interval }
func (f *fakeController) Progress() float64       { return 0.35 }
func (f *fakeController) Running() bool           { return f.running }

var sampleResult = model.ScreenResult{
	CycleID:     "c1",
	GeneratedAt: time.Date(2024, 3, 5, 5, 0, 0, 0, time.UTC),
	Rows: []model.ScreenRow{{
		VolumeRecord: model.VolumeRecord{Symbol: "SBIN.NS", Name: "State Bank of India", CurrentVolume: 15000, AvgVolumePrevDay: 1000, SpikeRatio: 15},
		MarketCapCr:  2500,
		CapSource:    model.CapLive,
	}},
	Stats: model.CycleStats{UniverseSize: 50},
}

func newTestServer(t *testing.T, ctl Controller) (*httptest.Server, *Hub) {
	t.Helper()
	hub := NewHub(zap.NewNop())
	mux := http.NewServeMux()
	now := func() time.Time { return time.Date(2024, 3, 5, 10, 0, 0, 0, markethours.IST) }
	RegisterRoutes(mux, hub, ctl, now, zap.NewNop())
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return srv, hub
}

func TestScreen_PendingThenResult(t *testing.T) {
	ctl := &fakeController{interval: 5 * time.Minute}
	srv, _ := newTestServer(t, ctl)

	resp, err := http.Get(srv.URL + "/api/screen")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	ctl.result = &sampleResult
	resp, err = http.Get(srv.URL + "/api/screen")
	require.NoError(t, err)
	defer resp.Body.Close()
	var out ScreenOut
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Rows, 1)
	assert.Equal(t, "2.50K", out.Rows[0].MarketCap)
	assert.Equal(t, "15.00x", out.Rows[0].SpikeRatio)
	assert.Equal(t, "2024-03-05 10:30:00 IST", out.LastUpdate)
	assert.Empty(t, out.Message)
}

func TestStatusAndControls(t *testing.T) {
	ctl := &fakeController{interval: 5 * time.Minute}
	srv, _ := newTestServer(t, ctl)

	resp, err := http.Get(srv.URL + "/api/status")
	require.NoError(t, err)
	var st StatusOut
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	resp.Body.Close()
	assert.True(t, st.MarketOpen)
	assert.Equal(t, 5, st.IntervalMinutes)
	assert.Equal(t, 0.35, st.Progress)

	resp, err = http.Post(srv.URL+"/api/refresh", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp, err = http.Post(srv.URL+"/api/refresh", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/api/interval", "application/json", bytes.NewBufferString(`{"minutes":10}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 10*time.Minute, ctl.interval)

	resp, err = http.Post(srv.URL+"/api/interval", "application/json", bytes.NewBufferString(`{"minutes":7}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/refresh")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestWebsocket_LatestOnConnectThenPush(t *testing.T) {
	srv, hub := newTestServer(t, &fakeController{})
	require.NoError(t, hub.PublishResult(context.Background(), sampleResult))

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() ScreenOut {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		var out ScreenOut
		require.NoError(t, json.Unmarshal(msg, &out))
		return out
	}
	assert.Equal(t, "c1", read().CycleID)

	next := sampleResult
	next.CycleID = "c2"
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, hub.PublishResult(context.Background(), next))
	assert.Equal(t, "c2", read().CycleID)
}

func TestWebsocket_PingAndLatestRequests(t *testing.T) {
	srv, hub := newTestServer(t, &fakeController{})
	require.NoError(t, hub.PublishResult(context.Background(), sampleResult))

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	readRaw := func() map[string]any {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var m map[string]any
		require.NoError(t, conn.ReadJSON(&m))
		return m
	}
	assert.Equal(t, "c1", readRaw()["cycle_id"])

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ping", "ts": 77}))
	pong := readRaw()
	assert.Equal(t, "pong", pong["type"])
	assert.EqualValues(t, 77, pong["ts"])

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "latest"}))
	assert.Equal(t, "c1", readRaw()["cycle_id"])
}

func TestNewScreenOut_Messages(t *testing.T) {
	assert.Equal(t, "No symbols available to screen", NewScreenOut(model.ScreenResult{}).Message)
	assert.Equal(t, "No stocks meet the screening criteria",
		NewScreenOut(model.ScreenResult{Stats: model.CycleStats{UniverseSize: 3}}).Message)
	degraded := sampleResult
	degraded.Degraded = true
	assert.Contains(t, NewScreenOut(degraded).Message, "sample data")
}
