package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"volscreener/internal/model"
)

func TestTelegramNotifier_Send(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "42", zap.NewNop())
	n.baseURL = srv.URL
	require.NoError(t, n.Send(context.Background(), Alert{Level: AlertInfo, Title: "A&B", Message: "<x>"}))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "HTML", got["parse_mode"])
	assert.Equal(t, true, got["disable_notification"])
	assert.Contains(t, got["text"], "<b>A&amp;B</b>")
	assert.Contains(t, got["text"], "&lt;x&gt;")
}

func TestWebhookNotifier_Payload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	require.NoError(t, NewWebhookNotifier(srv.URL, zap.NewNop()).Send(context.Background(),
		Alert{Level: AlertWarning, Title: "t", Message: "m"}))
	assert.Equal(t, "volscreener", got["source"])
	assert.Equal(t, "WARNING", got["level"])
	assert.Equal(t, "t", got["title"])
	assert.NotEmpty(t, got["sent_at"])
}

func TestWebhookNotifier_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL, zap.NewNop()).Send(context.Background(), Alert{Title: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

type failing struct{}

func (failing) Send(context.Context, Alert) error { return errors.New("down") }

func TestMulti_JoinsErrors(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := Multi{NewLogNotifier(zap.New(core)), failing{}}
	err := m.Send(context.Background(), Alert{Level: AlertWarning, Title: "t", Message: "m"})
	assert.ErrorContains(t, err, "down")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zap.WarnLevel, logs.All()[0].Level)
}

func row(sym string) model.ScreenRow {
	return model.ScreenRow{VolumeRecord: model.VolumeRecord{Symbol: sym, SpikeRatio: 12}}
}

func TestScreenAlerts(t *testing.T) {
	live := model.ScreenResult{Rows: []model.ScreenRow{row("A"), row("B")}}
	alerts := ScreenAlerts(nil, live)
	require.Len(t, alerts, 1)
	assert.Equal(t, "New volume spikes", alerts[0].Title)

	next := model.ScreenResult{Rows: []model.ScreenRow{row("B"), row("C")}}
	alerts = ScreenAlerts(&live, next)
	require.Len(t, alerts, 1)
	assert.True(t, strings.HasPrefix(alerts[0].Message, "C "))

	degraded := model.ScreenResult{Degraded: true, Rows: []model.ScreenRow{row("S")}}
	alerts = ScreenAlerts(&next, degraded)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertWarning, alerts[0].Level)

	assert.Empty(t, ScreenAlerts(&degraded, degraded))

	alerts = ScreenAlerts(&degraded, next)
	require.Len(t, alerts, 2)
	assert.Equal(t, "Live data restored", alerts[0].Title)
}
