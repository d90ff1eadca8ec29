package angel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volscreener/internal/markethours"
	"volscreener/internal/model"
	"volscreener/pkg/smartconnect"
)

type fakeAPI struct {
	scrips   []smartconnect.Scrip
	rows     []smartconnect.CandleRow
	err      error
	searches int
	params   smartconnect.CandleParams
}

func (f *fakeAPI) SearchScrip(ctx context.Context, exchange, query string) ([]smartconnect.Scrip, error) {
	f.searches++
	return f.scrips, nil
}

func (f *fakeAPI) CandleData(ctx context.Context, p smartconnect.CandleParams) ([]smartconnect.CandleRow, error) {
	f.params = p
	return f.rows, f.err
}

func TestHistory_ResolvesEquityToken(t *testing.T) {
	open := time.Date(2024, 3, 5, 9, 15, 0, 0, markethours.IST)
	api := &fakeAPI{
		scrips: []smartconnect.Scrip{
			{TradingSymbol: "SBIN-BL", SymbolToken: "9999"},
			{TradingSymbol: "SBIN-EQ", SymbolToken: "3045"},
		},
		rows: []smartconnect.CandleRow{{TS: open, Volume: 5000, HasVolume: true}},
	}
	p := New(api)

	s, err := p.History(context.Background(), "SBIN.NS", open, open.Add(time.Hour), 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "3045", api.params.SymbolToken)
	assert.Equal(t, smartconnect.FiveMinute, api.params.Interval)
	assert.True(t, s.HasVolume)
	assert.Equal(t, int64(5000), s.Candles[0].Volume)

	_, err = p.History(context.Background(), "SBIN.NS", open, open.Add(time.Hour), 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, api.searches, "token lookups are cached")
}

func TestHistory_MissingVolumeColumn(t *testing.T) {
	api := &fakeAPI{
		scrips: []smartconnect.Scrip{{TradingSymbol: "TCS-EQ", SymbolToken: "11536"}},
		rows:   []smartconnect.CandleRow{{TS: time.Now(), Close: 4000}},
	}
	s, err := New(api).History(context.Background(), "TCS.NS", time.Now(), time.Now(), 5*time.Minute)
	require.NoError(t, err)
	assert.False(t, s.HasVolume)
}

func TestHistory_UnknownSymbol(t *testing.T) {
	_, err := New(&fakeAPI{}).History(context.Background(), "NOPE.NS", time.Now(), time.Now(), 5*time.Minute)
	assert.Equal(t, model.ReasonEmpty, model.ReasonOf(err))
}

func TestHistory_UpstreamError(t *testing.T) {
	api := &fakeAPI{
		scrips: []smartconnect.Scrip{{TradingSymbol: "ITC-EQ", SymbolToken: "1660"}},
		err:    errors.New("AB1004"),
	}
	_, err := New(api).History(context.Background(), "ITC.NS", time.Now(), time.Now(), 5*time.Minute)
	assert.Error(t, err)
	assert.Equal(t, model.ReasonUpstream, model.ReasonOf(err))
}

func TestHistory_UnsupportedInterval(t *testing.T) {
	_, err := New(&fakeAPI{}).History(context.Background(), "ITC.NS", time.Now(), time.Now(), 2*time.Minute)
	assert.Error(t, err)
}
