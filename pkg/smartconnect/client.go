// Package smartconnect is a minimal Angel One SmartAPI REST client covering
// session login (password + TOTP), scrip search and historical candles.
//
// Usage example:
//
//	sc := smartconnect.New(smartconnect.Config{APIKey: "your_api_key"})
//	if err := sc.Login(ctx, "CLIENTID", "PIN", "TOTPSECRET"); err != nil { ... }
//	rows, err := sc.CandleData(ctx, smartconnect.CandleParams{
//	    Exchange: "NSE", SymbolToken: "3045", Interval: smartconnect.FiveMinute,
//	    From: from, To: to,
//	})
package smartconnect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/pquerna/otp/totp"
)

const defaultRoot = "https://apiconnect.angelone.in"

var routes = map[string]string{
	"api.login":        "/rest/auth/angelbroking/user/v1/loginByPassword",
	"api.candle.data":  "/rest/secure/angelbroking/historical/v1/getCandleData",
	"api.search.scrip": "/rest/secure/angelbroking/order/v1/searchScrip",
}

// ErrNotLoggedIn is returned by secure calls made before Login.
var ErrNotLoggedIn = errors.New("smartconnect: not logged in")

// APIError is a SmartAPI error envelope (status=false or error_type set).
type APIError struct {
	HTTPStatus int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("smartconnect: %s (%s, http %d)", e.Message, e.Code, e.HTTPStatus)
}

// TokenExpired reports whether the session must be re-established.
func (e *APIError) TokenExpired() bool {
	return e.HTTPStatus == http.StatusForbidden || e.Code == "AG8001" || e.Code == "TokenException"
}

type Config struct {
	APIKey  string
	RootURL string        // default: https://apiconnect.angelone.in
	Timeout time.Duration // default: 7s

	ClientLocalIP  string // default 127.0.0.1
	ClientPublicIP string // default 127.0.0.1
	ClientMAC      string // default 00:11:22:33:44:55
}

// Client is safe for concurrent use; the session tokens are guarded.
type Client struct {
	cfg        Config
	httpClient *http.Client
	now        func() time.Time

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	feedToken    string
	creds        *credentials
}

type credentials struct {
	clientCode, password, totpSecret string
}

// New creates a client. No network traffic happens until Login.
func New(cfg Config) *Client {
	if cfg.RootURL == "" {
		cfg.RootURL = defaultRoot
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 7 * time.Second
	}
	cfg.ClientLocalIP = firstNonEmpty(cfg.ClientLocalIP, "127.0.0.1")
	cfg.ClientPublicIP = firstNonEmpty(cfg.ClientPublicIP, "127.0.0.1")
	cfg.ClientMAC = firstNonEmpty(cfg.ClientMAC, "00:11:22:33:44:55")
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		now:        time.Now,
	}
}

type envelope struct {
	Status    bool            `json:"status"`
	Message   string          `json:"message"`
	ErrorCode string          `json:"errorcode"`
	ErrorType string          `json:"error_type"`
	Data      json.RawMessage `json:"data"`
}

type sessionData struct {
	JWTToken     string `json:"jwtToken"`
	RefreshToken string `json:"refreshToken"`
	FeedToken    string `json:"feedToken"`
}

// Login opens a session using a TOTP generated from totpSecret. The
// credentials are kept so an expired session can be renewed transparently.
func (c *Client) Login(ctx context.Context, clientCode, password, totpSecret string) error {
	code, err := totp.GenerateCode(totpSecret, c.now())
	if err != nil {
		return fmt.Errorf("smartconnect: totp: %w", err)
	}
	var sess sessionData
	params := map[string]any{"clientcode": clientCode, "password": password, "totp": code}
	if err := c.call(ctx, "api.login", params, false, &sess); err != nil {
		return err
	}
	if sess.JWTToken == "" {
		return &APIError{Code: "EMPTY_TOKEN", Message: "login returned no jwtToken"}
	}

	c.mu.Lock()
	c.accessToken = sess.JWTToken
	c.refreshToken = sess.RefreshToken
	c.feedToken = sess.FeedToken
	c.creds = &credentials{clientCode: clientCode, password: password, totpSecret: totpSecret}
	c.mu.Unlock()
	return nil
}

// FeedToken returns the streaming feed token of the current session.
func (c *Client) FeedToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.feedToken
}

// Scrip is one searchScrip match.
type Scrip struct {
	Exchange      string `json:"exchange"`
	TradingSymbol string `json:"tradingsymbol"`
	SymbolToken   string `json:"symboltoken"`
}

// SearchScrip finds instruments whose trading symbol matches query.
func (c *Client) SearchScrip(ctx context.Context, exchange, query string) ([]Scrip, error) {
	var out []Scrip
	err := c.secure(ctx, "api.search.scrip", map[string]any{"exchange": exchange, "searchscrip": query}, &out)
	return out, err
}

// Interval is a SmartAPI candle interval.
type Interval string

const (
	OneMinute     Interval = "ONE_MINUTE"
	ThreeMinute   Interval = "THREE_MINUTE"
	FiveMinute    Interval = "FIVE_MINUTE"
	TenMinute     Interval = "TEN_MINUTE"
	FifteenMinute Interval = "FIFTEEN_MINUTE"
	ThirtyMinute  Interval = "THIRTY_MINUTE"
	OneHour       Interval = "ONE_HOUR"
	OneDay        Interval = "ONE_DAY"
)

// CandleParams selects a historical candle range. From/To are sent in
// exchange-local time at minute precision.
type CandleParams struct {
	Exchange    string
	SymbolToken string
	Interval    Interval
	From, To    time.Time
}

// CandleRow is one [timestamp, open, high, low, close, volume] row.
// HasVolume is false when the row carried fewer than six fields.
type CandleRow struct {
	TS                     time.Time
	Open, High, Low, Close float64
	Volume                 int64
	HasVolume              bool
}

const candleTimeLayout = "2006-01-02 15:04"

// CandleData fetches historical candles.
func (c *Client) CandleData(ctx context.Context, p CandleParams) ([]CandleRow, error) {
	params := map[string]any{
		"exchange":    p.Exchange,
		"symboltoken": p.SymbolToken,
		"interval":    string(p.Interval),
		"fromdate":    p.From.Format(candleTimeLayout),
		"todate":      p.To.Format(candleTimeLayout),
	}
	var raw [][]any
	if err := c.secure(ctx, "api.candle.data", params, &raw); err != nil {
		return nil, err
	}
	rows := make([]CandleRow, 0, len(raw))
	for _, r := range raw {
		row, ok := parseCandleRow(r)
		if ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func parseCandleRow(r []any) (CandleRow, bool) {
	if len(r) < 5 {
		return CandleRow{}, false
	}
	s, ok := r[0].(string)
	if !ok {
		return CandleRow{}, false
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return CandleRow{}, false
	}
	row := CandleRow{
		TS:    ts,
		Open:  toFloat(r[1]),
		High:  toFloat(r[2]),
		Low:   toFloat(r[3]),
		Close: toFloat(r[4]),
	}
	if len(r) >= 6 && r[5] != nil {
		row.Volume = int64(toFloat(r[5]))
		row.HasVolume = true
	}
	return row, true
}

// secure performs an authenticated call, renewing the session once on
// token expiry.
func (c *Client) secure(ctx context.Context, route string, params map[string]any, out any) error {
	err := c.call(ctx, route, params, true, out)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || !apiErr.TokenExpired() {
		return err
	}

	c.mu.RLock()
	creds := c.creds
	c.mu.RUnlock()
	if creds == nil {
		return err
	}
	if lerr := c.Login(ctx, creds.clientCode, creds.password, creds.totpSecret); lerr != nil {
		return fmt.Errorf("smartconnect: session renewal: %w", lerr)
	}
	return c.call(ctx, route, params, true, out)
}

func (c *Client) call(ctx context.Context, route string, params map[string]any, auth bool, out any) error {
	uri, ok := routes[route]
	if !ok {
		return fmt.Errorf("smartconnect: unknown route %s", route)
	}
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("smartconnect: marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.RootURL+uri, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("smartconnect: create request: %w", err)
	}
	c.setHeaders(req.Header)
	if auth {
		c.mu.RLock()
		token := c.accessToken
		c.mu.RUnlock()
		if token == "" {
			return ErrNotLoggedIn
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("smartconnect: %s: %w", route, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("smartconnect: read %s: %w", route, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode != http.StatusOK {
			return &APIError{HTTPStatus: resp.StatusCode, Code: "HTTP", Message: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("smartconnect: parse %s: %w", route, err)
	}
	if env.ErrorType != "" || !env.Status {
		code := firstNonEmpty(env.ErrorCode, env.ErrorType)
		return &APIError{HTTPStatus: resp.StatusCode, Code: code, Message: env.Message}
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("smartconnect: decode %s data: %w", route, err)
	}
	return nil
}

func (c *Client) setHeaders(h http.Header) {
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	h.Set("X-ClientLocalIP", c.cfg.ClientLocalIP)
	h.Set("X-ClientPublicIP", c.cfg.ClientPublicIP)
	h.Set("X-MACAddress", c.cfg.ClientMAC)
	h.Set("X-PrivateKey", c.cfg.APIKey)
	h.Set("X-UserType", "USER")
	h.Set("X-SourceID", "WEB")
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	case json.Number:
		f, _ := t.Float64()
		return f
	}
	return 0
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
