package universe

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"volscreener/internal/model"
)

// NSEEquityListURL is the exchange's published equity master.
const NSEEquityListURL = "https://archives.nseindia.com/content/equities/EQUITY_L.csv"

// ListingSource fetches a full exchange listing.
type ListingSource interface {
	Listing(ctx context.Context) (model.Universe, error)
}

// NSEListing downloads and parses EQUITY_L.csv
// (SYMBOL, NAME OF COMPANY, SERIES, ...). Only the EQ series is kept.
type NSEListing struct {
	URL    string
	Client *http.Client
}

// NewNSEListing creates a listing source for url with a bounded timeout.
func NewNSEListing(url string) *NSEListing {
	if url == "" {
		url = NSEEquityListURL
	}
	return &NSEListing{URL: url, Client: &http.Client{Timeout: 15 * time.Second}}
}

func (l *NSEListing) Listing(ctx context.Context) (model.Universe, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("listing: create request: %w", err)
	}
	// archives.nseindia.com rejects requests without a browser agent
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64)")
	req.Header.Set("Accept", "text/csv")

	resp, err := l.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing: fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing: unexpected status %d", resp.StatusCode)
	}
	return ParseEquityList(resp.Body)
}

// ParseEquityList reads the NSE equity master CSV. Malformed rows are
// skipped; on a read failure the rows parsed so far are returned with the error.
func ParseEquityList(r io.Reader) (model.Universe, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("listing: read header: %w", err)
	}
	symCol, nameCol, seriesCol := -1, -1, -1
	for i, h := range header {
		switch strings.ToUpper(strings.TrimSpace(h)) {
		case "SYMBOL":
			symCol = i
		case "NAME OF COMPANY":
			nameCol = i
		case "SERIES":
			seriesCol = i
		}
	}
	if symCol < 0 || nameCol < 0 {
		return nil, fmt.Errorf("listing: missing SYMBOL or NAME OF COMPANY column")
	}

	out := make(model.Universe)
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			continue
		}
		if err != nil {
			return out, fmt.Errorf("listing: read row: %w", err)
		}
		if len(rec) <= symCol || len(rec) <= nameCol {
			continue
		}
		if seriesCol >= 0 && len(rec) > seriesCol && strings.TrimSpace(rec[seriesCol]) != "EQ" {
			continue
		}
		sym := strings.TrimSpace(rec[symCol])
		if sym == "" {
			continue
		}
		out[sym+defaultSuffix] = strings.TrimSpace(rec[nameCol])
	}
	return out, nil
}
