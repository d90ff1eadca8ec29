package model

import (
	"errors"
	"fmt"
)

// Reason classifies why a per-symbol operation produced no value.
type Reason string

const (
	// transient upstream
	ReasonEmpty       Reason = "empty"
	ReasonUpstream    Reason = "upstream_error"
	ReasonNoMarketCap Reason = "no_market_cap"

	// systemic
	ReasonCircuitOpen Reason = "circuit_open"
	ReasonCancelled   Reason = "cancelled"

	// data quality
	ReasonNoVolume            Reason = "no_volume"
	ReasonDegenerateVolume    Reason = "degenerate_volume"
	ReasonThinBaseline        Reason = "insufficient_baseline"
	ReasonZeroBaseline        Reason = "zero_baseline"
	ReasonNoCurrentCandle     Reason = "no_current_candle"
	ReasonZeroCurrentVolume   Reason = "zero_current_volume"
	ReasonUnsupportedCurrency Reason = "unsupported_currency"
)

// Transient reports whether another attempt may yield a different outcome.
func (r Reason) Transient() bool {
	return r == ReasonEmpty || r == ReasonUpstream || r == ReasonNoMarketCap
}

// AbsenceError is the "no value" outcome of a per-symbol operation.
type AbsenceError struct {
	Symbol string
	Reason Reason
	Err    error
}

func (e *AbsenceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Symbol, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Symbol, e.Reason)
}

func (e *AbsenceError) Unwrap() error { return e.Err }

// Absent builds an *AbsenceError.
func Absent(symbol string, reason Reason, err error) error {
	return &AbsenceError{Symbol: symbol, Reason: reason, Err: err}
}

// ReasonOf extracts the Reason from err. Errors that are not absences
// are reported as ReasonUpstream.
func ReasonOf(err error) Reason {
	if err == nil {
		return ""
	}
	var ae *AbsenceError
	if errors.As(err, &ae) {
		return ae.Reason
	}
	return ReasonUpstream
}
