package services

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks a contract field that cannot be coerced and has no default
	ErrInvalidInput = errors.New("invalid input")
	// ErrPriceUnavailable means the underlying price was missing or not positive
	ErrPriceUnavailable = errors.New("underlying price unavailable")
	// ErrQuoteNotFound means neither the exact nor the relaxed lookup matched
	ErrQuoteNotFound = errors.New("option quote not found")
	// ErrUpstreamUnavailable wraps transport and HTTP failures from a gateway
	ErrUpstreamUnavailable = errors.New("market data upstream unavailable")
)

// SimulationError reports why one contract produced no scenario rows
type SimulationError struct {
	Ticker string
	Err    error
}

func (e *SimulationError) Error() string {
	switch {
	case errors.Is(e.Err, ErrPriceUnavailable):
		return fmt.Sprintf("Could not fetch a valid stock price for %s.", e.Ticker)
	case errors.Is(e.Err, ErrQuoteNotFound):
		return fmt.Sprintf("No matching or fallback contract found for %s.", e.Ticker)
	}
	return e.Err.Error()
}

func (e *SimulationError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err means no quote could be used. Upstream
// failures count as not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrQuoteNotFound) || errors.Is(err, ErrUpstreamUnavailable)
}
