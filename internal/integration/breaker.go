// Package integration handles external service interactions
package integration

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

var (
	// ErrUpstream wraps failures talking to an external service
	ErrUpstream = errors.New("upstream service failure")
	// ErrReportFailed means the report service could not render the document
	ErrReportFailed = errors.New("report generation failed")
)

// StatusError is an unexpected HTTP status from an external service.
// It unwraps to the service's sentinel error.
type StatusError struct {
	Service string
	Code    int
	base    error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: %s: unexpected status code: %d", e.base, e.Service, e.Code)
}

func (e *StatusError) Unwrap() error {
	return e.base
}

// ClientError reports whether the service rejected the request itself.
// 429 is a sign of load and counts as a server-side failure.
func (e *StatusError) ClientError() bool {
	return e.Code >= 400 && e.Code < 500 && e.Code != 429
}

func isClientError(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.ClientError()
}

// newBreaker trips after three consecutive failures, or when more than 5% of at
// least 20 requests in the interval failed. 4xx answers do not count as failures.
func newBreaker(name string) *gobreaker.CircuitBreaker {
	st := gobreaker.Settings{Name: name}
	st.Interval = 60 * time.Second
	st.Timeout = 60 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		if counts.Requests < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
	}
	st.IsSuccessful = func(err error) bool {
		return err == nil || isClientError(err)
	}
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
	}
	return gobreaker.NewCircuitBreaker(st)
}

// execute runs fn through the breaker, mapping an open breaker to ErrUpstream
func execute[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	res, err := cb.Execute(func() (interface{}, error) {
		v, err := fn()
		return v, err
	})
	if err != nil {
		var zero T
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("%w: %s: %v", ErrUpstream, cb.Name(), err)
		}
		return zero, err
	}
	return res.(T), nil
}
