package media

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInputValidation means the URL is malformed or uses a disallowed scheme.
	// Always user-correctable.
	ErrInputValidation = errors.New("invalid url")

	// ErrUnsupportedDomain means the host is not on the platform allow-list
	ErrUnsupportedDomain = errors.New("unsupported domain")

	// ErrNoStrategyApplicable means the registry has nothing for the platform/kind pair
	ErrNoStrategyApplicable = errors.New("no strategy applicable")

	// ErrStrategyTimeout means one strategy exceeded its own budget
	ErrStrategyTimeout = errors.New("strategy timed out")

	// ErrNotViable means a strategy returned without any usable asset URL
	ErrNotViable = errors.New("no media found")

	// ErrTimeout means the whole-request ceiling was exceeded
	ErrTimeout = errors.New("resolution timed out")

	// ErrUpstreamProxy means the download proxy's outbound fetch failed
	ErrUpstreamProxy = errors.New("upstream fetch failed")
)

// StrategyError wraps a failure of one strategy adapter
type StrategyError struct {
	Strategy string
	Err      error
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Strategy, e.Err)
}

func (e *StrategyError) Unwrap() error {
	return e.Err
}

// Attempt records the outcome of one strategy run. It lives only for the
// duration of one resolution.
type Attempt struct {
	Strategy string
	Result   RawResult
	Err      error
	Elapsed  time.Duration
}

// Succeeded reports whether the attempt produced a viable result
func (a Attempt) Succeeded() bool {
	return a.Err == nil && a.Result != nil
}

// TimedOut reports whether the attempt was cut off by its own budget
func (a Attempt) TimedOut() bool {
	return errors.Is(a.Err, ErrStrategyTimeout)
}

// AllStrategiesFailedError is returned once every applicable strategy is exhausted
type AllStrategiesFailedError struct {
	Attempts []Attempt
}

func (e *AllStrategiesFailedError) Error() string {
	reasons := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		reasons = append(reasons, fmt.Sprintf("%s (%s): %v", a.Strategy, a.Elapsed.Round(time.Millisecond), a.Err))
	}
	return "all strategies failed: " + strings.Join(reasons, "; ")
}

// Last returns the failure of the last strategy attempted, which is the one
// surfaced when a sequential chain is exhausted
func (e *AllStrategiesFailedError) Last() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

// IsClientError reports whether err is the caller's fault (HTTP 400)
func IsClientError(err error) bool {
	return errors.Is(err, ErrInputValidation) || errors.Is(err, ErrUnsupportedDomain)
}
