// ABOUTME: Injectable clock abstraction so liveness logic can run on a virtual clock in tests.
// ABOUTME: SystemClock wraps the time package; tests supply their own implementation.

package registry

import "time"

// Clock supplies the current time and tickers to the registry. The liveness
// sweep runs on a Clock-provided ticker so tests can drive it directly.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker is the subset of time.Ticker the registry needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// SystemClock returns a Clock backed by the time package.
func SystemClock() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) NewTicker(d time.Duration) Ticker {
	return &systemTicker{t: time.NewTicker(d)}
}

type systemTicker struct {
	t *time.Ticker
}

func (s *systemTicker) C() <-chan time.Time { return s.t.C }
func (s *systemTicker) Stop()               { s.t.Stop() }
