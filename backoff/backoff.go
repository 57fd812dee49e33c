// Package backoff defines the poll interval policy of the session monitor:
// multiplicative growth while polls fail, a hard ceiling, and a snap back to
// the base interval on the first success.
package backoff

import (
	"fmt"
	"time"
)

// Production defaults: refresh every 20s while the API answers, degrade to at
// most one poll pair every two minutes while it does not.
const (
	DefaultBase   = 20 * time.Second
	DefaultMax    = 2 * time.Minute
	DefaultFactor = 1.5
)

// Policy describes how the poll interval reacts to failed polls. A valid
// policy keeps every interval within [Base, Max] and never shrinks it across
// consecutive failures.
type Policy struct {
	Base   time.Duration // interval while polls succeed
	Max    time.Duration // ceiling while polls fail
	Factor float64       // growth per consecutive failure
}

// Default returns the production policy.
func Default() Policy {
	return Policy{Base: DefaultBase, Max: DefaultMax, Factor: DefaultFactor}
}

// Validate checks that the policy can drive a monitor.
func (p Policy) Validate() error {
	if p.Base <= 0 {
		return fmt.Errorf("base interval must be positive, got %s", p.Base)
	}
	if p.Max < p.Base {
		return fmt.Errorf("max interval %s must not be below base interval %s", p.Max, p.Base)
	}
	if p.Factor < 1 {
		return fmt.Errorf("growth factor must be >= 1, got %g", p.Factor)
	}
	return nil
}

// Next returns the interval to wait after one more failed poll, given the
// interval the failed poll waited. Growth is multiplicative and capped at
// Max; input below Base (including zero) is treated as Base.
func (p Policy) Next(current time.Duration) time.Duration {
	if current < p.Base {
		current = p.Base
	}
	next := time.Duration(float64(current) * p.Factor)
	if next > p.Max {
		next = p.Max
	}
	return next
}
