package worker

import "time"

// RetryPolicy shapes the sheet-sync backoff. A failed task waits Base
// before its first retry, the wait grows by Factor per attempt up to the
// Cap, and the task dead-letters once Attempts tries are spent.
type RetryPolicy struct {
	Attempts int
	Base     time.Duration
	Cap      time.Duration
	Factor   float64
}

// defaultRetryPolicy matches the sheets API quota behavior: a quick
// first retry for transient errors, then backing off toward a minute so
// a stalled spreadsheet does not burn the write quota.
func defaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts: 5,
		Base:     2 * time.Second,
		Cap:      time.Minute,
		Factor:   2,
	}
}

// normalized fills zero fields from the defaults, so callers can tweak
// one knob without restating the rest.
func (p RetryPolicy) normalized() RetryPolicy {
	def := defaultRetryPolicy()
	if p.Attempts <= 0 {
		p.Attempts = def.Attempts
	}
	if p.Base <= 0 {
		p.Base = def.Base
	}
	if p.Cap <= 0 {
		p.Cap = def.Cap
	}
	if p.Factor < 1 {
		p.Factor = def.Factor
	}
	return p
}

// Delay returns the wait before the given try (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	p = p.normalized()

	d := p.Base
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * p.Factor)
		if d >= p.Cap || d <= 0 {
			return p.Cap
		}
	}
	return d
}

// Exhausted reports whether a task that already failed retries times is
// out of attempts.
func (p RetryPolicy) Exhausted(retries int) bool {
	return retries+1 >= p.normalized().Attempts
}
