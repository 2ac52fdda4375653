package search

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"teesheet/internal/domain"
	"teesheet/internal/metrics"
	"teesheet/internal/models"

	"github.com/rs/zerolog"
)

const (
	DefaultInterval = 300 * time.Millisecond
	defaultMinLen   = 3
	defaultLimit    = 10
)

// Debouncer issues monotonic sequence numbers for incremental queries.
// Each query takes a number, sleeps out the debounce window, and checks
// freshness before and after the backend call; a query whose number is no
// longer current has been superseded and its result must be dropped. The
// post-call check closes the race where an early slow response lands
// after a newer query's fast one.
type Debouncer struct {
	interval time.Duration
	seq      atomic.Uint64
}

func NewDebouncer(interval time.Duration) *Debouncer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Debouncer{interval: interval}
}

// Next issues the sequence number for a newly arrived query, superseding
// all earlier ones.
func (d *Debouncer) Next() uint64 {
	return d.seq.Add(1)
}

// Current returns the latest issued sequence number.
func (d *Debouncer) Current() uint64 {
	return d.seq.Load()
}

// Fresh reports whether seq is still the newest query.
func (d *Debouncer) Fresh(seq uint64) bool {
	return seq == d.seq.Load()
}

// Wait sleeps out the debounce window and reports whether seq survived
// it. Earlier queries in a burst wake up already superseded, so only the
// last one proceeds to the backend.
func (d *Debouncer) Wait(ctx context.Context, seq uint64) bool {
	timer := time.NewTimer(d.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
	}
	return d.Fresh(seq)
}

// Searcher serves the panel's incremental member and visitor lookups.
// Every keystroke arrives as its own request; bursts collapse inside the
// debounce window and stale responses report ok=false so the caller
// drops them instead of rendering over fresher results. Member and
// visitor boxes debounce independently.
type Searcher struct {
	api      domain.SearchAPI
	members  *Debouncer
	visitors *Debouncer
	minLen   int
	limit    int
	logger   zerolog.Logger
}

func NewSearcher(api domain.SearchAPI, interval time.Duration, minLen, limit int, logger *zerolog.Logger) *Searcher {
	if minLen <= 0 {
		minLen = defaultMinLen
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	base := zerolog.Nop()
	if logger != nil {
		base = logger.With().Str("component", "search").Logger()
	}
	return &Searcher{
		api:      api,
		members:  NewDebouncer(interval),
		visitors: NewDebouncer(interval),
		minLen:   minLen,
		limit:    limit,
		logger:   base,
	}
}

// Members runs one debounced member lookup. Queries below the minimum
// length clear results immediately without a backend call. ok=false
// means a newer query superseded this one while it was pending.
func (s *Searcher) Members(ctx context.Context, query string, limit int) ([]models.Member, bool, error) {
	return searchOne(ctx, s, s.members, "members", query, limit, s.api.SearchMembers)
}

// Visitors runs one debounced lookup over existing visitor records, used
// to fill reconciliation player slots.
func (s *Searcher) Visitors(ctx context.Context, query string, limit int) ([]models.Visitor, bool, error) {
	return searchOne(ctx, s, s.visitors, "visitors", query, limit, s.api.SearchVisitors)
}

func searchOne[T any](ctx context.Context, s *Searcher, d *Debouncer, entity, query string, limit int, call func(context.Context, string, int) ([]T, error)) ([]T, bool, error) {
	query = strings.TrimSpace(query)
	if len(query) < s.minLen {
		return nil, true, nil
	}
	if limit <= 0 {
		limit = s.limit
	}

	seq := d.Next()
	if !d.Wait(ctx, seq) {
		metrics.IncStaleSearch()
		return nil, false, nil
	}

	out, err := call(ctx, query, limit)
	if err != nil {
		return nil, false, err
	}
	if !d.Fresh(seq) {
		// A newer keystroke arrived while this one was on the wire.
		metrics.IncStaleSearch()
		s.logger.Debug().Str("entity", entity).Str("query", query).Msg("discarding stale search response")
		return nil, false, nil
	}
	return out, true, nil
}
