package search

import (
	"context"
	"sync"
	"testing"
	"time"

	"teesheet/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingSearchAPI records every query that reaches the backend and can
// delay individual queries to simulate slow responses.
type countingSearchAPI struct {
	mu       sync.Mutex
	calls    []string
	delays   map[string]time.Duration
	members  map[string][]models.Member
	visitors map[string][]models.Visitor
}

func newCountingSearchAPI() *countingSearchAPI {
	return &countingSearchAPI{
		delays:   make(map[string]time.Duration),
		members:  make(map[string][]models.Member),
		visitors: make(map[string][]models.Visitor),
	}
}

func (a *countingSearchAPI) record(query string) time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, query)
	return a.delays[query]
}

func (a *countingSearchAPI) SearchMembers(ctx context.Context, query string, limit int) ([]models.Member, error) {
	if d := a.record(query); d > 0 {
		time.Sleep(d)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.members[query], nil
}

func (a *countingSearchAPI) SearchVisitors(ctx context.Context, query string, limit int) ([]models.Visitor, error) {
	if d := a.record(query); d > 0 {
		time.Sleep(d)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.visitors[query], nil
}

func (a *countingSearchAPI) queries() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.calls))
	copy(out, a.calls)
	return out
}

func TestDebouncerFreshness(t *testing.T) {
	d := NewDebouncer(5 * time.Millisecond)

	first := d.Next()
	second := d.Next()

	assert.False(t, d.Fresh(first))
	assert.True(t, d.Fresh(second))
	assert.Equal(t, second, d.Current())

	assert.False(t, d.Wait(context.Background(), first))
	assert.True(t, d.Wait(context.Background(), second))
}

func TestDebouncerWaitCancelled(t *testing.T) {
	d := NewDebouncer(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	assert.False(t, d.Wait(ctx, d.Next()))
	assert.Less(t, time.Since(start), time.Second)
}

func TestSearcherShortQueryClearsWithoutBackendCall(t *testing.T) {
	api := newCountingSearchAPI()
	s := NewSearcher(api, time.Millisecond, 3, 10, nil)

	members, ok, err := s.Members(context.Background(), "  jo ", 0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Nil(t, members)
	assert.Empty(t, api.queries())
}

func TestSearcherDeliversFreshResults(t *testing.T) {
	api := newCountingSearchAPI()
	api.members["john"] = []models.Member{{Email: "john@club.test", Name: "John Smith"}}
	s := NewSearcher(api, time.Millisecond, 3, 10, nil)

	members, ok, err := s.Members(context.Background(), "john", 0)
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, members, 1)
	assert.Equal(t, "john@club.test", members[0].Email)
	assert.Equal(t, []string{"john"}, api.queries())
}

func TestSearcherCollapsesBurst(t *testing.T) {
	api := newCountingSearchAPI()
	api.members["john"] = []models.Member{{Email: "john@club.test", Name: "John Smith"}}
	s := NewSearcher(api, 60*time.Millisecond, 3, 10, nil)

	// A typing burst: each keystroke supersedes the previous one while it
	// is still inside the debounce window.
	var wg sync.WaitGroup
	var mu sync.Mutex
	var dropped int
	for _, q := range []string{"joh", "john ", "john s"} {
		wg.Add(1)
		go func(query string) {
			defer wg.Done()
			_, ok, err := s.Members(context.Background(), query, 0)
			assert.NoError(t, err)
			mu.Lock()
			if !ok {
				dropped++
			}
			mu.Unlock()
		}(q)
		time.Sleep(10 * time.Millisecond)
	}

	members, ok, err := s.Members(context.Background(), "john", 0)
	wg.Wait()

	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, members, 1)
	assert.Equal(t, 3, dropped)
	// Only the final query reached the backend.
	assert.Equal(t, []string{"john"}, api.queries())
}

func TestSearcherDiscardsSlowStaleResponse(t *testing.T) {
	api := newCountingSearchAPI()
	api.members["johns"] = []models.Member{{Email: "stale@club.test"}}
	api.members["john smith"] = []models.Member{{Email: "john@club.test"}}
	api.delays["johns"] = 150 * time.Millisecond
	s := NewSearcher(api, 5*time.Millisecond, 3, 10, nil)

	var wg sync.WaitGroup
	var staleMembers []models.Member
	var staleOK bool
	wg.Add(1)
	go func() {
		defer wg.Done()
		var err error
		staleMembers, staleOK, err = s.Members(context.Background(), "johns", 0)
		assert.NoError(t, err)
	}()

	// Let the first query get past its debounce window and onto the wire,
	// then issue a newer one that returns quickly.
	time.Sleep(50 * time.Millisecond)
	members, ok, err := s.Members(context.Background(), "john smith", 0)
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, members, 1)
	assert.Equal(t, "john@club.test", members[0].Email)

	wg.Wait()
	assert.False(t, staleOK)
	assert.Nil(t, staleMembers)
	assert.Equal(t, []string{"johns", "john smith"}, api.queries())
}

func TestSearcherVisitors(t *testing.T) {
	api := newCountingSearchAPI()
	api.visitors["jane"] = []models.Visitor{{ID: 5, Name: "Jane Doe", Email: "jane@visitors.test"}}
	s := NewSearcher(api, time.Millisecond, 3, 10, nil)

	visitors, ok, err := s.Visitors(context.Background(), "jane", 0)
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, visitors, 1)
	assert.Equal(t, int64(5), visitors[0].ID)

	// Member and visitor boxes debounce independently: a member query
	// does not supersede a visitor one.
	_, ok, err = s.Members(context.Background(), "jane", 0)
	require.NoError(t, err)
	assert.True(t, ok)
}
