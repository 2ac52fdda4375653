package dashboard

import (
	"testing"
	"time"

	"teesheet/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func TestNextUpcoming(t *testing.T) {
	items := []models.Activity{
		{ID: 1, Title: "Past", Start: base.Add(-time.Hour)},
		{ID: 2, Title: "Later", Start: base.Add(3 * time.Hour)},
		{ID: 3, Title: "Soonest", Start: base.Add(time.Hour)},
	}

	next, ok := NextUpcoming(items, base)
	require.True(t, ok)
	assert.Equal(t, "Soonest", next.Title)

	_, ok = NextUpcoming(nil, base)
	assert.False(t, ok)

	// Everything already started.
	_, ok = NextUpcoming(items[:1], base)
	assert.False(t, ok)
}

func TestFormatRelative(t *testing.T) {
	cases := []struct {
		offset time.Duration
		want   string
	}{
		{-time.Minute, "started"},
		{30 * time.Second, "starting now"},
		{45 * time.Minute, "in 45m"},
		{2 * time.Hour, "in 2h"},
		{2*time.Hour + 30*time.Minute, "in 2h 30m"},
		{3 * 24 * time.Hour, "in 3d"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatRelative(base.Add(tc.offset), base), "offset %s", tc.offset)
	}
}

func TestSummarize(t *testing.T) {
	items := []models.Activity{
		{Kind: models.ActivityEvent, Title: "Member Night", Start: base.Add(2 * time.Hour), Location: "Bar"},
		{Kind: models.ActivityWellness, Title: "Yoga", Start: base.Add(26 * time.Hour)},
		{Kind: models.ActivityWellness, Title: "Old Yoga", Start: base.Add(-time.Hour)},
	}

	tiles := Summarize(items, base, time.UTC)
	require.Len(t, tiles, 3)

	// Populated tiles come before the empty tour tile.
	assert.Equal(t, models.ActivityEvent, tiles[0].Kind)
	assert.Equal(t, "Member Night", tiles[0].Title)
	assert.Equal(t, "Bar", tiles[0].Location)
	assert.Equal(t, "in 2h", tiles[0].StartsIn)
	assert.Equal(t, "Sat, Mar 14 11:00", tiles[0].StartsAt)

	assert.Equal(t, models.ActivityWellness, tiles[1].Kind)
	assert.Equal(t, "Yoga", tiles[1].Title)
	assert.Equal(t, "in 1d", tiles[1].StartsIn)

	assert.Equal(t, models.ActivityTour, tiles[2].Kind)
	assert.True(t, tiles[2].Empty)
}

func TestSummarizeAllEmpty(t *testing.T) {
	tiles := Summarize(nil, base, time.UTC)
	require.Len(t, tiles, 3)
	for _, tile := range tiles {
		assert.True(t, tile.Empty, "kind %s", tile.Kind)
		assert.Empty(t, tile.Title)
	}
}
