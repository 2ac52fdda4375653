package dashboard

import (
	"fmt"
	"sort"
	"time"

	"teesheet/internal/models"
)

// Tile is one rendered dashboard widget: the nearest upcoming activity of
// a kind, or an explicit empty state.
type Tile struct {
	Kind     string `json:"kind"`
	Empty    bool   `json:"empty"`
	Title    string `json:"title,omitempty"`
	Location string `json:"location,omitempty"`
	StartsAt string `json:"startsAt,omitempty"`
	StartsIn string `json:"startsIn,omitempty"`
}

// NextUpcoming returns the soonest activity starting at or after now.
func NextUpcoming(items []models.Activity, now time.Time) (models.Activity, bool) {
	var (
		best  models.Activity
		found bool
	)
	for _, a := range items {
		if a.Start.Before(now) {
			continue
		}
		if !found || a.Start.Before(best.Start) {
			best = a
			found = true
		}
	}
	return best, found
}

// FormatRelative renders time-to-start in the coarsest useful unit.
func FormatRelative(start, now time.Time) string {
	d := start.Sub(now)
	switch {
	case d < 0:
		return "started"
	case d < time.Minute:
		return "starting now"
	case d < time.Hour:
		return fmt.Sprintf("in %dm", int(d.Minutes()))
	case d < 24*time.Hour:
		h := int(d.Hours())
		m := int(d.Minutes()) - h*60
		if m == 0 {
			return fmt.Sprintf("in %dh", h)
		}
		return fmt.Sprintf("in %dh %dm", h, m)
	default:
		return fmt.Sprintf("in %dd", int(d.Hours()/24))
	}
}

// FormatLocal renders a localized start time.
func FormatLocal(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format("Mon, Jan 2 15:04")
}

// Summarize builds one tile per activity kind from an already-fetched
// list. Kinds with nothing upcoming get an empty tile; there is no error
// state beyond that.
func Summarize(items []models.Activity, now time.Time, loc *time.Location) []Tile {
	kinds := []string{models.ActivityTour, models.ActivityEvent, models.ActivityWellness}

	byKind := make(map[string][]models.Activity)
	for _, a := range items {
		byKind[a.Kind] = append(byKind[a.Kind], a)
	}

	tiles := make([]Tile, 0, len(kinds))
	for _, kind := range kinds {
		next, ok := NextUpcoming(byKind[kind], now)
		if !ok {
			tiles = append(tiles, Tile{Kind: kind, Empty: true})
			continue
		}
		tiles = append(tiles, Tile{
			Kind:     kind,
			Title:    next.Title,
			Location: next.Location,
			StartsAt: FormatLocal(next.Start, loc),
			StartsIn: FormatRelative(next.Start, now),
		})
	}

	sort.SliceStable(tiles, func(i, j int) bool {
		// Non-empty tiles first, preserving kind order otherwise.
		return !tiles[i].Empty && tiles[j].Empty
	})
	return tiles
}
