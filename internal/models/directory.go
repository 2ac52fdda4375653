package models

import "time"

// Member is a club member as the backend directory reports it.
type Member struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Tier  string `json:"tier"`
}

// Visitor is a known non-member with a standing record.
type Visitor struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// StaffMember can be assigned as a booking owner with zero additional
// players and zero guest fees.
type StaffMember struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// DirectorySnapshot is the cached read-only directory used for quick-add
// matching and the duplicate-visitor guard.
type DirectorySnapshot struct {
	Members   []Member      `json:"members"`
	Visitors  []Visitor     `json:"visitors"`
	Staff     []StaffMember `json:"staff"`
	FetchedAt time.Time     `json:"fetchedAt"`
}

// Activity kinds shown on the dashboard.
const (
	ActivityTour     = "tour"
	ActivityEvent    = "event"
	ActivityWellness = "wellness"
)

// Activity is one upcoming tour, event or wellness class.
type Activity struct {
	ID       int64     `json:"id"`
	Kind     string    `json:"kind"`
	Title    string    `json:"title"`
	Start    time.Time `json:"start"`
	Location string    `json:"location,omitempty"`
}
