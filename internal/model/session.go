package model

import "time"

// Session is a time-bounded authorization context under which scans are
// created and grouped. Validity is anchored to CreatedAt only; LastActivity
// is refreshed on every validation but does not extend the lifetime.
type Session struct {
	ID           string
	CreatedAt    time.Time
	LastActivity time.Time
	JobsCreated  int
	ActiveJobs   map[string]struct{}
}
