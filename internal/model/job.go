package model

import "time"

type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobCancelled JobStatus = "cancelled"
	JobError     JobStatus = "error"
)

// Terminal reports whether no further transition may leave the status.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobCancelled || s == JobError
}

// TunnelRecord is a successful probe outcome additionally classified as
// traversing a tunnel or proxy mechanism. Immutable once appended to a job.
type TunnelRecord struct {
	Host       string    `json:"host"`
	Protocol   string    `json:"protocol"`
	TunnelType string    `json:"tunnel_type"`
	DetectedAt time.Time `json:"detected_at"`
}

// Job is the mutable progress record of one submitted batch probe.
// Only the owning runner mutates progress fields; the registry owns all
// access, nothing outside it sees the struct directly.
type Job struct {
	ID          string
	SessionID   string
	Status      JobStatus
	Protocol    string
	Hosts       []string
	Processed   int
	Successful  int
	Failed      int
	Results     []string
	Tunneled    []TunnelRecord
	CurrentHost string
	Error       string
	CreatedAt   time.Time
	StartedAt   time.Time
	Duration    time.Duration
}

// JobView is a read-only snapshot of a job handed to callers.
type JobView struct {
	ID          string         `json:"scan_id"`
	Status      JobStatus      `json:"status"`
	Protocol    string         `json:"protocol"`
	Hosts       []string       `json:"hosts"`
	Total       int            `json:"total"`
	Processed   int            `json:"processed"`
	Successful  int            `json:"successful"`
	Failed      int            `json:"failed"`
	Results     []string       `json:"results"`
	Tunneled    []TunnelRecord `json:"tunneled,omitempty"`
	CurrentHost string         `json:"current_host,omitempty"`
	Progress    float64        `json:"progress"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	DurationSec float64        `json:"duration_seconds,omitempty"`
}

// JobSummary is the per-job line item of a session listing.
type JobSummary struct {
	ID         string    `json:"scan_id"`
	Status     JobStatus `json:"status"`
	Protocol   string    `json:"protocol"`
	Processed  int       `json:"processed"`
	Total      int       `json:"total"`
	Successful int       `json:"successful"`
	CreatedAt  time.Time `json:"created_at"`
}
