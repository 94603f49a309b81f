package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// ScrapeRun is the operational record of one orchestrator execution.
type ScrapeRun struct {
	ID            string     `json:"id" db:"id"`
	StartedAt     time.Time  `json:"started_at" db:"started_at"`
	FinishedAt    *time.Time `json:"finished_at" db:"finished_at"`
	Status        RunStatus  `json:"status" db:"status"`
	ListingsFound int        `json:"listings_found" db:"listings_found"`
	ListingsSaved int        `json:"listings_saved" db:"listings_saved"`
	ErrorsCount   int        `json:"errors_count" db:"errors_count"`
}

// RunStats holds the observability counters for a run. They never drive
// control flow; they are persisted once at the end under the STATS key.
type RunStats struct {
	TotalProcessed        int       `json:"total_processed"`
	SuccessfulExtractions int       `json:"successful_extractions"`
	FailedExtractions     int       `json:"failed_extractions"`
	DuplicatesRemoved     int       `json:"duplicates_removed"`
	StartTime             time.Time `json:"start_time"`
	EndTime               time.Time `json:"end_time,omitempty"`
	DurationSeconds       float64   `json:"duration_seconds,omitempty"`
	SuccessRate           float64   `json:"success_rate,omitempty"`
}

// Finalize stamps the end time and derives duration and success rate.
func (s *RunStats) Finalize(now time.Time) {
	s.EndTime = now
	s.DurationSeconds = now.Sub(s.StartTime).Seconds()
	total := s.TotalProcessed
	if total < 1 {
		total = 1
	}
	s.SuccessRate = float64(s.SuccessfulExtractions) / float64(total) * 100
}

// RunState is the cross-run tracking payload persisted under the STATE key
// when tracking mode is enabled.
type RunState struct {
	SeenListings []string `json:"seen_listings"`
	LastRun      string   `json:"last_run"`
}
