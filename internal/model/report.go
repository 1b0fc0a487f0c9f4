package model

import "time"

// RunReport summarizes one batch classification run.
type RunReport struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Processed  int       `json:"processed"`
	Suggested  int       `json:"suggested"`
	NoMatch    int       `json:"no_match"`
	Errors     []string  `json:"errors"`
	Cancelled  bool      `json:"cancelled,omitempty"`
}

// Duration returns how long the run took.
func (r RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ItemOutcome classifies what happened to one item in a batch.
type ItemOutcome string

const (
	OutcomeSuggested ItemOutcome = "suggested"
	OutcomeNoMatch   ItemOutcome = "no_match"
	OutcomeError     ItemOutcome = "error"
)
