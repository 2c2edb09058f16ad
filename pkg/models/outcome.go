package models

// OutcomeStatus is the terminal classification of one item in a batch run.
type OutcomeStatus string

const (
	OutcomeTransferred      OutcomeStatus = "transferred"
	OutcomeSkippedDuplicate OutcomeStatus = "skipped-duplicate"
	OutcomeSkippedInvalid   OutcomeStatus = "skipped-invalid"
	OutcomeSkippedFiltered  OutcomeStatus = "skipped-filtered"
	OutcomeFailed           OutcomeStatus = "failed"
	OutcomeDryRun           OutcomeStatus = "dry-run"
)

// IsSkipped reports whether the status is one of the skipped variants.
func (s OutcomeStatus) IsSkipped() bool {
	return s == OutcomeSkippedDuplicate || s == OutcomeSkippedInvalid || s == OutcomeSkippedFiltered
}

// ErrorInfo describes the error behind a failed outcome as plain data.
type ErrorInfo struct {
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code,omitempty"`
}

// ItemOutcome is the single terminal result of one item in a run.
type ItemOutcome struct {
	ItemID     string        `json:"item_id"`
	Name       string        `json:"name"`
	Status     OutcomeStatus `json:"status"`
	Reason     string        `json:"reason,omitempty"`
	Error      *ErrorInfo    `json:"error,omitempty"`
	Attempts   int           `json:"attempts"`
	DurationMs int64         `json:"duration_ms"`
}

// BatchStats are the aggregate counters of one run.
type BatchStats struct {
	Total        int `json:"total"`
	Succeeded    int `json:"succeeded"`
	Skipped      int `json:"skipped"`
	Failed       int `json:"failed"`
	DryRun       int `json:"dry_run"`
	TotalRetries int `json:"total_retries"`
}

// Record counts one terminal outcome.
func (s *BatchStats) Record(status OutcomeStatus) {
	switch {
	case status == OutcomeTransferred:
		s.Succeeded++
	case status == OutcomeDryRun:
		s.DryRun++
	case status == OutcomeFailed:
		s.Failed++
	case status.IsSkipped():
		s.Skipped++
	}
}

// Completed returns the number of items with a terminal outcome.
func (s BatchStats) Completed() int {
	return s.Succeeded + s.Skipped + s.Failed + s.DryRun
}

// SuccessRate is the fraction of completed items that did not fail. Skips and dry runs
// are not failures. A run with nothing completed has a rate of 1.
func (s BatchStats) SuccessRate() float64 {
	completed := s.Completed()
	if completed == 0 {
		return 1
	}

	return float64(completed-s.Failed) / float64(completed)
}
