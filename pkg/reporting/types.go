package reporting

import "time"

// RunStatus represents the terminal status of a CE or minimize run.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
	StatusStopped   RunStatus = "stopped"
)

// RunReport is the full record of one ceflags invocation, persisted as
// JSON alongside the run directory's plain-text iteration artifacts.
type RunReport struct {
	RunID     string    `json:"run_id"`
	Context   string    `json:"context"`
	Benchmark string    `json:"benchmark"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  string    `json:"duration"`

	Status      RunStatus `json:"status"`
	TerminateOn string    `json:"terminate_on,omitempty"`

	Iterations  int     `json:"iterations"`
	FinalScore  float64 `json:"final_score"`
	BaselineScore float64 `json:"baseline_score"`

	Promotions []PromotionRecord `json:"promotions,omitempty"`
	Errors     []string          `json:"errors,omitempty"`
}

// PromotionRecord records one CE iteration's promoted (flag, state) move.
type PromotionRecord struct {
	Iteration int     `json:"iteration"`
	FlagName  string  `json:"flag_name"`
	FlagIndex int     `json:"flag_index"`
	State     int     `json:"state"`
	Score     float64 `json:"score"`
	Baseline  float64 `json:"baseline"`
}

// ReportSummary is the lightweight index entry ListReports returns.
type ReportSummary struct {
	RunID     string    `json:"run_id"`
	Context   string    `json:"context"`
	StartTime time.Time `json:"start_time"`
	Status    RunStatus `json:"status"`
	Filepath  string    `json:"filepath"`
}
