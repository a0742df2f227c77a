// internal/runner/report.go
package runner

import (
	"time"

	"github.com/xkilldash9x/crosscheck/internal/consistency"
)

// UnitResult is the outcome of one unit plus what it observed.
type UnitResult struct {
	Name         string                    `json:"name"`
	Outcome      Outcome                   `json:"outcome"`
	Kind         string                    `json:"kind,omitempty"`
	Error        string                    `json:"error,omitempty"`
	Duration     time.Duration             `json:"duration"`
	SessionID    string                    `json:"session_id,omitempty"`
	Screenshot   string                    `json:"screenshot,omitempty"`
	Observations []consistency.Observation `json:"observations,omitempty"`
	Checks       []consistency.Result      `json:"checks,omitempty"`
}

// Summary counts outcomes.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Report is the result of one run.
type Report struct {
	RunID       string       `json:"run_id"`
	Environment string       `json:"environment"`
	BrowserMode string       `json:"browser_mode"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at"`
	Summary     Summary      `json:"summary"`
	Units       []UnitResult `json:"units"`
}

// Failed reports whether any unit failed. Skips do not count.
func (r *Report) Failed() bool { return r.Summary.Failed > 0 }

func (r *Report) summarize() {
	r.Summary = Summary{Total: len(r.Units)}
	for _, u := range r.Units {
		switch u.Outcome {
		case Passed:
			r.Summary.Passed++
		case Skipped:
			r.Summary.Skipped++
		default:
			r.Summary.Failed++
		}
	}
}
