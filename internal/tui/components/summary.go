package components

import (
	"fmt"
	"strings"
)

// AssertionStatus is the outcome of one host assertion.
type AssertionStatus struct {
	Passed  bool
	Message string
}

// SummaryData aggregates the run outcome for rendering.
type SummaryData struct {
	RunID        string
	Target       string
	ShutdownMode string
	Total        int
	Settled      int
	Finished     bool
	Cancelled    bool
	Err          error
	Assertions   []AssertionStatus
}

// Summary renders a plain-text run summary.
type Summary struct {
	data SummaryData
}

// NewSummary creates a Summary.
func NewSummary(data SummaryData) Summary {
	return Summary{data: data}
}

// View renders the summary, or "" when there is nothing to report yet.
func (s Summary) View() string {
	var lines []string
	if s.data.RunID != "" {
		lines = append(lines, "Run: "+s.data.RunID)
	}
	if s.data.Target != "" {
		lines = append(lines, "Target: "+s.data.Target)
	}
	if s.data.ShutdownMode != "" {
		lines = append(lines, "Shutdown: "+s.data.ShutdownMode)
	}

	switch {
	case s.data.Cancelled:
		lines = append(lines, "Run cancelled")
	case s.data.Err != nil:
		lines = append(lines, "Run failed: "+firstLine(s.data.Err.Error()))
	case s.data.Finished && s.data.Total > 0:
		lines = append(lines, fmt.Sprintf("Run finished: %d/%d stages settled", s.data.Settled, s.data.Total))
	}

	if len(s.data.Assertions) > 0 {
		passed := 0
		for _, a := range s.data.Assertions {
			if a.Passed {
				passed++
			}
		}
		lines = append(lines, fmt.Sprintf("Assertions: %d/%d passed", passed, len(s.data.Assertions)))
		for _, a := range s.data.Assertions {
			status := "✗"
			if a.Passed {
				status = "✓"
			}
			lines = append(lines, fmt.Sprintf("  %s %s", status, a.Message))
		}
	}

	return strings.Join(lines, "\n")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
