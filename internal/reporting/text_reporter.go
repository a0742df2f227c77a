// internal/reporting/text_reporter.go
package reporting

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/xkilldash9x/crosscheck/internal/consistency"
	"github.com/xkilldash9x/crosscheck/internal/runner"
)

// TextReporter writes a human readable table followed by the details of
// every failed unit and every non-matching consistency check.
type TextReporter struct {
	writer io.WriteCloser
}

// NewTextReporter takes ownership of w.
func NewTextReporter(w io.WriteCloser) Reporter {
	return &TextReporter{writer: w}
}

func (r *TextReporter) Write(report *runner.Report) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s (%s, %s browser)\n", report.RunID, report.Environment, report.BrowserMode)
	fmt.Fprintf(&b, "%d units: %d passed, %d failed, %d skipped in %s\n\n",
		report.Summary.Total, report.Summary.Passed, report.Summary.Failed, report.Summary.Skipped,
		report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))

	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "UNIT\tOUTCOME\tKIND\tDURATION")
	for _, u := range report.Units {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.Name, strings.ToUpper(string(u.Outcome)), dash(u.Kind), u.Duration.Round(time.Millisecond))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, u := range report.Units {
		if u.Outcome == runner.Passed && allMatch(u.Checks) {
			continue
		}
		fmt.Fprintf(&b, "\n-- %s --\n", u.Name)
		if u.Error != "" {
			fmt.Fprintf(&b, "  error: %s\n", u.Error)
		}
		if u.Screenshot != "" {
			fmt.Fprintf(&b, "  screenshot: %s\n", u.Screenshot)
		}
		for _, c := range u.Checks {
			if c.Ok() {
				continue
			}
			fmt.Fprintf(&b, "  %s %s/%s: ui=%s api=%s", c.Status, c.EntityID, c.Attribute, c.UI, c.API)
			if c.Cause != "" {
				fmt.Fprintf(&b, " cause=%s", c.Cause)
			}
			if c.Reason != "" {
				fmt.Fprintf(&b, " (%s)", c.Reason)
			}
			b.WriteString("\n")
		}
	}

	_, err := io.WriteString(r.writer, b.String())
	return err
}

func (r *TextReporter) Close() error { return r.writer.Close() }

func allMatch(checks []consistency.Result) bool {
	for _, c := range checks {
		if !c.Ok() {
			return false
		}
	}
	return true
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
