// internal/reporting/junit_reporter.go
package reporting

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/xkilldash9x/crosscheck/internal/runner"
)

// JUnit XML as understood by common CI systems.
type junitSuites struct {
	XMLName xml.Name     `xml:"testsuites"`
	Suites  []junitSuite `xml:"testsuite"`
}

type junitSuite struct {
	Name      string      `xml:"name,attr"`
	Tests     int         `xml:"tests,attr"`
	Failures  int         `xml:"failures,attr"`
	Skipped   int         `xml:"skipped,attr"`
	Time      string      `xml:"time,attr"`
	Timestamp string      `xml:"timestamp,attr"`
	Cases     []junitCase `xml:"testcase"`
}

type junitCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitMessage `xml:"failure,omitempty"`
	Skipped   *junitMessage `xml:"skipped,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
}

type junitMessage struct {
	Type    string `xml:"type,attr,omitempty"`
	Message string `xml:"message,attr"`
}

// JUnitReporter writes one test suite per run.
type JUnitReporter struct {
	writer io.WriteCloser
}

// NewJUnitReporter takes ownership of w.
func NewJUnitReporter(w io.WriteCloser) Reporter {
	return &JUnitReporter{writer: w}
}

func (r *JUnitReporter) Write(report *runner.Report) error {
	suite := junitSuite{
		Name:      "crosscheck." + report.Environment,
		Tests:     report.Summary.Total,
		Failures:  report.Summary.Failed,
		Skipped:   report.Summary.Skipped,
		Time:      seconds(report.FinishedAt.Sub(report.StartedAt).Seconds()),
		Timestamp: report.StartedAt.Format("2006-01-02T15:04:05"),
	}
	for _, u := range report.Units {
		c := junitCase{
			Name:      u.Name,
			Classname: "crosscheck." + report.BrowserMode,
			Time:      seconds(u.Duration.Seconds()),
		}
		switch u.Outcome {
		case runner.Failed:
			c.Failure = &junitMessage{Type: u.Kind, Message: u.Error}
		case runner.Skipped:
			c.Skipped = &junitMessage{Message: u.Error}
		}
		if u.Screenshot != "" {
			c.SystemOut = "screenshot: " + u.Screenshot
		}
		suite.Cases = append(suite.Cases, c)
	}

	if _, err := io.WriteString(r.writer, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(r.writer)
	enc.Indent("", "  ")
	if err := enc.Encode(junitSuites{Suites: []junitSuite{suite}}); err != nil {
		return err
	}
	_, err := io.WriteString(r.writer, "\n")
	return err
}

func (r *JUnitReporter) Close() error { return r.writer.Close() }

func seconds(s float64) string { return fmt.Sprintf("%.3f", s) }
