// internal/reporting/json_reporter.go
package reporting

import (
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/crosscheck/internal/runner"
)

// JSONReporter writes the report as one indented JSON document.
type JSONReporter struct {
	writer io.WriteCloser
}

// NewJSONReporter takes ownership of w.
func NewJSONReporter(w io.WriteCloser) Reporter {
	return &JSONReporter{writer: w}
}

func (r *JSONReporter) Write(report *runner.Report) error {
	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(r.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func (r *JSONReporter) Close() error { return r.writer.Close() }
