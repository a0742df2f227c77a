// internal/reporting/reporter.go
package reporting

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/xkilldash9x/crosscheck/internal/runner"
)

// Reporter writes a finished run to an output.
type Reporter interface {
	// Write renders the report. It may be called once per reporter.
	Write(report *runner.Report) error
	// Close flushes and closes the underlying output (e.g., file handles).
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a reporter for format writing to outputPath. An empty path or
// "stdout" writes to standard output.
func New(format, outputPath string) (Reporter, error) {
	var newReporter func(io.WriteCloser) Reporter
	switch format {
	case "json":
		newReporter = NewJSONReporter
	case "text", "":
		newReporter = NewTextReporter
	case "junit":
		newReporter = NewJUnitReporter
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	if outputPath == "" || outputPath == "stdout" {
		// Wrap Stdout so Close() is a no-op.
		return newReporter(&nopWriteCloser{os.Stdout}), nil
	}

	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
	}
	return newReporter(f), nil
}
