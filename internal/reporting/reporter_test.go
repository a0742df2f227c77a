// internal/reporting/reporter_test.go
package reporting_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/crosscheck/internal/consistency"
	"github.com/xkilldash9x/crosscheck/internal/reporting"
	"github.com/xkilldash9x/crosscheck/internal/runner"
)

func sampleReport() *runner.Report {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ui := consistency.Observe("2034", consistency.AttributePrice, consistency.SourceUI, 1299, start)
	api := consistency.Observe("2034", consistency.AttributePrice, consistency.SourceAPI, 1199, start)
	return &runner.Report{
		RunID:       "run-1",
		Environment: "staging",
		BrowserMode: "local",
		StartedAt:   start,
		FinishedAt:  start.Add(3 * time.Second),
		Summary:     runner.Summary{Total: 3, Passed: 1, Failed: 1, Skipped: 1},
		Units: []runner.UnitResult{
			{Name: "homepage-loads", Outcome: runner.Passed, Duration: time.Second},
			{
				Name:         "cross-layer-price",
				Outcome:      runner.Failed,
				Kind:         runner.KindDivergence,
				Error:        "price of 2034 diverged",
				Duration:     2 * time.Second,
				Screenshot:   "artifacts/cross-layer-price.png",
				Observations: []consistency.Observation{ui, api},
				Checks: []consistency.Result{{
					Status: consistency.Divergence, EntityID: "2034", Attribute: consistency.AttributePrice,
					UI: ui, API: api, Delta: 100, Cause: consistency.CauseValueDrift,
				}},
			},
			{Name: "cart-pricing", Outcome: runner.Skipped, Kind: runner.KindSkip, Error: "cart is empty"},
		},
	}
}

func writeReport(t *testing.T, format string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out", "report."+format)
	r, err := reporting.New(format, path)
	require.NoError(t, err)
	require.NoError(t, r.Write(sampleReport()))
	require.NoError(t, r.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestNew_Stdout(t *testing.T) {
	for _, path := range []string{"", "stdout"} {
		r, err := reporting.New("text", path)
		require.NoError(t, err)
		assert.NotNil(t, r)
		// Close is a no-op for the stdout wrapper.
		assert.NoError(t, r.Close())
	}
}

func TestNew_UnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.sarif")
	r, err := reporting.New("sarif", path)
	assert.Nil(t, r)
	assert.EqualError(t, err, "unsupported output format: sarif")

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "no file is created for an unknown format")
}

func TestJSONReporter(t *testing.T) {
	out := writeReport(t, "json")

	var decoded map[string]interface{}
	require.NoError(t, jsoniter.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "run-1", decoded["run_id"])

	units := decoded["units"].([]interface{})
	require.Len(t, units, 3)
	failed := units[1].(map[string]interface{})
	assert.Equal(t, "divergence", failed["kind"])
	check := failed["checks"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "value-drift", check["cause"])
}

func TestTextReporter(t *testing.T) {
	out := writeReport(t, "text")

	assert.Contains(t, out, "3 units: 1 passed, 1 failed, 1 skipped")
	assert.Regexp(t, `cross-layer-price\s+FAILED\s+divergence`, out)
	assert.Regexp(t, `homepage-loads\s+PASSED\s+-`, out)
	assert.Contains(t, out, "screenshot: artifacts/cross-layer-price.png")
	assert.Contains(t, out, "divergence 2034/price")
	assert.Contains(t, out, "cause=value-drift")
	assert.NotContains(t, out, "-- homepage-loads --")
}

func TestJUnitReporter(t *testing.T) {
	out := writeReport(t, "junit")

	assert.Contains(t, out, `<testsuite name="crosscheck.staging" tests="3" failures="1" skipped="1" time="3.000"`)
	assert.Contains(t, out, `<failure type="divergence" message="price of 2034 diverged"></failure>`)
	assert.Contains(t, out, `<skipped message="cart is empty"></skipped>`)
	assert.Contains(t, out, "<system-out>screenshot: artifacts/cross-layer-price.png</system-out>")
}
