// -- cmd/run.go --
package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/crosscheck/internal/browser"
	"github.com/xkilldash9x/crosscheck/internal/config"
	"github.com/xkilldash9x/crosscheck/internal/consistency"
	"github.com/xkilldash9x/crosscheck/internal/observability"
	"github.com/xkilldash9x/crosscheck/internal/reporting"
	"github.com/xkilldash9x/crosscheck/internal/runner"
	"github.com/xkilldash9x/crosscheck/internal/runner/units"
	"github.com/xkilldash9x/crosscheck/internal/services"
)

// flagBindings maps run flags onto config keys so flags override the config
// file and environment.
var flagBindings = map[string]string{
	"workers":        "runner.workers",
	"auth":           "runner.auth_enabled",
	"metrics-file":   "runner.metrics_file",
	"artifact-dir":   "runner.artifact_dir",
	"tolerance-mode": "consistency.mode",
	"tolerance":      "consistency.tolerance",
	"base-url":       "target.base_url",
}

// newRunCmd creates and configures the `run` command.
func newRunCmd(v *viper.Viper) *cobra.Command {
	var (
		names  []string
		tags   []string
		format string
		output string
	)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run units against the target and report the outcome of each",
		Long: `Runs the selected units in parallel, each in its own browser session when it
needs one. The command exits non-zero when any unit failed; skipped units
(for example, when the remote side blocks automated traffic) do not fail the run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Use the context passed from main.go (signal-aware).
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				return err
			}

			selected, err := units.Select(units.All(), names, tags)
			if err != nil {
				return err
			}
			if len(selected) == 0 {
				return errors.New("no units match the given --unit/--tag filters")
			}

			r, factory, err := buildRunner(cfg, logger)
			if err != nil {
				return err
			}
			logger.Info("Run configured.",
				zap.String("target", cfg.Target.BaseURL),
				zap.String("browser_mode", string(factory.Mode())),
				zap.Int("units", len(selected)))

			report := r.Run(ctx, selected)

			if err := writeReport(format, output, report); err != nil {
				return err
			}
			if cfg.Runner.ArtifactDir != "" && !(format == "json" && output != "") {
				path := filepath.Join(cfg.Runner.ArtifactDir, "report-"+report.RunID+".json")
				if err := writeReport("json", path, report); err != nil {
					logger.Warn("Failed to write JSON report artifact.", zap.Error(err))
				}
			}
			if cfg.Runner.MetricsFile != "" {
				if err := r.Metrics().WriteTextfile(cfg.Runner.MetricsFile); err != nil {
					logger.Warn("Failed to write metrics textfile.", zap.String("path", cfg.Runner.MetricsFile), zap.Error(err))
				}
			}

			if ctx.Err() != nil {
				return ctx.Err()
			}
			if report.Failed() {
				return ErrUnitsFailed
			}
			return nil
		},
	}

	f := runCmd.Flags()
	f.StringSliceVarP(&names, "unit", "u", nil, "run only these units (repeatable)")
	f.StringSliceVarP(&tags, "tag", "t", nil, "run units carrying any of these tags (repeatable)")
	f.StringVarP(&format, "format", "f", "text", "report format: text, json or junit")
	f.StringVarP(&output, "output", "o", "", "report destination (default stdout)")
	f.Int("workers", 0, "units run in parallel")
	f.Bool("auth", false, "run units that need an authenticated session")
	f.String("metrics-file", "", "write Prometheus metrics in textfile format to this path")
	f.String("artifact-dir", "", "directory for screenshots and JSON reports")
	f.String("tolerance-mode", "", "price comparison tolerance mode: absolute or relative")
	f.Float64("tolerance", 0, "price comparison tolerance (currency units, or a fraction in relative mode)")
	f.String("base-url", "", "storefront base URL")
	for flag, key := range flagBindings {
		_ = v.BindPFlag(key, f.Lookup(flag))
	}
	return runCmd
}

// buildRunner wires the session factory, data services and checker.
func buildRunner(cfg *config.Config, logger *zap.Logger) (*runner.Runner, *browser.Factory, error) {
	client, err := services.NewClient(services.OptionsFromConfig(cfg), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create API client: %w", err)
	}

	tol, err := consistency.ToleranceFromConfig(cfg.Consistency)
	if err != nil {
		return nil, nil, err
	}
	checker := consistency.NewChecker(tol, consistency.Options{SkewWindow: cfg.Consistency.SkewWindow}, logger)

	factory := browser.NewFactory(cfg.Browser, cfg.API.Headers, logger)
	r, err := runner.New(cfg, runner.Dependencies{
		Provider:  runner.FactoryProvider{Factory: factory},
		Mode:      string(factory.Mode()),
		Search:    services.NewSearchService(client, cfg.API.SearchPath),
		Inventory: services.NewInventoryService(client, cfg.API.InventoryPath),
		Checker:   checker,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	return r, factory, nil
}

func writeReport(format, path string, report *runner.Report) error {
	rep, err := reporting.New(format, path)
	if err != nil {
		return err
	}
	if err := rep.Write(report); err != nil {
		_ = rep.Close()
		return fmt.Errorf("failed to write %s report: %w", format, err)
	}
	return rep.Close()
}
