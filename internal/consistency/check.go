// internal/consistency/check.go
package consistency

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/crosscheck/internal/observability"
)

// Status is the outcome of comparing two observations.
type Status string

const (
	Match      Status = "match"
	Divergence Status = "divergence"
	// Skipped means the comparison could not be made for a reason that is not
	// the system's fault, such as the API refusing automated traffic.
	Skipped Status = "skipped"
)

// Cause is the likely explanation attached to a divergence.
type Cause string

const (
	CauseNone         Cause = ""
	CauseMissingValue Cause = "missing-value"
	// CauseUnitScale flags values that agree after a factor of 100,
	// e.g. one layer reporting minor currency units.
	CauseUnitScale Cause = "unit-scale"
	// CauseTimeSkew flags observations taken far enough apart that
	// propagation delay or caching can explain the gap.
	CauseTimeSkew   Cause = "time-skew"
	CauseValueDrift Cause = "value-drift"
)

// Result is the structured outcome of one cross-layer comparison.
type Result struct {
	Status    Status        `json:"status"`
	EntityID  EntityID      `json:"entity_id"`
	Attribute string        `json:"attribute"`
	UI        Observation   `json:"ui"`
	API       Observation   `json:"api"`
	Delta     float64       `json:"delta"`
	Tolerance string        `json:"tolerance,omitempty"`
	Cause     Cause         `json:"cause,omitempty"`
	Skew      time.Duration `json:"skew,omitempty"`
	Reason    string        `json:"reason,omitempty"`
}

// Ok reports whether the result should count as a pass.
func (r Result) Ok() bool { return r.Status == Match }

// CorrelationError reports that two observations do not describe the same
// entity and attribute, so comparing their values would be meaningless.
type CorrelationError struct {
	UI  Observation
	API Observation
}

func (e *CorrelationError) Error() string {
	return fmt.Sprintf("cannot correlate %s with %s: observations refer to different entities or attributes", e.UI, e.API)
}

// Blocker is implemented by remote errors that know whether the remote side
// refused to serve automated traffic.
type Blocker interface {
	Blocked() bool
}

// Options tune a comparison beyond the tolerance.
type Options struct {
	// SkewWindow is the largest gap between observation times that is still
	// treated as simultaneous. Zero disables time-skew attribution.
	SkewWindow time.Duration
}

// Check compares a UI observation with an API observation of the same
// entity and attribute.
func Check(ui, api Observation, tol Tolerance) (Result, error) {
	return CheckWith(ui, api, tol, Options{})
}

// CheckWith is Check with explicit options.
func CheckWith(ui, api Observation, tol Tolerance, opts Options) (Result, error) {
	if ui.EntityID() != api.EntityID() || ui.Attribute() != api.Attribute() {
		return Result{}, &CorrelationError{UI: ui, API: api}
	}

	res := Result{
		EntityID:  ui.EntityID(),
		Attribute: ui.Attribute(),
		UI:        ui,
		API:       api,
		Tolerance: tol.String(),
		Skew:      absDuration(ui.ObservedAt().Sub(api.ObservedAt())),
	}

	uiValue, uiOK := ui.Value()
	apiValue, apiOK := api.Value()
	if !uiOK || !apiOK {
		res.Status = Divergence
		res.Cause = CauseMissingValue
		res.Reason = missingReason(uiOK, apiOK)
		return res, nil
	}

	delta, ok := tol.Within(uiValue, apiValue)
	res.Delta = delta
	if ok {
		res.Status = Match
		return res, nil
	}

	res.Status = Divergence
	res.Cause = attribute(uiValue, apiValue, tol, res.Skew, opts)
	res.Reason = fmt.Sprintf("ui %.2f vs api %.2f differ by %.2f, outside %s", uiValue, apiValue, delta, tol)
	return res, nil
}

// Skip builds a Skipped result for a comparison that could not be made.
func Skip(reason string, ui Observation) Result {
	return Result{
		Status:    Skipped,
		EntityID:  ui.EntityID(),
		Attribute: ui.Attribute(),
		UI:        ui,
		Reason:    reason,
	}
}

// CheckRemote folds the error from fetching the API side into the check.
// A blocked remote yields a Skipped result; other errors are returned as-is.
func CheckRemote(ui, api Observation, apiErr error, tol Tolerance, opts Options) (Result, error) {
	if apiErr != nil {
		var blocker Blocker
		if errors.As(apiErr, &blocker) && blocker.Blocked() {
			return Skip("api blocked automated access: "+apiErr.Error(), ui), nil
		}
		return Result{}, apiErr
	}
	return CheckWith(ui, api, tol, opts)
}

func attribute(ui, api float64, tol Tolerance, skew time.Duration, opts Options) Cause {
	for _, factor := range []float64{100, 0.01} {
		if _, ok := tol.Within(ui, api*factor); ok && api != 0 {
			return CauseUnitScale
		}
	}
	if opts.SkewWindow > 0 && skew > opts.SkewWindow {
		return CauseTimeSkew
	}
	return CauseValueDrift
}

func missingReason(uiOK, apiOK bool) string {
	switch {
	case !uiOK && !apiOK:
		return "neither layer reported a value"
	case !uiOK:
		return "ui did not show a value"
	default:
		return "api did not return a value"
	}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// Checker applies a fixed tolerance and logs every result.
type Checker struct {
	tol    Tolerance
	opts   Options
	logger *zap.Logger
}

// NewChecker creates a Checker.
func NewChecker(tol Tolerance, opts Options, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{tol: tol, opts: opts, logger: logger.Named("consistency")}
}

// Tolerance returns the configured tolerance.
func (c *Checker) Tolerance() Tolerance { return c.tol }

// Check compares ui with the API side, folding a remote error as CheckRemote does.
func (c *Checker) Check(ui, api Observation, apiErr error) (Result, error) {
	res, err := CheckRemote(ui, api, apiErr, c.tol, c.opts)
	if err != nil {
		c.logger.Warn("Consistency check could not run.",
			observability.Event(observability.EventConsistencyResult),
			zap.String("entity", string(ui.EntityID())),
			zap.Error(err))
		return res, err
	}

	fields := []zap.Field{
		observability.Event(observability.EventConsistencyResult),
		zap.String("entity", string(res.EntityID)),
		zap.String("attribute", res.Attribute),
		zap.String("status", string(res.Status)),
		zap.Stringer("ui", res.UI),
		zap.Stringer("api", res.API),
	}
	switch res.Status {
	case Divergence:
		c.logger.Warn("Cross-layer divergence.", append(fields, zap.String("cause", string(res.Cause)), zap.String("reason", res.Reason))...)
	case Skipped:
		c.logger.Info("Cross-layer check skipped.", append(fields, zap.String("reason", res.Reason))...)
	default:
		c.logger.Info("Cross-layer match.", append(fields, zap.Float64("delta", res.Delta))...)
	}
	return res, nil
}
