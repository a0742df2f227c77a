// internal/consistency/tolerance.go
package consistency

import (
	"fmt"
	"math"

	"github.com/xkilldash9x/crosscheck/internal/config"
)

// Mode selects how a Tolerance measures distance.
type Mode string

const (
	// Absolute compares |a-b| against a fixed amount.
	Absolute Mode = config.ToleranceAbsolute
	// Relative compares |a-b| against a fraction of the larger magnitude.
	Relative Mode = config.ToleranceRelative
)

// floatSlack absorbs representation error so that a delta equal to the
// tolerance on paper is not rejected by the last bit.
const floatSlack = 1e-9

// Tolerance is the permitted difference between two observations.
// Both fields come from configuration; there is no built-in default.
type Tolerance struct {
	Mode  Mode
	Value float64
}

// NewTolerance validates and builds a tolerance.
func NewTolerance(mode Mode, value float64) (Tolerance, error) {
	switch mode {
	case Absolute, Relative:
	default:
		return Tolerance{}, fmt.Errorf("unsupported tolerance mode %q", mode)
	}
	if value < 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return Tolerance{}, fmt.Errorf("tolerance value must be a finite non-negative number, got %v", value)
	}
	return Tolerance{Mode: mode, Value: value}, nil
}

// ToleranceFromConfig builds the tolerance configured for a run.
func ToleranceFromConfig(cfg config.ConsistencyConfig) (Tolerance, error) {
	return NewTolerance(Mode(cfg.Mode), cfg.Tolerance)
}

// limit is the largest delta allowed between a and b.
func (t Tolerance) limit(a, b float64) float64 {
	if t.Mode == Relative {
		return t.Value * math.Max(math.Abs(a), math.Abs(b))
	}
	return t.Value
}

// Within reports the absolute delta and whether it is inside the tolerance.
// The boundary is inclusive.
func (t Tolerance) Within(a, b float64) (float64, bool) {
	delta := math.Abs(a - b)
	limit := t.limit(a, b)
	return delta, delta <= limit+floatSlack*math.Max(1, limit)
}

func (t Tolerance) String() string {
	if t.Mode == Relative {
		return fmt.Sprintf("relative %.4g%%", t.Value*100)
	}
	return fmt.Sprintf("absolute %.4g", t.Value)
}
