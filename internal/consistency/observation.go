// internal/consistency/observation.go
package consistency

import (
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// Source says which layer of the system produced an observation.
type Source string

const (
	SourceUI  Source = "ui"
	SourceAPI Source = "api"
	// SourceSSR is structured data embedded in the server-rendered page.
	SourceSSR Source = "ssr"
)

// AttributePrice names price observations on every layer.
const AttributePrice = "price"

// EntityID is the logical identifier shared by every layer, such as a product id.
type EntityID string

// Observation is a value read from one layer at one moment. It cannot be
// changed once recorded; build a new one instead.
type Observation struct {
	entityID   EntityID
	attribute  string
	source     Source
	value      float64
	present    bool
	observedAt time.Time
}

// Observe records a value.
func Observe(id EntityID, attribute string, source Source, value float64, at time.Time) Observation {
	return Observation{entityID: id, attribute: attribute, source: source, value: value, present: true, observedAt: at}
}

// ObserveMissing records that a layer had no value for the attribute.
func ObserveMissing(id EntityID, attribute string, source Source, at time.Time) Observation {
	return Observation{entityID: id, attribute: attribute, source: source, observedAt: at}
}

func (o Observation) EntityID() EntityID    { return o.entityID }
func (o Observation) Attribute() string     { return o.attribute }
func (o Observation) Source() Source        { return o.source }
func (o Observation) ObservedAt() time.Time { return o.observedAt }

// Value returns the observed value and whether one was present.
func (o Observation) Value() (float64, bool) { return o.value, o.present }

// IsZero reports whether the observation was never recorded.
func (o Observation) IsZero() bool { return o.entityID == "" && o.source == "" }

func (o Observation) String() string {
	if o.IsZero() {
		return "<none>"
	}
	if !o.present {
		return fmt.Sprintf("%s[%s].%s=<missing>", o.source, o.entityID, o.attribute)
	}
	return fmt.Sprintf("%s[%s].%s=%.2f", o.source, o.entityID, o.attribute, o.value)
}

type observationJSON struct {
	EntityID   EntityID  `json:"entity_id"`
	Attribute  string    `json:"attribute"`
	Source     Source    `json:"source"`
	Value      *float64  `json:"value"`
	ObservedAt time.Time `json:"observed_at"`
}

// MarshalJSON renders the observation for run reports.
func (o Observation) MarshalJSON() ([]byte, error) {
	out := observationJSON{EntityID: o.entityID, Attribute: o.attribute, Source: o.source, ObservedAt: o.observedAt}
	if o.present {
		v := o.value
		out.Value = &v
	}
	return jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(out)
}
