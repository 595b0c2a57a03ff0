package models

import (
	"encoding/json"
	"math"
)

type UndefinedReason string

const (
	// ReasonNotAvailable: no cost information at all.
	ReasonNotAvailable UndefinedReason = "N/A"
	// ReasonNoAcquisitions: cost data exists but nothing was purchased.
	ReasonNoAcquisitions UndefinedReason = "no_acquisitions"
	// ReasonNoCost: ROI over a zero spend.
	ReasonNoCost UndefinedReason = "no_cost"
)

// Measure is either a finite value or an explicit reason why there is none.
// The zero Measure is Undefined(ReasonNotAvailable).
type Measure struct {
	value   float64
	defined bool
	reason  UndefinedReason
}

func Value(v float64) Measure {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Undefined(ReasonNotAvailable)
	}
	return Measure{value: v, defined: true}
}

func Undefined(reason UndefinedReason) Measure { return Measure{reason: reason} }

// Get returns the value and whether it is defined.
func (m Measure) Get() (float64, bool) { return m.value, m.defined }

func (m Measure) Reason() UndefinedReason {
	if m.defined {
		return ""
	}
	if m.reason == "" {
		return ReasonNotAvailable
	}
	return m.reason
}

func (m Measure) IsDefined() bool { return m.defined }

func (m Measure) MarshalJSON() ([]byte, error) {
	if m.defined {
		return json.Marshal(m.value)
	}
	return json.Marshal(string(m.Reason()))
}

func (m *Measure) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*m = Value(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*m = Undefined(UndefinedReason(s))
	return nil
}
