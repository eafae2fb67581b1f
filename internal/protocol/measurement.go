package protocol

import (
	"encoding/json"
	"math"
	"math/cmplx"
)

// Reading is one decoded data field.
type Reading struct {
	VarType  VarType  `json:"var_type"`
	Value    float64  `json:"value"`
	Metadata Metadata `json:"metadata"`
}

type readingJSON struct {
	VarType  VarType  `json:"var_type"`
	Value    *float64 `json:"value"`
	Metadata Metadata `json:"metadata"`
}

// MarshalJSON writes NaN values as null.
func (r Reading) MarshalJSON() ([]byte, error) {
	out := readingJSON{VarType: r.VarType, Metadata: r.Metadata}
	if !math.IsNaN(r.Value) && !math.IsInf(r.Value, 0) {
		v := r.Value
		out.Value = &v
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads null values back as NaN.
func (r *Reading) UnmarshalJSON(b []byte) error {
	var in readingJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	r.VarType = in.VarType
	r.Metadata = in.Metadata
	r.Value = math.NaN()
	if in.Value != nil {
		r.Value = *in.Value
	}
	return nil
}

// Measurement is the decoded content of one measurement package.
type Measurement struct {
	// Index is the 1-based ordinal of the measurement within its decoder.
	// Partial packages, where some fields failed but at least one decoded,
	// advance it too even though TallyPerLine counts them as failed, so
	// Index can exceed Counters.Succeeded.
	Index int `json:"index"`
	// Curve is the 0-based curve the measurement belongs to, advanced on
	// loop/scan/measurement end markers.
	Curve    int       `json:"curve"`
	Readings []Reading `json:"readings"`
}

// Get returns the first reading of the given variable type.
func (m Measurement) Get(v VarType) (Reading, bool) {
	for _, r := range m.Readings {
		if r.VarType == v {
			return r, true
		}
	}
	return Reading{}, false
}

func (m Measurement) value(types ...VarType) (float64, bool) {
	for _, v := range types {
		if r, ok := m.Get(v); ok {
			return r.Value, true
		}
	}
	return 0, false
}

// Potential returns the applied potential, falling back to the measured
// WE vs RE potential.
func (m Measurement) Potential() (float64, bool) {
	return m.value(VarSetPotential, VarPotential)
}

// Current returns the WE current.
func (m Measurement) Current() (float64, bool) {
	return m.value(VarCurrent)
}

// Frequency returns the applied frequency.
func (m Measurement) Frequency() (float64, bool) {
	return m.value(VarSetFrequency)
}

// ZReal returns the real impedance component.
func (m Measurement) ZReal() (float64, bool) {
	return m.value(VarZReal)
}

// ZImag returns the imaginary impedance component.
func (m Measurement) ZImag() (float64, bool) {
	return m.value(VarZImag)
}

// Impedance is the complex impedance derived from a ZReal/ZImag pair.
type Impedance struct {
	Z complex128
}

// Impedance derives the complex impedance when both components are present.
func (m Measurement) Impedance() (Impedance, bool) {
	re, ok := m.ZReal()
	if !ok {
		return Impedance{}, false
	}
	im, ok := m.ZImag()
	if !ok {
		return Impedance{}, false
	}
	return Impedance{Z: complex(re, im)}, true
}

// Magnitude is |Z| in ohm.
func (z Impedance) Magnitude() float64 {
	return cmplx.Abs(z.Z)
}

// PhaseDegrees is the phase angle of Z in degrees.
func (z Impedance) PhaseDegrees() float64 {
	return cmplx.Phase(z.Z) * 180 / math.Pi
}
