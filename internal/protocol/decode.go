package protocol

import (
	"fmt"
)

// Tally selects how a measurement package is counted.
type Tally uint8

const (
	// TallyPerLine counts one success for a package whose fields all decoded,
	// otherwise one failure.
	TallyPerLine Tally = iota
	// TallyPerField counts every field separately.
	TallyPerField
)

// ParseTally maps a config name to a Tally policy.
func ParseTally(name string) (Tally, error) {
	switch name {
	case "", "line", "per_line":
		return TallyPerLine, nil
	case "field", "per_field":
		return TallyPerField, nil
	}
	return TallyPerLine, fmt.Errorf("protocol: unknown tally policy %q", name)
}

func (t Tally) String() string {
	if t == TallyPerField {
		return "per_field"
	}
	return "per_line"
}

// Counters is the caller-owned decode tally.
type Counters struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Total is Succeeded + Failed.
func (c Counters) Total() int {
	return c.Succeeded + c.Failed
}

// DecoderConfig controls value width and tally policy.
type DecoderConfig struct {
	Encoding Encoding
	Tally    Tally
}

// DefaultDecoderConfig returns the MethodSCRIPT width with per-line tallies.
func DefaultDecoderConfig() DecoderConfig {
	return DecoderConfig{
		Encoding: EncodingMethodSCRIPT,
		Tally:    TallyPerLine,
	}
}

// LineResult is the outcome of decoding one response line.
type LineResult struct {
	Type PackageType
	Line string
	// Fields is set for measurement packages only, one entry per field.
	Fields []FieldResult
	// Measurement holds the readings that decoded. Nil when no field decoded.
	Measurement *Measurement
	// Err is the line-level error: ErrUnknownPackage, ErrEmptyPackage, or the
	// first field error of a partially decoded package.
	Err error
}

// Complete reports whether the line decoded without any failure.
func (r LineResult) Complete() bool {
	return r.Err == nil
}

// FailedFields counts the fields that did not decode.
func (r LineResult) FailedFields() int {
	n := 0
	for _, f := range r.Fields {
		if !f.OK() {
			n++
		}
	}
	return n
}

// Decoder turns response lines into typed results and tallies measurement
// packages. A Decoder is not safe for concurrent use; the lookup tables it
// reads are shared and never written.
type Decoder struct {
	cfg      DecoderConfig
	counters Counters
	index    int
}

// NewDecoder builds a decoder. An invalid encoding width falls back to
// MethodSCRIPT.
func NewDecoder(cfg DecoderConfig) *Decoder {
	if !cfg.Encoding.Auto() && !cfg.Encoding.valid() {
		cfg.Encoding = EncodingMethodSCRIPT
	}
	return &Decoder{cfg: cfg}
}

// Config returns the effective configuration.
func (d *Decoder) Config() DecoderConfig {
	return d.cfg
}

// Counters returns a copy of the current tallies.
func (d *Decoder) Counters() Counters {
	return d.counters
}

// Reset clears tallies and the measurement ordinal.
func (d *Decoder) Reset() {
	d.counters = Counters{}
	d.index = 0
}

// DecodeLine classifies and decodes one line. Measurement packages and
// unknown lines touch the tallies; other types are returned with their
// classification only.
func (d *Decoder) DecodeLine(line string) LineResult {
	line = TrimLine(line)
	res := LineResult{Type: Classify(line), Line: line}
	switch res.Type {
	case PackageMeasurement:
		d.decodeMeasurement(&res)
	case PackageUnknown:
		res.Err = fmt.Errorf("%w: %q", ErrUnknownPackage, line)
		d.tally(0, 1)
	}
	return res
}

func (d *Decoder) decodeMeasurement(res *LineResult) {
	raw := SplitFields(res.Line[1:])
	if len(raw) == 0 {
		res.Err = ErrEmptyPackage
		d.tally(0, 1)
		return
	}

	res.Fields = make([]FieldResult, 0, len(raw))
	readings := make([]Reading, 0, len(raw))
	ok, failed := 0, 0
	for i, f := range raw {
		fr := ParseField(i, f, d.cfg.Encoding)
		res.Fields = append(res.Fields, fr)
		if fr.Err != nil {
			failed++
			if res.Err == nil {
				res.Err = fr.Err
			}
			continue
		}
		ok++
		readings = append(readings, fr.Reading)
	}

	if len(readings) > 0 {
		d.index++
		res.Measurement = &Measurement{Index: d.index, Readings: readings}
	}

	if d.cfg.Tally == TallyPerField {
		d.tally(ok, failed)
		return
	}
	if failed == 0 {
		d.tally(1, 0)
	} else {
		d.tally(0, 1)
	}
}

func (d *Decoder) tally(ok, failed int) {
	d.counters.Succeeded += ok
	d.counters.Failed += failed
}
