package protocol

import (
	"fmt"
	"math"
	"strings"
)

// EncodeValue renders v in the device's fixed-width format using the given
// SI prefix. Values that need rounding are rounded to the nearest step.
func EncodeValue(v float64, prefix byte, enc Encoding) (string, error) {
	if enc.Auto() {
		enc = EncodingMethodSCRIPT
	}
	if !enc.valid() {
		return "", ErrValueLength
	}
	if math.IsNaN(v) {
		return strings.Repeat(" ", enc.Width-3) + "nan", nil
	}
	factor, ok := siFactors[prefix]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPrefix, prefix)
	}
	steps := math.Round(v / factor)
	offset := float64(enc.Offset())
	if steps < -offset || steps > offset-1 {
		return "", fmt.Errorf("%w: %g with prefix %q", ErrValueRange, v, prefix)
	}
	raw := uint64(int64(steps) + enc.Offset())
	return fmt.Sprintf("%0*X%c", enc.Digits(), raw, prefix), nil
}

// EncodeField renders one data field, metadata included.
func EncodeField(vt VarType, v float64, prefix byte, meta Metadata, enc Encoding) (string, error) {
	val, err := EncodeValue(v, prefix, enc)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(vt.Code())
	b.WriteString(val)
	if meta.HasStatus {
		fmt.Fprintf(&b, ",1%X", uint8(meta.Status))
	}
	if meta.HasRange {
		fmt.Fprintf(&b, ",2%02X", uint8(meta.Range))
	}
	if meta.Noise {
		b.WriteString(",40")
	}
	return b.String(), nil
}

// EncodePackage joins fields into a measurement package line, newline included.
func EncodePackage(fields ...string) string {
	return string(MarkerMeasurement) + strings.Join(fields, ";") + "\n"
}
