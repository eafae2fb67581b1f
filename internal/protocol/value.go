package protocol

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Encoding selects the fixed width of encoded values. Width counts the hex
// digits plus the trailing SI prefix character.
type Encoding struct {
	Width int
}

var (
	// EncodingMethodSCRIPT is the current firmware format: 7 hex digits + prefix.
	EncodingMethodSCRIPT = Encoding{Width: 8}
	// EncodingLegacy is the older EmStat format: 8 hex digits + prefix.
	EncodingLegacy = Encoding{Width: 9}
	// EncodingAuto picks the width per field from the value segment length.
	EncodingAuto = Encoding{}
)

// ParseEncoding maps a config name to an Encoding.
func ParseEncoding(name string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "methodscript", "mscript":
		return EncodingMethodSCRIPT, nil
	case "legacy", "emstat":
		return EncodingLegacy, nil
	case "auto":
		return EncodingAuto, nil
	}
	return Encoding{}, fmt.Errorf("protocol: unknown encoding %q", name)
}

func (e Encoding) String() string {
	switch e.Width {
	case 0:
		return "auto"
	case EncodingMethodSCRIPT.Width:
		return "methodscript"
	case EncodingLegacy.Width:
		return "legacy"
	}
	return "width-" + strconv.Itoa(e.Width)
}

// Auto reports whether the width is detected per field.
func (e Encoding) Auto() bool {
	return e.Width == 0
}

// Digits is the number of hex digits in one encoded value.
func (e Encoding) Digits() int {
	return e.Width - 1
}

// Offset is the unsigned-to-signed offset: half the representable range.
func (e Encoding) Offset() int64 {
	return int64(1) << (4*e.Digits() - 1)
}

func (e Encoding) valid() bool {
	return e.Width == EncodingMethodSCRIPT.Width || e.Width == EncodingLegacy.Width
}

// detect resolves an auto encoding from the length of a value segment.
func (e Encoding) detect(segment string) (Encoding, error) {
	if !e.Auto() {
		return e, nil
	}
	switch len(segment) {
	case EncodingMethodSCRIPT.Width:
		return EncodingMethodSCRIPT, nil
	case EncodingLegacy.Width:
		return EncodingLegacy, nil
	}
	return Encoding{}, ErrValueLength
}

// siFactors maps each SI prefix character to its scale factor.
var siFactors = map[byte]float64{
	'a': 1e-18,
	'f': 1e-15,
	'p': 1e-12,
	'n': 1e-9,
	'u': 1e-6,
	'm': 1e-3,
	' ': 1,
	'i': 1,
	'k': 1e3,
	'K': 1e3,
	'M': 1e6,
	'G': 1e9,
	'T': 1e12,
	'P': 1e15,
	'E': 1e18,
}

// PrefixFactor returns the scale factor for an SI prefix character.
func PrefixFactor(prefix byte) (float64, bool) {
	f, ok := siFactors[prefix]
	return f, ok
}

// Prefixes lists every accepted SI prefix character.
func Prefixes() []byte {
	return []byte{'a', 'f', 'p', 'n', 'u', 'm', ' ', 'i', 'k', 'K', 'M', 'G', 'T', 'P', 'E'}
}

func isNaNToken(tok string) bool {
	return strings.TrimLeft(tok, " ") == "nan"
}

// DecodeValue decodes one fixed-width encoded value into base units.
func DecodeValue(tok string, enc Encoding) (float64, error) {
	enc, err := enc.detect(tok)
	if err != nil {
		return 0, err
	}
	if !enc.valid() || len(tok) != enc.Width {
		return 0, ErrValueLength
	}
	if isNaNToken(tok) {
		return math.NaN(), nil
	}
	digits := tok[:enc.Digits()]
	raw, err := strconv.ParseUint(digits, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidHex, digits)
	}
	factor, ok := siFactors[tok[enc.Digits()]]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownPrefix, tok[enc.Digits()])
	}
	return float64(int64(raw)-enc.Offset()) * factor, nil
}
