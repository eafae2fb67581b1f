package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Metadata kinds, selected by the first character of a metadata value.
const (
	MetaStatus = '1'
	MetaRange  = '2'
	MetaNoise  = '4'
)

// ReadingStatus is the bit mask reported with metadata kind 1.
type ReadingStatus uint8

const (
	StatusOK              ReadingStatus = 0x0
	StatusTimingError     ReadingStatus = 0x1
	StatusOverload        ReadingStatus = 0x2
	StatusUnderload       ReadingStatus = 0x4
	StatusOverloadWarning ReadingStatus = 0x8
)

var statusFlags = []struct {
	flag ReadingStatus
	name string
}{
	{StatusTimingError, "TimingError"},
	{StatusOverload, "Overload"},
	{StatusUnderload, "Underload"},
	{StatusOverloadWarning, "OverloadWarning"},
}

// Has reports whether every bit of flag is set.
func (s ReadingStatus) Has(flag ReadingStatus) bool {
	return s&flag == flag
}

func (s ReadingStatus) String() string {
	if s == StatusOK {
		return "OK"
	}
	names := make([]string, 0, 2)
	for _, f := range statusFlags {
		if s.Has(f.flag) {
			names = append(names, f.name)
		}
	}
	if len(names) == 0 {
		return fmt.Sprintf("Status(0x%X)", uint8(s))
	}
	return strings.Join(names, "|")
}

// CurrentRange is the range byte reported with metadata kind 2. The top bit
// marks the high speed variant.
type CurrentRange uint8

const rangeHighSpeed CurrentRange = 0x80

// EmStat Pico current ranges.
var picoRanges = map[CurrentRange]string{
	0x00: "100nA",
	0x01: "2uA",
	0x02: "4uA",
	0x03: "8uA",
	0x04: "16uA",
	0x05: "32uA",
	0x06: "63uA",
	0x07: "125uA",
	0x08: "250uA",
	0x09: "500uA",
	0x0A: "1mA",
	0x0B: "5mA",
	0x80: "100nA",
	0x81: "1uA",
	0x82: "6uA",
	0x83: "13uA",
	0x84: "25uA",
	0x85: "50uA",
	0x86: "100uA",
	0x87: "200uA",
	0x88: "1mA",
	0x89: "5mA",
}

// HighSpeed reports whether the range is a high speed mode range.
func (r CurrentRange) HighSpeed() bool {
	return r&rangeHighSpeed != 0
}

// Index is the range index with the high speed bit cleared.
func (r CurrentRange) Index() uint8 {
	return uint8(r &^ rangeHighSpeed)
}

// Known reports whether the byte maps to an EmStat Pico range.
func (r CurrentRange) Known() bool {
	_, ok := picoRanges[r]
	return ok
}

func (r CurrentRange) String() string {
	name, ok := picoRanges[r]
	if !ok {
		return fmt.Sprintf("range(0x%02X)", uint8(r))
	}
	if r.HighSpeed() {
		return name + " (high speed)"
	}
	return name
}

// Metadata holds the optional sub-fields following an encoded value.
type Metadata struct {
	Status    ReadingStatus `json:"status,omitempty"`
	HasStatus bool          `json:"has_status,omitempty"`
	Range     CurrentRange  `json:"range,omitempty"`
	HasRange  bool          `json:"has_range,omitempty"`
	// Noise is set when a noise value was present. Its content is not
	// decoded.
	Noise   bool     `json:"noise,omitempty"`
	Unknown []string `json:"unknown,omitempty"`
}

// Empty reports whether no metadata was present.
func (m Metadata) Empty() bool {
	return !m.HasStatus && !m.HasRange && !m.Noise && len(m.Unknown) == 0
}

// ParseMetadata decodes a comma separated metadata tail such as ",14,200".
// Unknown kinds are kept in Unknown and do not fail the parse.
func ParseMetadata(tail string) (Metadata, error) {
	var m Metadata
	if tail == "" {
		return m, nil
	}
	if tail[0] != ',' {
		return m, fmt.Errorf("%w: %q", ErrTrailingData, tail)
	}
	for _, item := range strings.Split(tail[1:], ",") {
		if item == "" {
			continue
		}
		switch item[0] {
		case MetaStatus:
			v, err := parseMetaHex(item[1:])
			if err != nil {
				return m, err
			}
			m.Status = ReadingStatus(v)
			m.HasStatus = true
		case MetaRange:
			v, err := parseMetaHex(item[1:])
			if err != nil {
				return m, err
			}
			m.Range = CurrentRange(v)
			m.HasRange = true
		case MetaNoise:
			m.Noise = true
		default:
			m.Unknown = append(m.Unknown, item)
		}
	}
	return m, nil
}

func parseMetaHex(s string) (uint8, error) {
	if len(s) == 0 || len(s) > 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMetadata, s)
	}
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMetadata, s)
	}
	return uint8(v), nil
}
