package protocol

import (
	"fmt"
	"strings"
)

// DeviceType is the instrument family reported in the version reply.
type DeviceType uint8

const (
	DeviceUnknown DeviceType = iota
	DeviceEmStatPico
	DeviceEmStat4LR
	DeviceEmStat4HR
	DeviceMultiEmStat4LR
	DeviceMultiEmStat4HR
)

var deviceNames = [...]string{
	DeviceUnknown:        "Unknown device",
	DeviceEmStatPico:     "EmStat Pico",
	DeviceEmStat4LR:      "EmStat4 LR",
	DeviceEmStat4HR:      "EmStat4 HR",
	DeviceMultiEmStat4LR: "MultiEmStat4 LR",
	DeviceMultiEmStat4HR: "MultiEmStat4 HR",
}

func (d DeviceType) String() string {
	if int(d) < len(deviceNames) {
		return deviceNames[d]
	}
	return deviceNames[DeviceUnknown]
}

var devicePrefixes = []struct {
	prefix string
	device DeviceType
}{
	{"espico", DeviceEmStatPico},
	{"esp", DeviceEmStatPico},
	{"es4_lr", DeviceEmStat4LR},
	{"es4_hr", DeviceEmStat4HR},
	{"mes4lr", DeviceMultiEmStat4LR},
	{"mes4hr", DeviceMultiEmStat4HR},
}

// DeviceTypeFromVersion derives the device family from a firmware version.
func DeviceTypeFromVersion(version string) DeviceType {
	v := strings.ToLower(strings.TrimSpace(version))
	for _, p := range devicePrefixes {
		if strings.HasPrefix(v, p.prefix) {
			return p.device
		}
	}
	return DeviceUnknown
}

// VersionInfo is the decoded reply to the version command.
type VersionInfo struct {
	Raw    string
	Device DeviceType
}

// VersionComplete reports whether a version reply line is the last one. The
// reply may span several lines and ends with '*'.
func VersionComplete(line string) bool {
	return strings.HasSuffix(TrimLine(line), "*")
}

// ParseVersion joins the lines of a version reply. The first line must start
// with 't'; the leading marker and the closing '*' are dropped.
func ParseVersion(lines []string) (VersionInfo, error) {
	if len(lines) == 0 {
		return VersionInfo{}, fmt.Errorf("protocol: empty version reply")
	}
	first := TrimLine(lines[0])
	if Classify(first) != PackageDeviceVersion {
		return VersionInfo{}, fmt.Errorf("protocol: unexpected version reply %q", first)
	}
	parts := make([]string, 0, len(lines))
	parts = append(parts, first[1:])
	for _, l := range lines[1:] {
		parts = append(parts, TrimLine(l))
	}
	raw := strings.TrimSuffix(strings.Join(parts, " "), "*")
	raw = strings.TrimSpace(raw)
	return VersionInfo{Raw: raw, Device: DeviceTypeFromVersion(raw)}, nil
}

var es4CurrentRanges = map[CurrentRange]string{
	3:  "1nA",
	6:  "10nA",
	9:  "100nA",
	12: "1uA",
	15: "10uA",
	18: "100uA",
	21: "1mA",
	24: "10mA",
	27: "100mA",
}

var es4PotentialRanges = map[CurrentRange]string{
	2: "50mV",
	3: "100mV",
	4: "200mV",
	5: "500mV",
	6: "1V",
}

// RangeName names a range byte for the given device. EmStat4 instruments
// report potential ranges for potential and ZImag readings.
func RangeName(device DeviceType, v VarType, r CurrentRange) string {
	switch device {
	case DeviceEmStat4LR, DeviceEmStat4HR, DeviceMultiEmStat4LR, DeviceMultiEmStat4HR:
		table := es4CurrentRanges
		if v == VarPotential || v == VarZImag {
			table = es4PotentialRanges
		}
		if name, ok := table[r]; ok {
			return name
		}
		return fmt.Sprintf("range(0x%02X)", uint8(r))
	default:
		return r.String()
	}
}
