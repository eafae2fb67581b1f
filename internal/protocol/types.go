package protocol

import "strings"

// PackageType identifies a response line by its leading marker.
type PackageType uint8

const (
	PackageUnknown PackageType = iota
	PackageDeviceVersion
	PackageScriptReceived
	PackageStartMeasuring
	PackageMeasurement
	PackageEndMeasuring
	PackageEmptyLine
	PackageAborted
	PackageError
	PackageLoopStart
	PackageLoopEnd
	PackageScanStart
	PackageScanEnd
	PackageText
)

// Leading markers of response lines.
const (
	MarkerVersion     = 't'
	MarkerScriptRecv  = 'e'
	MarkerMeasStart   = 'M'
	MarkerMeasurement = 'P'
	MarkerMeasEnd     = '*'
	MarkerAborted     = 'Z'
	MarkerError       = 'F'
	MarkerErrorAlt    = '!'
	MarkerLoopStart   = 'L'
	MarkerLoopEnd     = '+'
	MarkerScanStart   = 'C'
	MarkerScanEnd     = '-'
	MarkerText        = 'T'
)

// Outbound commands.
const (
	CommandVersion = "t\n"
	CommandAbort   = "Z\n"
)

// ErrorCodeNoData is the error reply the device sends when a script produced
// no data before stopping.
const ErrorCodeNoData = "0003"

var packageNames = [...]string{
	PackageUnknown:        "unknown",
	PackageDeviceVersion:  "device_version",
	PackageScriptReceived: "script_received",
	PackageStartMeasuring: "start_measuring",
	PackageMeasurement:    "measurement",
	PackageEndMeasuring:   "end_measuring",
	PackageEmptyLine:      "empty_line",
	PackageAborted:        "aborted",
	PackageError:          "error",
	PackageLoopStart:      "loop_start",
	PackageLoopEnd:        "loop_end",
	PackageScanStart:      "scan_start",
	PackageScanEnd:        "scan_end",
	PackageText:           "text",
}

func (p PackageType) String() string {
	if int(p) < len(packageNames) {
		return packageNames[p]
	}
	return packageNames[PackageUnknown]
}

// Terminal reports whether the package ends the current measurement.
func (p PackageType) Terminal() bool {
	switch p {
	case PackageEndMeasuring, PackageAborted, PackageError, PackageEmptyLine:
		return true
	}
	return false
}

// TrimLine strips the line terminator, tolerating CRLF captures.
func TrimLine(line string) string {
	return strings.TrimRight(line, "\r\n")
}

// Classify returns the package type of one response line. It only inspects
// the first character and has no state.
func Classify(line string) PackageType {
	line = TrimLine(line)
	if line == "" {
		return PackageEmptyLine
	}
	switch line[0] {
	case MarkerVersion:
		return PackageDeviceVersion
	case MarkerScriptRecv:
		return PackageScriptReceived
	case MarkerMeasStart:
		return PackageStartMeasuring
	case MarkerMeasurement:
		return PackageMeasurement
	case MarkerMeasEnd:
		return PackageEndMeasuring
	case MarkerAborted:
		return PackageAborted
	case MarkerError, MarkerErrorAlt:
		return PackageError
	case MarkerLoopStart:
		return PackageLoopStart
	case MarkerLoopEnd:
		return PackageLoopEnd
	case MarkerScanStart:
		return PackageScanStart
	case MarkerScanEnd:
		return PackageScanEnd
	case MarkerText:
		return PackageText
	}
	return PackageUnknown
}

// ErrorReply is a decoded error line such as "F!0003".
type ErrorReply struct {
	Code string
}

// ParseErrorReply extracts the error code from an error line.
func ParseErrorReply(line string) (ErrorReply, bool) {
	line = TrimLine(line)
	if Classify(line) != PackageError {
		return ErrorReply{}, false
	}
	code := strings.TrimLeft(line, "F!")
	return ErrorReply{Code: strings.TrimSpace(code)}, true
}

// NoData reports whether the reply is the known "no data" error.
func (r ErrorReply) NoData() bool {
	return r.Code == ErrorCodeNoData
}

func (r ErrorReply) String() string {
	if r.NoData() {
		return "F!" + r.Code + " (no data)"
	}
	return "F!" + r.Code
}
