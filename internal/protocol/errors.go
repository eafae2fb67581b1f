package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownPackage  = errors.New("protocol: unknown package type")
	ErrEmptyPackage    = errors.New("protocol: measurement package has no fields")
	ErrNotMeasurement  = errors.New("protocol: not a measurement package")
	ErrShortField      = errors.New("protocol: field shorter than variable type code")
	ErrUnknownVarType  = errors.New("protocol: unknown variable type")
	ErrValueLength     = errors.New("protocol: encoded value has wrong length")
	ErrInvalidHex      = errors.New("protocol: encoded value is not hexadecimal")
	ErrUnknownPrefix   = errors.New("protocol: unknown SI prefix")
	ErrTrailingData    = errors.New("protocol: unexpected data after encoded value")
	ErrInvalidMetadata = errors.New("protocol: malformed metadata value")
	ErrValueRange      = errors.New("protocol: value out of encodable range")
)

// FieldError reports why one data field of a measurement package failed.
type FieldError struct {
	Index int
	Raw   string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("protocol: field %d %q: %v", e.Index, e.Raw, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// Reason returns a short stable label for the failure, used as a metric label.
func Reason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrUnknownPackage):
		return "unknown_package"
	case errors.Is(err, ErrEmptyPackage):
		return "empty_package"
	case errors.Is(err, ErrShortField):
		return "short_field"
	case errors.Is(err, ErrUnknownVarType):
		return "unknown_var_type"
	case errors.Is(err, ErrValueLength):
		return "value_length"
	case errors.Is(err, ErrInvalidHex):
		return "invalid_hex"
	case errors.Is(err, ErrUnknownPrefix):
		return "unknown_prefix"
	case errors.Is(err, ErrTrailingData):
		return "trailing_data"
	case errors.Is(err, ErrInvalidMetadata):
		return "invalid_metadata"
	default:
		return "other"
	}
}
