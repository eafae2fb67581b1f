package protocol

import (
	"fmt"
	"strings"
)

// FieldResult is the outcome of decoding one data field.
type FieldResult struct {
	Index   int
	Raw     string
	Code    string
	Reading Reading
	Err     error
}

// OK reports whether the field decoded.
func (f FieldResult) OK() bool {
	return f.Err == nil
}

// SplitFields splits the body of a measurement package into its raw fields.
// The leading 'P' and the line terminator must already be stripped.
func SplitFields(body string) []string {
	if body == "" {
		return nil
	}
	return strings.Split(body, ";")
}

// ParseField decodes one data field: a two-letter variable type code, an
// encoded value, then an optional metadata tail.
func ParseField(idx int, raw string, enc Encoding) FieldResult {
	res := FieldResult{Index: idx, Raw: raw}
	fail := func(err error) FieldResult {
		res.Err = &FieldError{Index: idx, Raw: raw, Err: err}
		return res
	}

	if len(raw) < 2 {
		return fail(ErrShortField)
	}
	res.Code = raw[:2]
	v, ok := LookupVarType(res.Code)
	if !ok {
		return fail(fmt.Errorf("%w: %q", ErrUnknownVarType, res.Code))
	}

	rest := raw[2:]
	segment := rest
	tail := ""
	if i := strings.IndexByte(rest, ','); i >= 0 {
		segment, tail = rest[:i], rest[i:]
	}

	width := enc.Width
	if enc.Auto() {
		resolved, err := enc.detect(segment)
		if err != nil {
			return fail(err)
		}
		width = resolved.Width
		enc = resolved
	}
	switch {
	case len(segment) < width:
		return fail(ErrValueLength)
	case len(segment) > width:
		return fail(fmt.Errorf("%w: %q", ErrTrailingData, segment[width:]))
	}

	value, err := DecodeValue(segment, enc)
	if err != nil {
		return fail(err)
	}
	meta, err := ParseMetadata(tail)
	if err != nil {
		return fail(err)
	}
	res.Reading = Reading{VarType: v, Value: value, Metadata: meta}
	return res
}
