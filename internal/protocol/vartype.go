package protocol

import "fmt"

// VarType is a MethodSCRIPT variable type, packed from its two-letter code
// as (c0-'a')*26 + (c1-'a'). "aa" is 0, "zz" is 675.
type VarType uint16

// Quantity groups variable types by the physical quantity they carry.
type Quantity uint8

const (
	QuantityOther Quantity = iota
	QuantityPotential
	QuantityCurrent
	QuantityImpedance
	QuantityPhase
	QuantityFrequency
	QuantityTime
	QuantityTemperature
)

func vt(c0, c1 byte) VarType {
	return VarType(uint16(c0-'a')*26 + uint16(c1-'a'))
}

const (
	VarUnspecified       VarType = ('a'-'a')*26 + ('a' - 'a')
	VarPotential         VarType = ('a'-'a')*26 + ('b' - 'a')
	VarPotentialCE       VarType = ('a'-'a')*26 + ('c' - 'a')
	VarPotentialSE       VarType = ('a'-'a')*26 + ('d' - 'a')
	VarPotentialRE       VarType = ('a'-'a')*26 + ('e' - 'a')
	VarPotentialWE       VarType = ('a'-'a')*26 + ('f' - 'a')
	VarPotentialWEvsCE   VarType = ('a'-'a')*26 + ('g' - 'a')
	VarPotentialAIN0     VarType = ('a'-'a')*26 + ('s' - 'a')
	VarPotentialAIN1     VarType = ('a'-'a')*26 + ('t' - 'a')
	VarPotentialAIN2     VarType = ('a'-'a')*26 + ('u' - 'a')
	VarPotentialAIN3     VarType = ('a'-'a')*26 + ('v' - 'a')
	VarPotentialAIN4     VarType = ('a'-'a')*26 + ('w' - 'a')
	VarPotentialAIN5     VarType = ('a'-'a')*26 + ('x' - 'a')
	VarPotentialAIN6     VarType = ('a'-'a')*26 + ('y' - 'a')
	VarPotentialAIN7     VarType = ('a'-'a')*26 + ('z' - 'a')
	VarCurrent           VarType = ('b'-'a')*26 + ('a' - 'a')
	VarPhase             VarType = ('c'-'a')*26 + ('a' - 'a')
	VarImpedance         VarType = ('c'-'a')*26 + ('b' - 'a')
	VarZReal             VarType = ('c'-'a')*26 + ('c' - 'a')
	VarZImag             VarType = ('c'-'a')*26 + ('d' - 'a')
	VarEISTddE           VarType = ('c'-'a')*26 + ('e' - 'a')
	VarEISTddI           VarType = ('c'-'a')*26 + ('f' - 'a')
	VarEISFs             VarType = ('c'-'a')*26 + ('g' - 'a')
	VarEISEAC            VarType = ('c'-'a')*26 + ('h' - 'a')
	VarEISEDC            VarType = ('c'-'a')*26 + ('i' - 'a')
	VarEISIAC            VarType = ('c'-'a')*26 + ('j' - 'a')
	VarEISIDC            VarType = ('c'-'a')*26 + ('k' - 'a')
	VarSetPotential      VarType = ('d'-'a')*26 + ('a' - 'a')
	VarSetCurrent        VarType = ('d'-'a')*26 + ('b' - 'a')
	VarSetFrequency      VarType = ('d'-'a')*26 + ('c' - 'a')
	VarSetAmplitude      VarType = ('d'-'a')*26 + ('d' - 'a')
	VarChannel           VarType = ('e'-'a')*26 + ('a' - 'a')
	VarTime              VarType = ('e'-'a')*26 + ('b' - 'a')
	VarPinMask           VarType = ('e'-'a')*26 + ('c' - 'a')
	VarTemperature       VarType = ('e'-'a')*26 + ('d' - 'a')
	VarCurrentGeneric1   VarType = ('h'-'a')*26 + ('a' - 'a')
	VarCurrentGeneric2   VarType = ('h'-'a')*26 + ('b' - 'a')
	VarCurrentGeneric3   VarType = ('h'-'a')*26 + ('c' - 'a')
	VarCurrentGeneric4   VarType = ('h'-'a')*26 + ('d' - 'a')
	VarPotentialGeneric1 VarType = ('i'-'a')*26 + ('a' - 'a')
	VarPotentialGeneric2 VarType = ('i'-'a')*26 + ('b' - 'a')
	VarPotentialGeneric3 VarType = ('i'-'a')*26 + ('c' - 'a')
	VarPotentialGeneric4 VarType = ('i'-'a')*26 + ('d' - 'a')
	VarMiscGeneric1      VarType = ('j'-'a')*26 + ('a' - 'a')
	VarMiscGeneric2      VarType = ('j'-'a')*26 + ('b' - 'a')
	VarMiscGeneric3      VarType = ('j'-'a')*26 + ('c' - 'a')
	VarMiscGeneric4      VarType = ('j'-'a')*26 + ('d' - 'a')
)

// VarTypeInfo describes one known variable type.
type VarTypeInfo struct {
	Name     string
	Unit     string
	Quantity Quantity
}

var varTypes = map[VarType]VarTypeInfo{
	VarUnspecified:       {"Unspecified", "", QuantityOther},
	VarPotential:         {"WE vs RE potential", "V", QuantityPotential},
	VarPotentialCE:       {"CE potential", "V", QuantityPotential},
	VarPotentialSE:       {"SE potential", "V", QuantityPotential},
	VarPotentialRE:       {"RE potential", "V", QuantityPotential},
	VarPotentialWE:       {"WE potential", "V", QuantityPotential},
	VarPotentialWEvsCE:   {"WE vs CE potential", "V", QuantityPotential},
	VarPotentialAIN0:     {"AIN0 potential", "V", QuantityPotential},
	VarPotentialAIN1:     {"AIN1 potential", "V", QuantityPotential},
	VarPotentialAIN2:     {"AIN2 potential", "V", QuantityPotential},
	VarPotentialAIN3:     {"AIN3 potential", "V", QuantityPotential},
	VarPotentialAIN4:     {"AIN4 potential", "V", QuantityPotential},
	VarPotentialAIN5:     {"AIN5 potential", "V", QuantityPotential},
	VarPotentialAIN6:     {"AIN6 potential", "V", QuantityPotential},
	VarPotentialAIN7:     {"AIN7 potential", "V", QuantityPotential},
	VarCurrent:           {"WE current", "A", QuantityCurrent},
	VarPhase:             {"Phase", "deg", QuantityPhase},
	VarImpedance:         {"Impedance", "Ohm", QuantityImpedance},
	VarZReal:             {"ZReal", "Ohm", QuantityImpedance},
	VarZImag:             {"ZImag", "Ohm", QuantityImpedance},
	VarEISTddE:           {"EIS E TDD", "V", QuantityPotential},
	VarEISTddI:           {"EIS I TDD", "A", QuantityCurrent},
	VarEISFs:             {"EIS sampling frequency", "Hz", QuantityFrequency},
	VarEISEAC:            {"EIS E AC", "Vrms", QuantityPotential},
	VarEISEDC:            {"EIS E DC", "V", QuantityPotential},
	VarEISIAC:            {"EIS I AC", "Arms", QuantityCurrent},
	VarEISIDC:            {"EIS I DC", "A", QuantityCurrent},
	VarSetPotential:      {"Applied potential", "V", QuantityPotential},
	VarSetCurrent:        {"Applied current", "A", QuantityCurrent},
	VarSetFrequency:      {"Applied frequency", "Hz", QuantityFrequency},
	VarSetAmplitude:      {"Applied AC amplitude", "Vrms", QuantityPotential},
	VarChannel:           {"Channel", "", QuantityOther},
	VarTime:              {"Time", "s", QuantityTime},
	VarPinMask:           {"Pin mask", "", QuantityOther},
	VarTemperature:       {"Temperature", "degC", QuantityTemperature},
	VarCurrentGeneric1:   {"Current generic 1", "A", QuantityCurrent},
	VarCurrentGeneric2:   {"Current generic 2", "A", QuantityCurrent},
	VarCurrentGeneric3:   {"Current generic 3", "A", QuantityCurrent},
	VarCurrentGeneric4:   {"Current generic 4", "A", QuantityCurrent},
	VarPotentialGeneric1: {"Potential generic 1", "V", QuantityPotential},
	VarPotentialGeneric2: {"Potential generic 2", "V", QuantityPotential},
	VarPotentialGeneric3: {"Potential generic 3", "V", QuantityPotential},
	VarPotentialGeneric4: {"Potential generic 4", "V", QuantityPotential},
	VarMiscGeneric1:      {"Misc generic 1", "", QuantityOther},
	VarMiscGeneric2:      {"Misc generic 2", "", QuantityOther},
	VarMiscGeneric3:      {"Misc generic 3", "", QuantityOther},
	VarMiscGeneric4:      {"Misc generic 4", "", QuantityOther},
}

// LookupVarType resolves a two-letter code against the known variable types.
func LookupVarType(code string) (VarType, bool) {
	if len(code) != 2 || code[0] < 'a' || code[0] > 'z' || code[1] < 'a' || code[1] > 'z' {
		return 0, false
	}
	v := vt(code[0], code[1])
	if _, ok := varTypes[v]; !ok {
		return 0, false
	}
	return v, true
}

// Code returns the two-letter wire code.
func (v VarType) Code() string {
	return string([]byte{byte(v/26) + 'a', byte(v%26) + 'a'})
}

// Info returns the descriptive entry, if the type is known.
func (v VarType) Info() (VarTypeInfo, bool) {
	info, ok := varTypes[v]
	return info, ok
}

func (v VarType) String() string {
	if info, ok := varTypes[v]; ok {
		return info.Name
	}
	return "undefined(" + v.Code() + ")"
}

// Unit returns the base unit symbol, empty for dimensionless types.
func (v VarType) Unit() string {
	return varTypes[v].Unit
}

// Quantity returns the physical quantity the type carries.
func (v VarType) Quantity() Quantity {
	return varTypes[v].Quantity
}

// MarshalText renders the two-letter code.
func (v VarType) MarshalText() ([]byte, error) {
	return []byte(v.Code()), nil
}

// UnmarshalText accepts a known two-letter code.
func (v *VarType) UnmarshalText(b []byte) error {
	parsed, ok := LookupVarType(string(b))
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownVarType, b)
	}
	*v = parsed
	return nil
}

// Label renders "Name (unit)" for table headers.
func (v VarType) Label() string {
	if u := v.Unit(); u != "" {
		return v.String() + " (" + u + ")"
	}
	return v.String()
}
