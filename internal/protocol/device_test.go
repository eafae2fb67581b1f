package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersionMultiLine(t *testing.T) {
	info, err := ParseVersion([]string{"tes4_lr1.2\n", "R2101*\n"})
	require.NoError(t, err)
	assert.Equal(t, "es4_lr1.2 R2101", info.Raw)
	assert.Equal(t, DeviceEmStat4LR, info.Device)
	assert.Equal(t, "EmStat4 LR", info.Device.String())
}

func TestParseVersionPico(t *testing.T) {
	require.False(t, VersionComplete("tespico1.2\n"))
	require.True(t, VersionComplete("tespico1.2*\r\n"))

	info, err := ParseVersion([]string{"tespico1.2*"})
	require.NoError(t, err)
	assert.Equal(t, DeviceEmStatPico, info.Device)
}

func TestParseVersionRejectsOtherLines(t *testing.T) {
	if _, err := ParseVersion(nil); err == nil {
		t.Fatalf("expected error for empty reply")
	}
	if _, err := ParseVersion([]string{"e"}); err == nil {
		t.Fatalf("expected error for non version line")
	}
}

func TestDeviceTypeFromVersion(t *testing.T) {
	cases := map[string]DeviceType{
		"espico1.2": DeviceEmStatPico,
		"es4_hr1.0": DeviceEmStat4HR,
		"mes4lr2.0": DeviceMultiEmStat4LR,
		"MES4HR2.0": DeviceMultiEmStat4HR,
		"sensit1.0": DeviceUnknown,
		"":          DeviceUnknown,
	}
	for v, want := range cases {
		if got := DeviceTypeFromVersion(v); got != want {
			t.Fatalf("DeviceTypeFromVersion(%q) = %v, want %v", v, got, want)
		}
	}
}

func TestRangeName(t *testing.T) {
	assert.Equal(t, "1mA", RangeName(DeviceEmStatPico, VarCurrent, 0x0A))
	assert.Equal(t, "1mA (high speed)", RangeName(DeviceEmStatPico, VarCurrent, 0x88))
	assert.Equal(t, "10uA", RangeName(DeviceEmStat4HR, VarCurrent, 15))
	assert.Equal(t, "200mV", RangeName(DeviceEmStat4LR, VarPotential, 4))
	assert.Equal(t, "1V", RangeName(DeviceEmStat4LR, VarZImag, 6))
	assert.Equal(t, "range(0x63)", RangeName(DeviceEmStat4LR, VarCurrent, 0x63))
}

func TestVarTypeLookup(t *testing.T) {
	v, ok := LookupVarType("ba")
	require.True(t, ok)
	assert.Equal(t, VarCurrent, v)
	assert.Equal(t, "ba", v.Code())
	assert.Equal(t, "WE current (A)", v.Label())
	assert.Equal(t, QuantityCurrent, v.Quantity())

	for _, code := range []string{"zz", "b", "BA", "b1"} {
		if _, ok := LookupVarType(code); ok {
			t.Fatalf("LookupVarType(%q) should fail", code)
		}
	}
}

func TestReasonLabels(t *testing.T) {
	dec := NewDecoder(DefaultDecoderConfig())
	res := dec.DecodeLine("Pzz8000000 ")
	assert.Equal(t, "unknown_var_type", Reason(res.Err))
	assert.Equal(t, "none", Reason(nil))
}
