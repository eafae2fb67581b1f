package protocol

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	c.t = c.t.Add(10 * time.Millisecond)
	return c.t
}

func feedAll(b *Burst, stream string) (results []LineResult, done bool) {
	for _, line := range strings.SplitAfter(stream, "\n") {
		if line == "" {
			continue
		}
		res, d := b.Feed(line)
		results = append(results, res)
		if d {
			return results, true
		}
	}
	return results, false
}

func TestBurstCompleted(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	b := newBurst(NewDecoder(DefaultDecoderConfig()), clock.now)
	stream := "e\nM0000\nPda807A1CAu;ba6FFA74Ba\nPda8000001m;ba8000010u\n*\n\n"

	results, done := feedAll(b, stream)
	require.True(t, done)
	require.Len(t, results, 6)

	sum := b.Summary()
	assert.Equal(t, OutcomeCompleted, sum.Outcome)
	assert.Equal(t, BurstIdle, sum.State)
	assert.Equal(t, Counters{Succeeded: 2}, sum.Counters)
	assert.Equal(t, 2, sum.Measurements)
	assert.Equal(t, 1, sum.Curves)
	assert.NotEmpty(t, sum.ID)
	assert.Greater(t, sum.Elapsed, time.Duration(0))
}

func TestBurstEndOfStreamStaysReceiving(t *testing.T) {
	b := NewBurst(NewDecoder(DefaultDecoderConfig()))
	_, done := feedAll(b, "e\nM0000\nPda807A1CAu\n")
	require.False(t, done)
	if b.State() != BurstReceiving {
		t.Fatalf("state = %v, want receiving", b.State())
	}
	assert.Equal(t, OutcomePending, b.Summary().Outcome)
}

func TestBurstAcknowledgementsKeepState(t *testing.T) {
	b := NewBurst(NewDecoder(DefaultDecoderConfig()))
	feedAll(b, "tespico1.2*\ne\n")
	assert.Equal(t, BurstAwaitingStart, b.State())

	feedAll(b, "M0000\ne\n")
	assert.Equal(t, BurstReceiving, b.State())
}

func TestBurstErrorReply(t *testing.T) {
	b := NewBurst(NewDecoder(DefaultDecoderConfig()))
	_, done := feedAll(b, "e\nM0000\nF!0003\nPba8000010u\n")
	require.True(t, done)

	sum := b.Summary()
	assert.Equal(t, OutcomeError, sum.Outcome)
	assert.Equal(t, BurstIdle, sum.State)
	assert.Equal(t, "0003", sum.ErrorCode)
	assert.True(t, sum.NoData())
}

func TestBurstAborted(t *testing.T) {
	b := NewBurst(NewDecoder(DefaultDecoderConfig()))
	_, done := feedAll(b, "M0000\nPba8000010u\nZ\n")
	require.True(t, done)
	assert.Equal(t, OutcomeAborted, b.Summary().Outcome)
}

func TestBurstEmptyLineTerminatesAnyState(t *testing.T) {
	b := NewBurst(NewDecoder(DefaultDecoderConfig()))
	_, done := feedAll(b, "M0000\nPba8000010u\n\n")
	require.True(t, done)
	assert.Equal(t, BurstIdle, b.State())
	assert.Equal(t, OutcomePending, b.Outcome())
}

func TestBurstCurves(t *testing.T) {
	b := NewBurst(NewDecoder(DefaultDecoderConfig()))
	stream := "M0000\nL\nPba8000010u\n+\nPba8000011u\n+\n*\nM0001\nPba8000012u\n*\n\n"

	results, done := feedAll(b, stream)
	require.True(t, done)

	var curves []int
	for _, r := range results {
		if r.Measurement != nil {
			curves = append(curves, r.Measurement.Curve)
		}
	}
	assert.Equal(t, []int{0, 1, 3}, curves)

	sum := b.Summary()
	assert.Equal(t, 3, sum.Curves)
	assert.Equal(t, 3, sum.Measurements)
	assert.Equal(t, OutcomeCompleted, sum.Outcome)
}

func TestBurstTalliesRelativeToStart(t *testing.T) {
	dec := NewDecoder(DefaultDecoderConfig())
	dec.DecodeLine("Pzz")
	b := NewBurst(dec)
	feedAll(b, "M0000\nPba8000010u\nPba8000010u,1Z\n*\n\n")
	assert.Equal(t, Counters{Succeeded: 1, Failed: 1}, b.Summary().Counters)
	assert.Equal(t, Counters{Succeeded: 1, Failed: 2}, dec.Counters())
}

func TestSummaryJSON(t *testing.T) {
	b := NewBurst(NewDecoder(DefaultDecoderConfig()))
	feedAll(b, "M0000\nPba8000010u\n*\n\n")
	sum := b.Summary()

	data, err := json.Marshal(sum)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"outcome":"completed"`)

	var back Summary
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, sum.ID, back.ID)
	assert.Equal(t, OutcomeCompleted, back.Outcome)
	assert.Equal(t, BurstIdle, back.State)
	assert.Equal(t, sum.Counters, back.Counters)
}
