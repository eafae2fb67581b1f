package sink

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/picoctl/internal/protocol"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cvMeasurement(index, curve int, e, i float64) protocol.Measurement {
	return protocol.Measurement{
		Index: index,
		Curve: curve,
		Readings: []protocol.Reading{
			{VarType: protocol.VarSetPotential, Value: e},
			{VarType: protocol.VarCurrent, Value: i},
		},
	}
}

func testSummary() protocol.Summary {
	return protocol.Summary{
		ID:           "2f0c1d64-6f57-4b4e-9a43-3c2a2f1f0e11",
		Outcome:      protocol.OutcomeCompleted,
		State:        protocol.BurstIdle,
		Counters:     protocol.Counters{Succeeded: 3, Failed: 1},
		Measurements: 3,
		Curves:       2,
		Started:      time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC),
		Elapsed:      1500 * time.Millisecond,
	}
}

func TestCSVSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewCSVSink(&buf)
	ctx := context.Background()

	require.NoError(t, s.HandleMeasurement(ctx, cvMeasurement(1, 0, -0.5, 1e-6)))
	partial := protocol.Measurement{Index: 2, Curve: 1, Readings: []protocol.Reading{
		{VarType: protocol.VarCurrent, Value: math.NaN()},
		{VarType: protocol.VarTime, Value: 3},
	}}
	require.NoError(t, s.HandleMeasurement(ctx, partial))
	require.NoError(t, s.HandleSummary(ctx, testSummary()))

	want := "Index;Curve;Applied potential (V);WE current (A);Time (s)\n" +
		"1;0;-0.5;1e-06;\n" +
		"2;1;;NaN;3\n"
	assert.Equal(t, want, buf.String())
	assert.Equal(t, 2, s.Rows())
	require.NoError(t, s.Close())
}

func TestCSVSinkKeepsEveryDecodedReading(t *testing.T) {
	var buf bytes.Buffer
	s := NewCSVSink(&buf)
	ctx := context.Background()
	dec := protocol.NewDecoder(protocol.DefaultDecoderConfig())

	for _, line := range []string{
		"Pda8000001 ;zz8000010u",
		"Pda8000002 ;ba8000010u",
		"Pba8000001u;ba8000002u",
	} {
		res := dec.DecodeLine(line)
		require.NotNil(t, res.Measurement, line)
		require.NoError(t, s.HandleMeasurement(ctx, *res.Measurement))
	}
	assert.Empty(t, buf.String())
	require.NoError(t, s.HandleSummary(ctx, testSummary()))

	want := "Index;Curve;Applied potential (V);WE current (A);WE current (A) #2\n" +
		"1;0;1;;\n" +
		"2;0;2;1.6e-05;\n" +
		"3;0;;1e-06;2e-06\n"
	assert.Equal(t, want, buf.String())
	assert.Equal(t, 3, s.Rows())
}

func TestCSVSinkNewHeaderWhenLaterBurstAddsTypes(t *testing.T) {
	var buf bytes.Buffer
	s := NewCSVSink(&buf)
	ctx := context.Background()

	require.NoError(t, s.HandleMeasurement(ctx, cvMeasurement(1, 0, 0.1, 2e-9)))
	require.NoError(t, s.HandleSummary(ctx, testSummary()))
	require.NoError(t, s.HandleMeasurement(ctx, protocol.Measurement{Index: 2, Readings: []protocol.Reading{
		{VarType: protocol.VarTime, Value: 0.5},
		{VarType: protocol.VarCurrent, Value: 4e-9},
	}}))
	require.NoError(t, s.Close())

	want := "Index;Curve;Applied potential (V);WE current (A)\n" +
		"1;0;0.1;2e-09\n" +
		"Index;Curve;Applied potential (V);WE current (A);Time (s)\n" +
		"2;0;;4e-09;0.5\n"
	assert.Equal(t, want, buf.String())
}

func TestCreateCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cv.csv")
	s, err := CreateCSVFile(path)
	require.NoError(t, err)
	require.NoError(t, s.HandleMeasurement(context.Background(), cvMeasurement(1, 0, 0.1, 2e-9)))
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "1;0;0.1;2e-09\n"), string(data))
}

func TestReportSink(t *testing.T) {
	dir := t.TempDir()
	info := protocol.VersionInfo{Raw: "espico1.2", Device: protocol.DeviceEmStatPico}
	s, err := NewReportSink(dir, info, "/dev/ttyUSB0")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.HandleMeasurement(ctx, cvMeasurement(1, 1, 0.2, -3e-6)))
	require.NoError(t, s.HandleMeasurement(ctx, cvMeasurement(2, 0, -0.4, 5e-6)))
	require.NoError(t, s.HandleMeasurement(ctx, cvMeasurement(3, 1, 0.0, math.NaN())))
	require.NoError(t, s.HandleSummary(ctx, testSummary()))

	written := s.Written()
	require.Len(t, written, 1)
	rep, err := ReadReport(written[0])
	require.NoError(t, err)

	assert.Equal(t, "EmStat Pico", rep.Device)
	assert.Equal(t, "completed", rep.Outcome)
	assert.Equal(t, 1.5, rep.ElapsedSeconds)
	assert.Equal(t, []CurveReport{{Index: 0, Points: 1}, {Index: 1, Points: 2}}, rep.Curves)
	require.Len(t, rep.Variables, 2)
	assert.Equal(t, "da", rep.Variables[0].Code)
	assert.Equal(t, -0.4, rep.Variables[0].Min)
	assert.Equal(t, 0.2, rep.Variables[0].Max)
	assert.Equal(t, 2, rep.Variables[1].Count)
	assert.Equal(t, 1, rep.Variables[1].NaN)
}

type failingSink struct {
	err    error
	closed bool
	calls  int
}

func (f *failingSink) HandleMeasurement(context.Context, protocol.Measurement) error {
	f.calls++
	return f.err
}

func (f *failingSink) HandleSummary(context.Context, protocol.Summary) error {
	f.calls++
	return f.err
}

func (f *failingSink) Close() error {
	f.closed = true
	return nil
}

func TestMultiBestEffort(t *testing.T) {
	var logs bytes.Buffer
	boom := errors.New("redis down")
	flaky := &failingSink{err: boom}
	required := &failingSink{}

	m := NewMulti(zerolog.New(&logs)).
		AddBestEffort("redis", flaky).
		Add("csv", required)
	assert.Equal(t, 2, m.Len())

	require.NoError(t, m.HandleMeasurement(context.Background(), cvMeasurement(1, 0, 0, 0)))
	assert.Equal(t, 1, flaky.calls)
	assert.Equal(t, 1, required.calls)
	assert.Contains(t, logs.String(), "redis down")

	required.err = errors.New("disk full")
	err := m.HandleSummary(context.Background(), testSummary())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink csv")
	assert.NotErrorIs(t, err, boom)

	require.NoError(t, m.Close())
	assert.True(t, flaky.closed)
	assert.True(t, required.closed)
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSink(zerolog.New(&buf).Level(zerolog.DebugLevel), protocol.DeviceEmStatPico)
	m := cvMeasurement(1, 0, 0.5, 1e-6)
	m.Readings[1].Metadata = protocol.Metadata{Range: 0x0A, HasRange: true, Status: protocol.StatusOverload, HasStatus: true}

	require.NoError(t, s.HandleMeasurement(context.Background(), m))
	sum := testSummary()
	sum.Outcome = protocol.OutcomeAborted
	require.NoError(t, s.HandleSummary(context.Background(), sum))

	out := buf.String()
	assert.Contains(t, out, `"ba_range":"1mA"`)
	assert.Contains(t, out, `"ba_status":"Overload"`)
	assert.Contains(t, out, `"outcome":"aborted"`)
	assert.Contains(t, out, `"level":"warn"`)
}
