package session

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"testing"
	"time"

	"github.com/danmuck/picoctl/internal/protocol"
	"github.com/danmuck/picoctl/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbePicksFirstKnownDevice(t *testing.T) {
	testlog.Start(t)
	devices := map[string]*fakeDevice{}
	open := func(name string) (io.ReadWriteCloser, error) {
		d := newFakeDevice()
		switch name {
		case "/dev/ttyUSB0":
			return nil, errors.New("permission denied")
		case "/dev/ttyUSB1":
			d.onWrite = answerVersion("tsensit1.0*\n")
		case "/dev/ttyUSB2":
		case "/dev/ttyUSB3":
			d.onWrite = answerVersion("tespico1.2*\n")
		}
		devices[name] = d
		return d, nil
	}
	cfg := testConfig()
	cfg.VersionTimeout = 30 * time.Millisecond

	res, err := Probe(context.Background(),
		[]string{"/dev/ttyUSB0", "/dev/ttyUSB1", "/dev/ttyUSB2", "/dev/ttyUSB3"}, open, cfg)
	require.NoError(t, err)
	defer res.Session.Close()

	assert.Equal(t, "/dev/ttyUSB3", res.Port)
	assert.Equal(t, protocol.DeviceEmStatPico, res.Version.Device)
	assert.Equal(t, res.Version, res.Session.Device())
}

func TestProbeNoInstrument(t *testing.T) {
	testlog.Start(t)
	open := func(string) (io.ReadWriteCloser, error) {
		return nil, errors.New("no such device")
	}
	_, err := Probe(context.Background(), []string{"a", "b"}, open, testConfig())
	if !errors.Is(err, ErrNoInstrument) {
		t.Fatalf("expected ErrNoInstrument, got %v", err)
	}

	_, err = Probe(context.Background(), nil, open, testConfig())
	if !errors.Is(err, ErrNoInstrument) {
		t.Fatalf("expected ErrNoInstrument for no candidates, got %v", err)
	}
}

func TestNextBackoffDelay(t *testing.T) {
	cfg := BackoffConfig{InitialDelay: 100 * time.Millisecond, Multiplier: 2, MaxDelay: 300 * time.Millisecond}
	cases := map[int]time.Duration{
		1: 100 * time.Millisecond,
		2: 200 * time.Millisecond,
		3: 300 * time.Millisecond,
		8: 300 * time.Millisecond,
	}
	for attempt, want := range cases {
		if got := NextBackoffDelay(cfg, attempt, nil); got != want {
			t.Fatalf("attempt %d: got %s, want %s", attempt, got, want)
		}
	}

	cfg.Jitter = true
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		got := NextBackoffDelay(cfg, 1, rng)
		if got < 50*time.Millisecond || got >= 150*time.Millisecond {
			t.Fatalf("jittered delay %s out of range", got)
		}
	}
	if got := NextBackoffDelay(BackoffConfig{}, 3, nil); got != 0 {
		t.Fatalf("zero config delay = %s, want 0", got)
	}
}
