package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/picoctl/internal/protocol"
	"github.com/danmuck/picoctl/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDevice is an in-memory instrument. Replies queued with send are
// delivered to the reader in order.
type fakeDevice struct {
	mu      sync.Mutex
	written bytes.Buffer
	writes  []int
	onWrite func(d *fakeDevice, p []byte)

	pr   *io.PipeReader
	pw   *io.PipeWriter
	out  chan string
	stop chan struct{}
	once sync.Once
}

func newFakeDevice() *fakeDevice {
	pr, pw := io.Pipe()
	d := &fakeDevice{pr: pr, pw: pw, out: make(chan string, 64), stop: make(chan struct{})}
	go func() {
		for {
			select {
			case s := <-d.out:
				if _, err := d.pw.Write([]byte(s)); err != nil {
					return
				}
			case <-d.stop:
				return
			}
		}
	}()
	return d
}

func (d *fakeDevice) send(chunks ...string) {
	for _, c := range chunks {
		d.out <- c
	}
}

func (d *fakeDevice) Read(p []byte) (int, error) {
	return d.pr.Read(p)
}

func (d *fakeDevice) Write(p []byte) (int, error) {
	d.mu.Lock()
	d.written.Write(p)
	d.writes = append(d.writes, len(p))
	cb := d.onWrite
	d.mu.Unlock()
	if cb != nil {
		cb(d, append([]byte(nil), p...))
	}
	return len(p), nil
}

func (d *fakeDevice) Close() error {
	d.once.Do(func() {
		close(d.stop)
		_ = d.pr.Close()
		_ = d.pw.Close()
	})
	return nil
}

func (d *fakeDevice) Written() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.written.String()
}

func (d *fakeDevice) WriteSizes() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.writes...)
}

func answerVersion(reply string) func(*fakeDevice, []byte) {
	return func(d *fakeDevice, p []byte) {
		if string(p) == protocol.CommandVersion {
			d.send(reply)
		}
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ReadTimeout = 2 * time.Second
	cfg.VersionTimeout = 500 * time.Millisecond
	cfg.Backoff.InitialDelay = time.Millisecond
	cfg.Backoff.Jitter = false
	return cfg
}

type collector struct {
	measurements []protocol.Measurement
	summaries    []protocol.Summary
}

func (c *collector) HandleMeasurement(_ context.Context, m protocol.Measurement) error {
	c.measurements = append(c.measurements, m)
	return nil
}

func (c *collector) HandleSummary(_ context.Context, s protocol.Summary) error {
	c.summaries = append(c.summaries, s)
	return nil
}

func TestVersionHandshake(t *testing.T) {
	testlog.Start(t)
	dev := newFakeDevice()
	dev.onWrite = answerVersion("e\ntespico1.2\nR1.0*\n")
	s := New(dev, testConfig())
	defer s.Close()

	info, err := s.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, protocol.DeviceEmStatPico, info.Device)
	assert.Equal(t, "espico1.2 R1.0", info.Raw)
	assert.Equal(t, info, s.Device())
	assert.Equal(t, protocol.CommandVersion, dev.Written())
}

func TestVersionTimeout(t *testing.T) {
	testlog.Start(t)
	dev := newFakeDevice()
	cfg := testConfig()
	cfg.VersionTimeout = 30 * time.Millisecond
	s := New(dev, cfg)
	defer s.Close()

	_, err := s.Version(context.Background())
	if !errors.Is(err, ErrReadTimeout) {
		t.Fatalf("expected ErrReadTimeout, got %v", err)
	}
}

func TestRunCompletedBurst(t *testing.T) {
	testlog.Start(t)
	dev := newFakeDevice()
	s := New(dev, testConfig())
	defer s.Close()

	dev.send("e\nM00", "00\nPda807A1CAu;ba6FF", "A74Ba\nPzz8000001 ;ba8000010u\n", "*\n\n")
	var c collector
	sum, err := s.Run(context.Background(), &c)
	require.NoError(t, err)

	assert.Equal(t, protocol.OutcomeCompleted, sum.Outcome)
	assert.Equal(t, protocol.Counters{Succeeded: 1, Failed: 1}, sum.Counters)
	assert.Equal(t, 2, sum.Measurements)
	require.Len(t, c.measurements, 2)
	assert.Equal(t, 1, c.measurements[0].Index)
	assert.Len(t, c.measurements[1].Readings, 1)
	require.Len(t, c.summaries, 1)
	assert.Equal(t, sum.ID, c.summaries[0].ID)
}

func TestRunIdleTimeoutLeavesBurstReceiving(t *testing.T) {
	testlog.Start(t)
	dev := newFakeDevice()
	cfg := testConfig()
	cfg.ReadTimeout = 40 * time.Millisecond
	s := New(dev, cfg)
	defer s.Close()

	dev.send("e\nM0000\nPba8000010u\n")
	sum, err := s.Run(context.Background(), nil)
	if !errors.Is(err, ErrReadTimeout) {
		t.Fatalf("expected ErrReadTimeout, got %v", err)
	}
	assert.Equal(t, protocol.BurstReceiving, sum.State)
	assert.Equal(t, protocol.OutcomePending, sum.Outcome)
	assert.Equal(t, 1, sum.Measurements)
}

type readWriter struct {
	io.Reader
	io.Writer
}

func (readWriter) Close() error { return nil }

func TestRunEndOfStream(t *testing.T) {
	testlog.Start(t)
	rw := readWriter{Reader: strings.NewReader("M0000\nPba8000010u\nPb"), Writer: io.Discard}
	s := New(rw, testConfig())
	defer s.Close()

	sum, err := s.Run(context.Background(), nil)
	if !errors.Is(err, ErrClosed) || !errors.Is(err, io.EOF) {
		t.Fatalf("expected closed/EOF, got %v", err)
	}
	assert.Equal(t, protocol.BurstReceiving, sum.State)

	_, err = s.Run(context.Background(), nil)
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("transport failure should be sticky, got %v", err)
	}
}

func TestRunErrorReply(t *testing.T) {
	testlog.Start(t)
	dev := newFakeDevice()
	s := New(dev, testConfig())
	defer s.Close()

	dev.send("e\nM0000\nF!0003\n")
	sum, err := s.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, protocol.OutcomeError, sum.Outcome)
	assert.True(t, sum.NoData())
}

func TestRunHandlerError(t *testing.T) {
	testlog.Start(t)
	dev := newFakeDevice()
	s := New(dev, testConfig())
	defer s.Close()

	boom := errors.New("disk full")
	dev.send("M0000\nPba8000010u\n*\n\n")
	_, err := s.Run(context.Background(), HandlerFunc(func(context.Context, protocol.Measurement) error {
		return boom
	}))
	if !errors.Is(err, ErrHandler) || !errors.Is(err, boom) {
		t.Fatalf("expected handler error, got %v", err)
	}
}

func TestRunCanceled(t *testing.T) {
	testlog.Start(t)
	dev := newFakeDevice()
	s := New(dev, testConfig())
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Run(ctx, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSendScriptChunked(t *testing.T) {
	testlog.Start(t)
	dev := newFakeDevice()
	cfg := testConfig()
	cfg.WriteChunkSize = BLEWriteChunkSize
	s := New(dev, cfg)
	defer s.Close()

	script := "e\r\nvar c\r\nvar p\r\nset_pgstat_mode 2\r\nmeas_loop_cv p c -500m 500m -500m 10m 100m\r\n  pck_start\r\n  pck_add p\r\n  pck_end\r\nendloop"
	require.NoError(t, s.SendScript(context.Background(), strings.NewReader(script)))

	want := strings.ReplaceAll(script, "\r\n", "\n") + "\n\n"
	assert.Equal(t, want, dev.Written())
	for _, n := range dev.WriteSizes() {
		if n > BLEWriteChunkSize {
			t.Fatalf("write of %d bytes exceeds chunk size", n)
		}
	}
}

func TestSendScriptKeepsClosingBlankLine(t *testing.T) {
	testlog.Start(t)
	dev := newFakeDevice()
	s := New(dev, testConfig())
	defer s.Close()

	require.NoError(t, s.SendScript(context.Background(), strings.NewReader("e\nvar c\n\n")))
	assert.Equal(t, "e\nvar c\n\n", dev.Written())

	err := s.SendScript(context.Background(), strings.NewReader("\n \n"))
	if !errors.Is(err, ErrEmptyScript) {
		t.Fatalf("expected ErrEmptyScript, got %v", err)
	}
}

func TestAbort(t *testing.T) {
	testlog.Start(t)
	dev := newFakeDevice()
	s := New(dev, testConfig())
	defer s.Close()

	require.NoError(t, s.Abort(context.Background()))
	assert.Equal(t, protocol.CommandAbort, dev.Written())
}

func TestMeasure(t *testing.T) {
	testlog.Start(t)
	dev := newFakeDevice()
	dev.onWrite = func(d *fakeDevice, p []byte) {
		if strings.HasSuffix(string(p), "\n\n") {
			d.send("e\nM0000\nPda8000001m\n*\n\n")
		}
	}
	s := New(dev, testConfig())
	defer s.Close()

	var c collector
	sum, err := s.Measure(context.Background(), strings.NewReader("e\nvar p\n"), &c)
	require.NoError(t, err)
	assert.Equal(t, protocol.OutcomeCompleted, sum.Outcome)
	require.Len(t, c.measurements, 1)
	v, ok := c.measurements[0].Potential()
	require.True(t, ok)
	assert.InDelta(t, 1e-3, v, 1e-12)
}

func TestCloseStopsReader(t *testing.T) {
	testlog.Start(t)
	dev := newFakeDevice()
	s := New(dev, testConfig())

	require.NoError(t, s.Close())
	select {
	case <-s.stopped:
	case <-time.After(time.Second):
		t.Fatalf("reader goroutine still blocked after Close")
	}
	if _, err := s.Run(context.Background(), nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestRunSkipsOversizedLine(t *testing.T) {
	testlog.Start(t)
	dev := newFakeDevice()
	cfg := testConfig()
	cfg.MaxLineBytes = 16
	s := New(dev, cfg)
	defer s.Close()

	dev.send("M0000\n", strings.Repeat("?", 64), "\nPba8000010u\n*\n\n")
	sum, err := s.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, protocol.OutcomeCompleted, sum.Outcome)
	assert.Equal(t, 1, sum.Measurements)
	assert.Equal(t, protocol.Counters{Succeeded: 1}, sum.Counters)
}
