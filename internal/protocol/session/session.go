package session

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/picoctl/internal/observability"
	"github.com/danmuck/picoctl/internal/protocol"
	"github.com/danmuck/picoctl/internal/protocol/frame"
	"github.com/rs/zerolog"
)

var (
	ErrReadTimeout = errors.New("session: read timeout")
	ErrClosed      = errors.New("session: connection closed")
	ErrHandler     = errors.New("session: measurement handler failed")
	ErrEmptyScript = errors.New("session: empty script")
)

// Handler receives every measurement of a burst, in order.
type Handler interface {
	HandleMeasurement(ctx context.Context, m protocol.Measurement) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, m protocol.Measurement) error

func (f HandlerFunc) HandleMeasurement(ctx context.Context, m protocol.Measurement) error {
	return f(ctx, m)
}

// SummaryHandler is implemented by handlers that also want the burst summary.
type SummaryHandler interface {
	HandleSummary(ctx context.Context, s protocol.Summary) error
}

type lineEvent struct {
	line string
	err  error
}

// Session drives one instrument connection. Lines are framed by a single
// reader goroutine and consumed by one caller at a time; Session methods
// must not be called concurrently, except Close.
type Session struct {
	cfg    Config
	rw     io.ReadWriteCloser
	dec    *protocol.Decoder
	logger zerolog.Logger

	lines     chan lineEvent
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	closeErr  error

	// err is the sticky transport failure seen by the consumer.
	err    error
	device protocol.VersionInfo
}

// New starts the reader goroutine on rw. Close stops it and closes rw, which
// unblocks a pending read.
func New(rw io.ReadWriteCloser, cfg Config) *Session {
	cfg = cfg.WithDefaults()
	s := &Session{
		cfg:     cfg,
		rw:      rw,
		dec:     protocol.NewDecoder(cfg.Decoder),
		logger:  observability.ComponentLogger("session"),
		lines:   make(chan lineEvent, cfg.LineBuffer),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go s.readLoop()
	return s
}

func (s *Session) readLoop() {
	defer close(s.stopped)
	lr := frame.NewLineReader(s.rw, frame.Limits{ReadSize: s.cfg.ReadSize, MaxLineBytes: s.cfg.MaxLineBytes})
	for {
		line, err := lr.ReadLine()
		if err != nil && lr.Pending() != "" {
			s.logger.Debug().Str("pending", lr.Pending()).Msg("unterminated line at end of stream")
		}
		select {
		case s.lines <- lineEvent{line: line, err: err}:
		case <-s.done:
			return
		}
		if err != nil && !errors.Is(err, frame.ErrLineTooLong) {
			return
		}
	}
}

// Close stops the reader and closes the transport.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.closeErr = s.rw.Close()
	})
	return s.closeErr
}

// Device returns the identity learned by the last Version call.
func (s *Session) Device() protocol.VersionInfo {
	return s.device
}

// Counters returns the cumulative decode tallies of this session.
func (s *Session) Counters() protocol.Counters {
	return s.dec.Counters()
}

func (s *Session) deviceLabel() string {
	return s.device.Device.String()
}

func (s *Session) next(ctx context.Context, timeout time.Duration) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	select {
	case <-s.done:
		return "", ErrClosed
	default:
	}
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	for {
		select {
		case ev := <-s.lines:
			if ev.err == nil {
				return ev.line, nil
			}
			if errors.Is(ev.err, frame.ErrLineTooLong) {
				s.logger.Warn().Err(ev.err).Msg("dropped unterminated line")
				observability.RecordTransportError(s.deviceLabel(), transportKind(ev.err))
				continue
			}
			if errors.Is(ev.err, io.EOF) {
				s.err = fmt.Errorf("%w: %w", ErrClosed, io.EOF)
			} else {
				s.err = ev.err
			}
			return "", s.err
		case <-expired:
			return "", fmt.Errorf("%w after %s", ErrReadTimeout, timeout)
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", fmt.Errorf("%w: %w", ErrReadTimeout, ctx.Err())
			}
			return "", ctx.Err()
		case <-s.done:
			return "", ErrClosed
		}
	}
}

func (s *Session) write(ctx context.Context, data []byte) error {
	chunk := s.cfg.WriteChunkSize
	if chunk <= 0 {
		chunk = len(data)
	}
	for off := 0; off < len(data); off += chunk {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(off+chunk, len(data))
		if _, err := s.rw.Write(data[off:end]); err != nil {
			return fmt.Errorf("%w: write: %w", frame.ErrTransport, err)
		}
		if s.cfg.WriteChunkDelay > 0 && end < len(data) {
			if err := sleep(ctx, s.cfg.WriteChunkDelay); err != nil {
				return err
			}
		}
	}
	return nil
}

// Version sends the version command and reads the reply, which may span
// several lines. Lines received before the reply starts are skipped.
func (s *Session) Version(ctx context.Context) (protocol.VersionInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.VersionTimeout)
	defer cancel()

	if err := s.write(ctx, []byte(protocol.CommandVersion)); err != nil {
		return protocol.VersionInfo{}, err
	}
	var lines []string
	for {
		line, err := s.next(ctx, 0)
		if err != nil {
			return protocol.VersionInfo{}, err
		}
		if len(lines) == 0 && protocol.Classify(line) != protocol.PackageDeviceVersion {
			s.logger.Debug().Str("line", line).Msg("skipping line before version reply")
			continue
		}
		lines = append(lines, line)
		if protocol.VersionComplete(line) {
			break
		}
	}
	info, err := protocol.ParseVersion(lines)
	if err != nil {
		return protocol.VersionInfo{}, err
	}
	s.device = info
	s.logger.Info().Str("version", info.Raw).Str("device", info.Device.String()).Msg("instrument identified")
	return info, nil
}

// SendScript uploads a MethodSCRIPT. Line endings are normalized to '\n' and
// a closing empty line is added when missing; the device starts executing on
// that empty line.
func (s *Session) SendScript(ctx context.Context, script io.Reader) error {
	var buf bytes.Buffer
	last := ""
	sc := bufio.NewScanner(script)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		buf.WriteString(line)
		buf.WriteByte('\n')
		last = line
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("session: read script: %w", err)
	}
	if strings.TrimSpace(buf.String()) == "" {
		return ErrEmptyScript
	}
	if strings.TrimSpace(last) != "" {
		buf.WriteByte('\n')
	}
	s.logger.Debug().Int("bytes", buf.Len()).Int("chunk", s.cfg.WriteChunkSize).Msg("sending script")
	return s.write(ctx, buf.Bytes())
}

// Abort asks the device to stop the running script.
func (s *Session) Abort(ctx context.Context) error {
	return s.write(ctx, []byte(protocol.CommandAbort))
}

// Run consumes one burst and hands its measurements to h. It returns when
// the burst ends, the transport fails or idles past ReadTimeout, or h
// fails. The summary is valid in every case.
func (s *Session) Run(ctx context.Context, h Handler) (protocol.Summary, error) {
	burst := protocol.NewBurst(s.dec)
	device := s.deviceLabel()
	logger := s.logger.With().Str("burst", burst.ID()).Logger()

	for {
		line, err := s.next(ctx, s.cfg.ReadTimeout)
		if err != nil {
			sum := burst.Summary()
			observability.RecordTransportError(device, transportKind(err))
			logger.Warn().Err(err).Str("state", sum.State.String()).Msg("burst interrupted")
			return sum, err
		}

		res, done := burst.Feed(line)
		observe(logger, device, res)
		if res.Measurement != nil && h != nil {
			if err := h.HandleMeasurement(ctx, *res.Measurement); err != nil {
				return burst.Summary(), fmt.Errorf("%w: %w", ErrHandler, err)
			}
		}
		if !done {
			continue
		}

		sum := burst.Summary()
		observability.RecordBurst(device, sum.Outcome.String(), sum.Elapsed)
		logger.Info().
			Str("outcome", sum.Outcome.String()).
			Int("succeeded", sum.Counters.Succeeded).
			Int("failed", sum.Counters.Failed).
			Int("measurements", sum.Measurements).
			Dur("elapsed", sum.Elapsed).
			Msg("burst finished")
		if sh, ok := h.(SummaryHandler); ok {
			if err := sh.HandleSummary(ctx, sum); err != nil {
				return sum, fmt.Errorf("%w: %w", ErrHandler, err)
			}
		}
		return sum, nil
	}
}

// Measure uploads script and runs the burst it produces.
func (s *Session) Measure(ctx context.Context, script io.Reader, h Handler) (protocol.Summary, error) {
	if err := s.SendScript(ctx, script); err != nil {
		return protocol.Summary{}, err
	}
	return s.Run(ctx, h)
}

func observe(logger zerolog.Logger, device string, res protocol.LineResult) {
	switch res.Type {
	case protocol.PackageMeasurement:
		observability.RecordPackage(device, res.Type.String(), res.Complete())
		for _, f := range res.Fields {
			if f.OK() {
				continue
			}
			reason := protocol.Reason(f.Err)
			observability.RecordFieldFailure(device, reason)
			logger.Warn().
				Int("field", f.Index).
				Str("raw", f.Raw).
				Str("reason", reason).
				Err(f.Err).
				Msg("field decode failed")
		}
		if len(res.Fields) == 0 && res.Err != nil {
			logger.Warn().Str("line", res.Line).Err(res.Err).Msg("package decode failed")
		}
	case protocol.PackageUnknown:
		observability.RecordPackage(device, res.Type.String(), false)
		logger.Warn().Str("line", res.Line).Msg("unknown package")
	case protocol.PackageText:
		logger.Info().Str("text", res.Line[1:]).Msg("device text")
	case protocol.PackageError:
		reply, _ := protocol.ParseErrorReply(res.Line)
		logger.Warn().Str("reply", reply.String()).Msg("device error")
	default:
		logger.Debug().Str("type", res.Type.String()).Str("line", res.Line).Msg("package")
	}
}

func transportKind(err error) string {
	switch {
	case errors.Is(err, ErrReadTimeout):
		return "read_timeout"
	case errors.Is(err, ErrClosed):
		return "closed"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, frame.ErrTransport):
		return "read_failed"
	case errors.Is(err, frame.ErrLineTooLong):
		return "line_too_long"
	}
	return "other"
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
