package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/danmuck/picoctl/internal/protocol"
)

var ErrNoInstrument = errors.New("session: no instrument answered on any port")

// Opener opens a candidate port by name.
type Opener func(name string) (io.ReadWriteCloser, error)

// ProbeResult is the first port whose version reply named a known device.
type ProbeResult struct {
	Port    string
	Version protocol.VersionInfo
	Session *Session
}

// Probe tries each candidate in order and keeps the first one that answers
// the version command with a known device type. Ports that do not answer
// are retried ProbeAttempts times with backoff, then closed.
func Probe(ctx context.Context, candidates []string, open Opener, cfg Config) (ProbeResult, error) {
	cfg = cfg.WithDefaults()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	var lastErr error

	for _, name := range candidates {
		port, err := open(name)
		if err != nil {
			lastErr = err
			continue
		}
		s := New(port, cfg)
		s.logger = s.logger.With().Str("port", name).Logger()

		for attempt := 1; attempt <= cfg.ProbeAttempts; attempt++ {
			info, err := s.Version(ctx)
			if err == nil && info.Device != protocol.DeviceUnknown {
				return ProbeResult{Port: name, Version: info, Session: s}, nil
			}
			if err == nil {
				err = fmt.Errorf("session: unrecognized device %q", info.Raw)
			}
			lastErr = err
			s.logger.Debug().Err(err).Int("attempt", attempt).Msg("probe failed")
			if ctx.Err() != nil {
				_ = s.Close()
				return ProbeResult{}, ctx.Err()
			}
			if errors.Is(err, ErrClosed) {
				break
			}
			if attempt < cfg.ProbeAttempts {
				if err := sleep(ctx, NextBackoffDelay(cfg.Backoff, attempt, rng)); err != nil {
					_ = s.Close()
					return ProbeResult{}, err
				}
			}
		}
		_ = s.Close()
	}
	if lastErr != nil {
		return ProbeResult{}, fmt.Errorf("%w: %w", ErrNoInstrument, lastErr)
	}
	return ProbeResult{}, ErrNoInstrument
}
