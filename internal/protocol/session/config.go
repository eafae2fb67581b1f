package session

import (
	"time"

	"github.com/danmuck/picoctl/internal/protocol"
	"github.com/danmuck/picoctl/internal/protocol/frame"
)

// BackoffConfig defines retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines session timing and decoding defaults.
type Config struct {
	// ReadTimeout is the longest wait for the next line. Zero waits forever.
	ReadTimeout time.Duration
	// VersionTimeout bounds the version handshake.
	VersionTimeout time.Duration
	// WriteChunkSize caps one transport write; zero writes in one call. BLE
	// links need 20.
	WriteChunkSize int
	// WriteChunkDelay is the pause between chunks.
	WriteChunkDelay time.Duration
	// ReadSize is the transport read buffer size.
	ReadSize int
	// MaxLineBytes bounds an unterminated line; longer ones are dropped.
	MaxLineBytes int
	// LineBuffer is the capacity of the reader to consumer line channel.
	LineBuffer int
	// ProbeAttempts is the number of version requests per candidate port.
	ProbeAttempts int
	Backoff       BackoffConfig
	Decoder       protocol.DecoderConfig
}

// BLEWriteChunkSize is the write limit of the Bluetooth LE serial service.
const BLEWriteChunkSize = 20

// DefaultConfig returns defaults for a USB connected EmStat Pico.
func DefaultConfig() Config {
	return Config{
		ReadTimeout:    30 * time.Second,
		VersionTimeout: 2 * time.Second,
		ReadSize:       256,
		MaxLineBytes:   frame.DefaultMaxLineBytes,
		LineBuffer:     64,
		ProbeAttempts:  2,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     2 * time.Second,
			Jitter:       true,
		},
		Decoder: protocol.DefaultDecoderConfig(),
	}
}

// WithDefaults fills zero sizes from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.VersionTimeout <= 0 {
		c.VersionTimeout = d.VersionTimeout
	}
	if c.ReadSize <= 0 {
		c.ReadSize = d.ReadSize
	}
	if c.MaxLineBytes <= 0 {
		c.MaxLineBytes = d.MaxLineBytes
	}
	if c.LineBuffer <= 0 {
		c.LineBuffer = d.LineBuffer
	}
	if c.ProbeAttempts <= 0 {
		c.ProbeAttempts = d.ProbeAttempts
	}
	if c.WriteChunkSize < 0 {
		c.WriteChunkSize = 0
	}
	return c
}
