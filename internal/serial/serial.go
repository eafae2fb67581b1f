// Package serial opens the instrument's serial (USB CDC) port.
package serial

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tarm/serial"
)

// DefaultBaud is the EmStat Pico baud rate.
const DefaultBaud = 230400

var ErrNoDevice = errors.New("serial: device path is required")

// Port is an open serial connection.
type Port interface {
	io.ReadWriteCloser

	// Flush drops unread input and unsent output.
	Flush() error
}

// Config holds serial port settings.
type Config struct {
	// Device path, e.g. "/dev/ttyUSB0" or "COM3".
	Device string
	Baud   int
	// ReadTimeout bounds a single read. Zero blocks until data arrives; a
	// read that times out returns io.EOF from the driver, so session idle
	// timeouts are the better tool.
	ReadTimeout time.Duration
}

// DefaultConfig returns settings for an EmStat Pico on device.
func DefaultConfig(device string) Config {
	return Config{
		Device: device,
		Baud:   DefaultBaud,
	}
}

// NativePort wraps the tarm/serial implementation.
type NativePort struct {
	port *serial.Port
	cfg  Config
}

// Open opens a native serial port.
func Open(cfg Config) (Port, error) {
	if strings.TrimSpace(cfg.Device) == "" {
		return nil, ErrNoDevice
	}
	if cfg.Baud <= 0 {
		cfg.Baud = DefaultBaud
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", cfg.Device, err)
	}
	return &NativePort{port: port, cfg: cfg}, nil
}

// Name returns the device path.
func (p *NativePort) Name() string {
	return p.cfg.Device
}

func (p *NativePort) Read(b []byte) (int, error) {
	return p.port.Read(b)
}

func (p *NativePort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

func (p *NativePort) Close() error {
	if p.port != nil {
		return p.port.Close()
	}
	return nil
}

func (p *NativePort) Flush() error {
	return p.port.Flush()
}

// DefaultPatterns are the device globs scanned when no port is configured.
var DefaultPatterns = []string{
	"/dev/ttyUSB*",
	"/dev/ttyACM*",
	"/dev/tty.usbserial*",
	"/dev/cu.usbserial*",
}

// Candidates lists device paths matching patterns, sorted and deduplicated.
// Nil patterns select DefaultPatterns.
func Candidates(patterns []string) ([]string, error) {
	if patterns == nil {
		patterns = DefaultPatterns
	}
	seen := make(map[string]struct{})
	var out []string
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("serial: bad pattern %q: %w", p, err)
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out, nil
}
