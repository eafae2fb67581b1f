// Package frame assembles newline terminated response lines from an
// arbitrarily chunked byte stream.
package frame

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
)

var (
	// ErrTransport marks a failure of the underlying byte source. Framer
	// itself never fails.
	ErrTransport = errors.New("frame: transport read failed")
	// ErrLineTooLong reports bytes dropped because no terminator arrived
	// within Limits.MaxLineBytes. Reading may continue after it.
	ErrLineTooLong = errors.New("frame: line too long")
)

const (
	// DefaultReadSize is the chunk size LineReader asks the transport for.
	DefaultReadSize = 256
	// DefaultMaxLineBytes is far above the longest MethodSCRIPT reply line.
	DefaultMaxLineBytes = 4096
)

// Limits constrains LineReader memory use. Zero fields select defaults.
type Limits struct {
	ReadSize     int
	MaxLineBytes int
}

func DefaultLimits() Limits {
	return Limits{
		ReadSize:     DefaultReadSize,
		MaxLineBytes: DefaultMaxLineBytes,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.ReadSize <= 0 {
		l.ReadSize = d.ReadSize
	}
	if l.MaxLineBytes <= 0 {
		l.MaxLineBytes = d.MaxLineBytes
	}
	return l
}

// Framer accumulates chunks and splits them on '\n'. The zero value is ready
// to use. Lines are returned without their terminator.
type Framer struct {
	buf []byte
}

// Feed appends a chunk and returns every line it completed, in order.
func (f *Framer) Feed(chunk []byte) []string {
	f.buf = append(f.buf, chunk...)
	var lines []string
	for {
		line, ok := f.Next()
		if !ok {
			return lines
		}
		lines = append(lines, line)
	}
}

// Next removes and returns the first complete line, if any.
func (f *Framer) Next() (string, bool) {
	i := bytes.IndexByte(f.buf, '\n')
	if i < 0 {
		return "", false
	}
	line := string(f.buf[:i])
	n := copy(f.buf, f.buf[i+1:])
	f.buf = f.buf[:n]
	return line, true
}

// Pending returns the bytes of an unterminated trailing line.
func (f *Framer) Pending() string {
	return string(f.buf)
}

// Buffered is the number of bytes waiting for a terminator.
func (f *Framer) Buffered() int {
	return len(f.buf)
}

// Reset drops any buffered bytes.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
}

// LineReader pulls chunks from a transport until a line is available.
type LineReader struct {
	r      io.Reader
	limits Limits
	framer Framer
	chunk  []byte
	queue  []string

	// skipping drops the tail of an oversized line up to its terminator.
	skipping bool
	dropped  int
}

// NewLineReader wraps r.
func NewLineReader(r io.Reader, limits Limits) *LineReader {
	limits = limits.withDefaults()
	return &LineReader{r: r, limits: limits, chunk: make([]byte, limits.ReadSize)}
}

// ReadLine blocks until one line is available. A clean end of stream returns
// io.EOF; other transport failures wrap ErrTransport. A line exceeding
// MaxLineBytes is dropped and reported once with ErrLineTooLong.
func (lr *LineReader) ReadLine() (string, error) {
	for {
		if lr.dropped > 0 && !lr.skipping {
			n := lr.dropped
			lr.dropped = 0
			return "", fmt.Errorf("%w: dropped %d bytes", ErrLineTooLong, n)
		}
		if len(lr.queue) > 0 {
			line := lr.queue[0]
			lr.queue = lr.queue[1:]
			return line, nil
		}
		n, err := lr.r.Read(lr.chunk)
		if n > 0 {
			lr.feed(lr.chunk[:n])
		}
		if err != nil && len(lr.queue) == 0 {
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", fmt.Errorf("%w: %w", ErrTransport, err)
		}
	}
}

func (lr *LineReader) feed(chunk []byte) {
	lines := lr.framer.Feed(chunk)
	if lr.skipping && len(lines) > 0 {
		lr.dropped += len(lines[0]) + 1
		lines = lines[1:]
		lr.skipping = false
	}
	lr.queue = append(lr.queue, lines...)
	if b := lr.framer.Buffered(); b > lr.limits.MaxLineBytes {
		lr.dropped += b
		lr.framer.Reset()
		lr.skipping = true
	}
}

// Pending returns the unterminated remainder seen so far.
func (lr *LineReader) Pending() string {
	return lr.framer.Pending()
}

// All yields lines until the transport ends. ErrLineTooLong is yielded and
// reading continues; any other error is yielded once and ends the sequence.
// io.EOF is not yielded.
func (lr *LineReader) All() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for {
			line, err := lr.ReadLine()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				if !yield("", err) || !errors.Is(err, ErrLineTooLong) {
					return
				}
				continue
			}
			if !yield(line, nil) {
				return
			}
		}
	}
}
