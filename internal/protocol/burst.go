package protocol

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BurstState is the position in one response burst.
type BurstState uint8

const (
	BurstAwaitingStart BurstState = iota
	BurstReceiving
	BurstIdle
)

func (s BurstState) String() string {
	switch s {
	case BurstAwaitingStart:
		return "awaiting_start"
	case BurstReceiving:
		return "receiving"
	case BurstIdle:
		return "idle"
	}
	return fmt.Sprintf("burst_state(%d)", uint8(s))
}

// MarshalText renders the state name.
func (s BurstState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *BurstState) UnmarshalText(b []byte) error {
	for c := BurstAwaitingStart; c <= BurstIdle; c++ {
		if c.String() == string(b) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("protocol: unknown burst state %q", b)
}

// Outcome is how a burst ended.
type Outcome uint8

const (
	// OutcomePending means no terminal marker was seen yet.
	OutcomePending Outcome = iota
	OutcomeCompleted
	OutcomeAborted
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeCompleted:
		return "completed"
	case OutcomeAborted:
		return "aborted"
	case OutcomeError:
		return "error"
	}
	return fmt.Sprintf("outcome(%d)", uint8(o))
}

// MarshalText renders the outcome name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText parses an outcome name.
func (o *Outcome) UnmarshalText(b []byte) error {
	for c := OutcomePending; c <= OutcomeError; c++ {
		if c.String() == string(b) {
			*o = c
			return nil
		}
	}
	return fmt.Errorf("protocol: unknown outcome %q", b)
}

// Summary reports one burst to the caller.
type Summary struct {
	ID           string        `json:"id" toml:"id"`
	Outcome      Outcome       `json:"outcome" toml:"outcome"`
	State        BurstState    `json:"state" toml:"state"`
	Counters     Counters      `json:"counters" toml:"counters"`
	Measurements int           `json:"measurements" toml:"measurements"`
	Curves       int           `json:"curves" toml:"curves"`
	Started      time.Time     `json:"started" toml:"started"`
	Elapsed      time.Duration `json:"elapsed" toml:"elapsed"`
	// ErrorCode is set when the burst ended with an error reply.
	ErrorCode string `json:"error_code,omitempty" toml:"error_code,omitempty"`
}

// NoData reports whether the burst ended with the "no data" error reply.
func (s Summary) NoData() bool {
	return s.Outcome == OutcomeError && s.ErrorCode == ErrorCodeNoData
}

// Burst tracks one response burst, from the start marker to the empty line
// that closes it, on top of a Decoder.
type Burst struct {
	id      uuid.UUID
	dec     *Decoder
	base    Counters
	now     func() time.Time
	state   BurstState
	outcome Outcome
	errCode string

	curve        int
	lastCurve    int
	curves       int
	measurements int

	started time.Time
	ended   time.Time
}

// NewBurst starts tracking a burst. Tallies in the summary are relative to
// the decoder's counters at this point.
func NewBurst(dec *Decoder) *Burst {
	return newBurst(dec, time.Now)
}

func newBurst(dec *Decoder, now func() time.Time) *Burst {
	return &Burst{
		id:        uuid.New(),
		dec:       dec,
		base:      dec.Counters(),
		now:       now,
		lastCurve: -1,
	}
}

// ID returns the burst identifier.
func (b *Burst) ID() string {
	return b.id.String()
}

// State returns the current state.
func (b *Burst) State() BurstState {
	return b.state
}

// Outcome returns the outcome so far.
func (b *Burst) Outcome() Outcome {
	return b.outcome
}

// Feed decodes one line and advances the state machine. done is true once
// the burst is over: on the empty line, an abort, or an error reply.
func (b *Burst) Feed(line string) (LineResult, bool) {
	if b.started.IsZero() {
		b.started = b.now()
	}
	res := b.dec.DecodeLine(line)

	switch res.Type {
	case PackageStartMeasuring:
		if b.state == BurstAwaitingStart {
			b.started = b.now()
		}
		b.state = BurstReceiving
		b.outcome = OutcomePending
	case PackageMeasurement:
		if res.Measurement != nil {
			res.Measurement.Curve = b.curve
			b.measurements++
			if b.lastCurve != b.curve {
				b.curves++
				b.lastCurve = b.curve
			}
		}
	case PackageLoopEnd, PackageScanEnd:
		b.curve++
	case PackageEndMeasuring:
		b.curve++
		b.finish(OutcomeCompleted)
	case PackageAborted:
		b.finish(OutcomeAborted)
		return res, true
	case PackageError:
		if reply, ok := ParseErrorReply(res.Line); ok {
			b.errCode = reply.Code
		}
		b.finish(OutcomeError)
		return res, true
	case PackageEmptyLine:
		if b.state != BurstIdle {
			b.state = BurstIdle
			b.ended = b.now()
		}
		return res, true
	}
	return res, false
}

func (b *Burst) finish(o Outcome) {
	b.state = BurstIdle
	b.outcome = o
	b.ended = b.now()
}

// Summary reports the burst so far. Elapsed runs to the terminal marker, or
// to now while the burst is still open.
func (b *Burst) Summary() Summary {
	c := b.dec.Counters()
	end := b.ended
	if end.IsZero() || b.state != BurstIdle {
		end = b.now()
	}
	var elapsed time.Duration
	if !b.started.IsZero() {
		elapsed = end.Sub(b.started)
	}
	return Summary{
		ID:      b.ID(),
		Outcome: b.outcome,
		State:   b.state,
		Counters: Counters{
			Succeeded: c.Succeeded - b.base.Succeeded,
			Failed:    c.Failed - b.base.Failed,
		},
		Measurements: b.measurements,
		Curves:       b.curves,
		Started:      b.started,
		Elapsed:      elapsed,
		ErrorCode:    b.errCode,
	}
}
