package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/danmuck/picoctl/internal/protocol"
	"github.com/rs/zerolog"
)

// Sink consumes one session's measurements and burst summaries. The session
// calls it from a single goroutine.
type Sink interface {
	HandleMeasurement(ctx context.Context, m protocol.Measurement) error
	HandleSummary(ctx context.Context, s protocol.Summary) error
	Close() error
}

type member struct {
	name       string
	sink       Sink
	bestEffort bool
}

// Multi fans out to several sinks. Failures of best-effort members are
// logged and dropped; other failures are returned joined.
type Multi struct {
	members []member
	logger  zerolog.Logger
}

func NewMulti(logger zerolog.Logger) *Multi {
	return &Multi{logger: logger}
}

// Add registers a sink whose errors stop the run.
func (m *Multi) Add(name string, s Sink) *Multi {
	m.members = append(m.members, member{name: name, sink: s})
	return m
}

// AddBestEffort registers a sink whose errors are only logged.
func (m *Multi) AddBestEffort(name string, s Sink) *Multi {
	m.members = append(m.members, member{name: name, sink: s, bestEffort: true})
	return m
}

// Len is the number of registered sinks.
func (m *Multi) Len() int {
	return len(m.members)
}

func (m *Multi) each(op string, fn func(Sink) error) error {
	var errs []error
	for _, mem := range m.members {
		err := fn(mem.sink)
		if err == nil {
			continue
		}
		if mem.bestEffort {
			m.logger.Warn().Err(err).Str("sink", mem.name).Str("op", op).Msg("sink failed")
			continue
		}
		errs = append(errs, fmt.Errorf("sink %s: %w", mem.name, err))
	}
	return errors.Join(errs...)
}

func (m *Multi) HandleMeasurement(ctx context.Context, meas protocol.Measurement) error {
	return m.each("measurement", func(s Sink) error {
		return s.HandleMeasurement(ctx, meas)
	})
}

func (m *Multi) HandleSummary(ctx context.Context, sum protocol.Summary) error {
	return m.each("summary", func(s Sink) error {
		return s.HandleSummary(ctx, sum)
	})
}

// Close closes every member, best-effort ones included, and returns the
// failures of required ones.
func (m *Multi) Close() error {
	return m.each("close", func(s Sink) error {
		return s.Close()
	})
}
