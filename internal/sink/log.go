package sink

import (
	"context"

	"github.com/danmuck/picoctl/internal/protocol"
	"github.com/rs/zerolog"
)

// LogSink writes measurements at debug level and summaries at info level.
type LogSink struct {
	logger zerolog.Logger
	device protocol.DeviceType
}

func NewLogSink(logger zerolog.Logger, device protocol.DeviceType) *LogSink {
	return &LogSink{logger: logger, device: device}
}

func (s *LogSink) HandleMeasurement(_ context.Context, m protocol.Measurement) error {
	event := s.logger.Debug()
	if !event.Enabled() {
		return nil
	}
	readings := zerolog.Dict()
	for _, r := range m.Readings {
		readings.Float64(r.VarType.Code(), r.Value)
		if r.Metadata.HasStatus && r.Metadata.Status != protocol.StatusOK {
			readings.Str(r.VarType.Code()+"_status", r.Metadata.Status.String())
		}
		if r.Metadata.HasRange {
			readings.Str(r.VarType.Code()+"_range", protocol.RangeName(s.device, r.VarType, r.Metadata.Range))
		}
	}
	event.
		Int("index", m.Index).
		Int("curve", m.Curve).
		Dict("readings", readings).
		Msg("measurement")
	return nil
}

func (s *LogSink) HandleSummary(_ context.Context, sum protocol.Summary) error {
	event := s.logger.Info()
	if sum.Outcome != protocol.OutcomeCompleted {
		event = s.logger.Warn()
	}
	event.
		Str("burst", sum.ID).
		Str("outcome", sum.Outcome.String()).
		Int("succeeded", sum.Counters.Succeeded).
		Int("failed", sum.Counters.Failed).
		Int("measurements", sum.Measurements).
		Int("curves", sum.Curves).
		Dur("elapsed", sum.Elapsed).
		Str("error_code", sum.ErrorCode).
		Msg("burst summary")
	return nil
}

func (s *LogSink) Close() error {
	return nil
}
