package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/danmuck/picoctl/internal/config"
	"github.com/danmuck/picoctl/internal/monitor"
	"github.com/danmuck/picoctl/internal/protocol"
	"github.com/danmuck/picoctl/internal/protocol/session"
	"github.com/danmuck/picoctl/internal/serial"
	"github.com/danmuck/picoctl/internal/sink"
	"github.com/rs/zerolog"
)

// logger is set in main once logging is configured.
var logger zerolog.Logger

// run connects, uploads the script, and drives one burst into the sinks.
func run(ctx context.Context, cfg config.Config) (protocol.Summary, error) {
	var store *monitor.Store
	if cfg.Monitor.Enabled {
		store = monitor.NewStore(cfg.Monitor.Capacity)
		srv := monitor.New("picoctl", cfg.Monitor.Addr, cfg.Monitor.CorsOrigins, store)
		go func() {
			if err := srv.Serve(ctx); err != nil {
				logger.Error().Err(err).Msg("monitor stopped")
			}
		}()
	}

	s, port, err := connect(ctx, cfg, func(name string) (io.ReadWriteCloser, error) {
		return serial.Open(cfg.SerialConfig(name))
	})
	if err != nil {
		return protocol.Summary{}, err
	}
	defer s.Close()
	if store != nil {
		store.SetDevice(s.Device(), port)
	}

	sinks, err := buildSinks(ctx, cfg, s.Device(), port, store)
	if err != nil {
		return protocol.Summary{}, err
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			logger.Error().Err(err).Msg("closing sinks")
		}
	}()

	return measure(ctx, s, cfg.Output.Script, sinks)
}

// connect opens the configured port, or probes the configured patterns when
// no port is set.
func connect(ctx context.Context, cfg config.Config, open session.Opener) (*session.Session, string, error) {
	scfg := cfg.SessionConfig()
	if cfg.Device.Port != "" {
		port, err := open(cfg.Device.Port)
		if err != nil {
			return nil, "", err
		}
		s := session.New(port, scfg)
		if _, err := s.Version(ctx); err != nil {
			_ = s.Close()
			return nil, "", fmt.Errorf("identify %s: %w", cfg.Device.Port, err)
		}
		return s, cfg.Device.Port, nil
	}

	candidates, err := serial.Candidates(cfg.Device.ProbePatterns)
	if err != nil {
		return nil, "", err
	}
	logger.Info().Strs("candidates", candidates).Msg("probing serial ports")
	res, err := session.Probe(ctx, candidates, open, scfg)
	if err != nil {
		return nil, "", err
	}
	return res.Session, res.Port, nil
}

func buildSinks(ctx context.Context, cfg config.Config, info protocol.VersionInfo, port string, store *monitor.Store) (*sink.Multi, error) {
	multi := sink.NewMulti(logger)
	if cfg.Output.LogMeasurements {
		multi.Add("log", sink.NewLogSink(logger, info.Device))
	}
	if cfg.Output.CSV != "" {
		csvSink, err := sink.CreateCSVFile(cfg.Output.CSV)
		if err != nil {
			return nil, err
		}
		multi.Add("csv", csvSink)
	}
	if cfg.Output.ReportDir != "" {
		report, err := sink.NewReportSink(cfg.Output.ReportDir, info, port)
		if err != nil {
			_ = multi.Close()
			return nil, err
		}
		multi.Add("report", report)
	}
	if cfg.Redis.Enabled {
		rs, err := sink.DialRedis(ctx, cfg.RedisSinkConfig(), info.Device.String(), logger)
		if err != nil {
			logger.Warn().Err(err).Msg("redis sink disabled")
		} else {
			multi.AddBestEffort("redis", rs)
		}
	}
	if store != nil {
		multi.Add("monitor", store)
	}
	return multi, nil
}

// measure uploads the script and runs its burst. An interrupted run asks the
// device to abort so it stops measuring.
func measure(ctx context.Context, s *session.Session, scriptPath string, h session.Handler) (protocol.Summary, error) {
	f, err := os.Open(scriptPath)
	if err != nil {
		return protocol.Summary{}, fmt.Errorf("open script: %w", err)
	}
	defer f.Close()

	sum, err := s.Measure(ctx, f, h)
	if errors.Is(err, context.Canceled) || errors.Is(err, session.ErrHandler) {
		abortCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if aerr := s.Abort(abortCtx); aerr != nil {
			logger.Warn().Err(aerr).Msg("abort failed")
		}
	}
	return sum, err
}
