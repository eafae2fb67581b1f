package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/danmuck/picoctl/internal/logging"
	"github.com/danmuck/picoctl/internal/protocol"
	"github.com/danmuck/picoctl/internal/protocol/frame"
	"github.com/danmuck/picoctl/internal/sink"
	"github.com/rs/zerolog/log"
)

func main() {
	input := flag.String("in", "-", "captured response file, - for stdin")
	encoding := flag.String("encoding", "methodscript", "value encoding: methodscript|legacy|auto")
	tally := flag.String("tally", "per_line", "tally policy: per_line|per_field")
	flag.Parse()

	logging.ConfigureRuntime()

	if err := run(*input, *encoding, *tally, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "mscriptdump: %v\n", err)
		os.Exit(1)
	}
}

// run decodes the capture at input ("-" for stdin) to CSV on stdout and
// prints one summary line per burst to stderr.
func run(input, encoding, tally string, stdout, stderr io.Writer) error {
	enc, err := protocol.ParseEncoding(encoding)
	if err != nil {
		return fmt.Errorf("bad -encoding: %w", err)
	}
	pol, err := protocol.ParseTally(tally)
	if err != nil {
		return fmt.Errorf("bad -tally: %w", err)
	}

	var r io.Reader = os.Stdin
	if input != "-" {
		f, err := os.Open(input)
		if err != nil {
			return fmt.Errorf("open capture: %w", err)
		}
		defer f.Close()
		r = f
	}

	out := sink.NewCSVSink(stdout)
	sums, err := dump(context.Background(), r, protocol.DecoderConfig{Encoding: enc, Tally: pol}, out)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	for _, s := range sums {
		fmt.Fprintf(stderr, "burst %s: %s, %d parsed, %d failed, %d measurements, %d curves\n",
			s.ID, s.Outcome, s.Counters.Succeeded, s.Counters.Failed, s.Measurements, s.Curves)
	}
	return err
}

// dump decodes every burst in a capture. A trailing burst that never reached
// a terminal marker is reported with its pending outcome and an error; one
// that ended with '*' but lacks the closing empty line is complete.
func dump(ctx context.Context, r io.Reader, cfg protocol.DecoderConfig, out sink.Sink) ([]protocol.Summary, error) {
	dec := protocol.NewDecoder(cfg)
	lr := frame.NewLineReader(r, frame.Limits{ReadSize: 4096})
	burst := protocol.NewBurst(dec)
	lines := 0
	var sums []protocol.Summary

	for line, err := range lr.All() {
		if errors.Is(err, frame.ErrLineTooLong) {
			log.Warn().Int("line", lines+1).Err(err).Msg("skipped line")
			continue
		}
		if err != nil {
			return sums, err
		}
		lines++
		res, done := burst.Feed(line)
		if res.Err != nil {
			log.Warn().Int("line", lines).Str("reason", protocol.Reason(res.Err)).Err(res.Err).Msg("decode failed")
		}
		if res.Measurement != nil {
			if err := out.HandleMeasurement(ctx, *res.Measurement); err != nil {
				return sums, err
			}
		}
		if done {
			sum := burst.Summary()
			if err := out.HandleSummary(ctx, sum); err != nil {
				return sums, err
			}
			sums = append(sums, sum)
			burst = protocol.NewBurst(dec)
		}
	}
	if pending := lr.Pending(); pending != "" {
		log.Warn().Str("pending", pending).Msg("capture ends inside a line")
	}
	if burst.State() == protocol.BurstAwaitingStart {
		return sums, nil
	}
	sum := burst.Summary()
	sums = append(sums, sum)
	err := out.HandleSummary(ctx, sum)
	if sum.Outcome == protocol.OutcomePending {
		err = errors.Join(err, fmt.Errorf("capture ends with burst %s", sum.State))
	}
	return sums, err
}
