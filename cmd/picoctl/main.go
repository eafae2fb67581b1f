package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/picoctl/internal/config"
	"github.com/danmuck/picoctl/internal/logging"
	"github.com/danmuck/picoctl/internal/observability"
	"github.com/danmuck/picoctl/internal/protocol"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "cmd/picoctl/config.toml", "picoctl config path")
	port := flag.String("port", "", "serial device, overrides device.port")
	script := flag.String("script", "", "MethodSCRIPT file, overrides output.script")
	csvPath := flag.String("csv", "", "CSV output path, overrides output.csv")
	flag.Parse()

	logging.ConfigureRuntime()
	observability.RegisterMetrics()
	logger = observability.ComponentLogger("picoctl")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load picoctl config")
	}
	log.Info().Str("path", *configPath).Msg("loaded picoctl config")
	if *port != "" {
		cfg.Device.Port = *port
	}
	if *script != "" {
		cfg.Output.Script = *script
	}
	if *csvPath != "" {
		cfg.Output.CSV = *csvPath
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sum, err := run(ctx, cfg)
	printSummary(sum)
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "picoctl: %v\n", err)
		os.Exit(1)
	}
	if sum.Outcome == protocol.OutcomeError {
		os.Exit(2)
	}
}

func printSummary(sum protocol.Summary) {
	if sum.ID == "" {
		return
	}
	fmt.Printf("burst %s: %s\n", sum.ID, sum.Outcome)
	if sum.ErrorCode != "" {
		fmt.Printf("device error: %s\n", protocol.ErrorReply{Code: sum.ErrorCode})
	}
	fmt.Printf("%d data points parsed, %d failed, %d curves, elapsed %s\n",
		sum.Counters.Succeeded, sum.Counters.Failed, sum.Curves, sum.Elapsed)
}
