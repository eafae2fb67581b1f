package main

import (
	"flag"
	"log"

	"github.com/danmuck/picoctl/internal/config"
)

func main() {
	output := flag.String("output", "cmd/picoctl/config.toml", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "cmd/picoctl/config.toml", "config path for validation")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		cfg, err := config.Load(*input)
		if err != nil {
			log.Fatal(err)
		}
		port := cfg.Device.Port
		if port == "" {
			port = "probe"
		}
		log.Printf("Validated picoctl config at %s (port=%s encoding=%s tally=%s)",
			*input, port, cfg.Protocol.Encoding, cfg.Protocol.Tally)
		return
	}

	if err := config.WriteTemplate(*output, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote picoctl config template to %s", *output)
}
