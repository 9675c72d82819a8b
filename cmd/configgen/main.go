package main

import (
	"flag"
	"log"

	"github.com/danmuck/shmframe/internal/config"
)

const defaultPath = "cmd/shmframectl/config.toml"

func main() {
	output := flag.String("output", defaultPath, "output path for config template (.toml or .yaml)")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", defaultPath, "config path for validation")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		cfg, err := config.LoadConsumerConfig(*input)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated consumer config %q at %s", cfg.Name, *input)
		return
	}

	if err := config.WriteTemplate(*output, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s consumer config template to %s", config.FormatForPath(*output), *output)
}
