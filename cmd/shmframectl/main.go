package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danmuck/shmframe/internal/config"
	logs "github.com/danmuck/shmframe/internal/logging"
	"github.com/danmuck/shmframe/internal/service"
)

func main() {
	path := flag.String("config", "cmd/shmframectl/config.toml", "consumer config path (.toml or .yaml)")
	flag.Parse()

	cfg, err := config.LoadConsumerConfig(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "shmframectl: %v\n", err)
		os.Exit(1)
	}
	logs.ConfigureWith(logs.ProfileRuntime, cfg.Log.Level, cfg.Log.Format)

	svcCfg, err := service.ServiceConfigFrom(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "shmframectl: %v\n", err)
		os.Exit(1)
	}
	if err := service.NewService(svcCfg).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "shmframectl: %v\n", err)
		os.Exit(1)
	}
}
