package main

import (
	"context"
	"flag"
	"log"

	"github.com/tradeforge/settlement/internal/app/bootstrap"
)

func main() {
	configPath := flag.String("config", "configs/default.yaml", "path to the service config file")
	flag.Parse()

	ctx := context.Background()
	rt, err := bootstrap.NewRuntime(ctx, *configPath)
	if err != nil {
		log.Fatalf("bootstrap settlement worker: %v", err)
	}
	if err := rt.RunWorker(ctx); err != nil {
		log.Fatalf("settlement worker exited: %v", err)
	}
}
