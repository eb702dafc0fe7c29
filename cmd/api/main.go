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
		log.Fatalf("bootstrap settlement api: %v", err)
	}
	if err := rt.RunAPI(ctx); err != nil {
		log.Fatalf("settlement api exited: %v", err)
	}
}
