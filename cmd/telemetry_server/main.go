package main

import (
	"github.com/Avi18971911/telemetry-core/internal/app"
	"github.com/Avi18971911/telemetry-core/internal/config"
	"log"
)

// @title Telemetry Core API
// @version 1.0
// @description Query API over the traces, logs and metrics collected by telemetry-core.

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	app.New(cfg).Run()
}
