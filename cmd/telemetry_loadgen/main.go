package main

import (
	"context"
	"github.com/Avi18971911/telemetry-core/internal/loadgen"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"log"
	"os/signal"
	"syscall"
	"time"
)

type loadgenConfig struct {
	OTLPTarget  string        `envconfig:"LOADGEN_OTLP_TARGET" default:"localhost:4317"`
	QueryURL    string        `envconfig:"LOADGEN_QUERY_URL" default:"http://localhost:8081"`
	TenantID    string        `envconfig:"LOADGEN_TENANT_ID" default:"demo"`
	ServiceName string        `envconfig:"LOADGEN_SERVICE_NAME" default:"fake-service"`
	Users       int           `envconfig:"LOADGEN_USERS" default:"5"`
	Interval    time.Duration `envconfig:"LOADGEN_INTERVAL" default:"2s"`
	Duration    time.Duration `envconfig:"LOADGEN_DURATION" default:"1m"`
	ErrorRate   float64       `envconfig:"LOADGEN_ERROR_RATE" default:"0.1"`
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	var cfg loadgenConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	conn, err := grpc.NewClient(cfg.OTLPTarget, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		logger.Fatal("Failed to connect to OTLP receiver", zap.Error(err))
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	g := loadgen.NewGenerator(conn, loadgen.Config{
		QueryURL:    cfg.QueryURL,
		TenantID:    cfg.TenantID,
		ServiceName: cfg.ServiceName,
		Users:       cfg.Users,
		Interval:    cfg.Interval,
		ErrorRate:   cfg.ErrorRate,
	}, logger)

	logger.Info("Starting load generation", zap.Int("users", cfg.Users), zap.Duration("duration", cfg.Duration))
	res := g.Run(ctx)
	logger.Info(
		"Load generation completed",
		zap.Int64("iterations", res.Iterations),
		zap.Int64("failures", res.Failures),
		zap.Duration("avg_query_latency", res.AvgQueryLatency),
	)
}
