// Command lambda serves the HTTP API behind an API Gateway v2 (HTTP API)
// integration. Storage defaults to DynamoDB when STORAGE_DRIVER is unset.
package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/charmbracelet/log"

	"github.com/ewilliams-labs/aidj/internal/app"
	"github.com/ewilliams-labs/aidj/internal/config"
	"github.com/ewilliams-labs/aidj/internal/logging"
)

func main() {
	cfg, err := config.Load(os.Getenv("AIDJ_CONFIG"))
	if err != nil {
		log.Fatal("failed to load config", "err", err)
	}
	if _, ok := os.LookupEnv("STORAGE_DRIVER"); !ok {
		cfg.Storage.Driver = config.DriverDynamoDB
	}
	// CloudWatch indexes JSON lines.
	if _, ok := os.LookupEnv("AIDJ_LOG_FORMAT"); !ok {
		cfg.Log.Format = "json"
	}
	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	// Built once per container and reused across invocations.
	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize", "err", err)
	}

	adapter := httpadapter.NewV2(a.Handler())
	lambda.Start(adapter.ProxyWithContextV2)
}
