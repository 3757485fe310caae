package main

import (
	"context"
	"log"
	"log/slog"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/jschaub30/aws-demos/internal/app"
	"github.com/jschaub30/aws-demos/internal/config"
	"github.com/jschaub30/aws-demos/internal/logging"
)

func main() {
	ctx := context.Background()

	awsCfg, cfg, err := config.LoadAWS(ctx)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Logging())

	// Missing env is reported per request as a 500 response.
	if err := cfg.RequireUpload(); err != nil {
		logger.Warn("incomplete configuration", slog.Any("error", err))
	}

	h := app.NewPresignHandler(awsCfg, cfg, logger)
	lambda.Start(h.Handle)
}
