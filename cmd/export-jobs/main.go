package main

import (
	"context"
	"log"

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
	if err := cfg.RequireExport(); err != nil {
		log.Fatalf("export config: %v", err)
	}

	h := app.NewJobsExporter(awsCfg, cfg, logging.New(cfg.Logging()))
	lambda.Start(h.Handle)
}
