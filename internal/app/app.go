// Package app builds the handlers for each function from AWS config. Clients
// are created once per cold start and reused across invocations.
package app

import (
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	bedrockruntime "github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/jschaub30/aws-demos/internal/agent"
	"github.com/jschaub30/aws-demos/internal/config"
	"github.com/jschaub30/aws-demos/internal/contenttype"
	"github.com/jschaub30/aws-demos/internal/devserver"
	"github.com/jschaub30/aws-demos/internal/etl"
	"github.com/jschaub30/aws-demos/internal/handlers"
	"github.com/jschaub30/aws-demos/internal/jobs"
	"github.com/jschaub30/aws-demos/internal/notify"
	"github.com/jschaub30/aws-demos/internal/upload"
)

func NewInitiator(awsCfg aws.Config, cfg *config.Config, log *slog.Logger) *upload.Initiator {
	s3c := s3.NewFromConfig(awsCfg)
	httpClient := &http.Client{}
	return upload.NewInitiator(upload.Options{
		Bucket:     cfg.BucketName,
		Store:      jobs.NewStore(dynamodb.NewFromConfig(awsCfg), cfg.TableName, log),
		Presigner:  s3.NewPresignClient(s3c),
		Objects:    s3c,
		Resolver:   contenttype.NewResolver(httpClient, log),
		HTTPClient: httpClient,
		Logger:     log,
	})
}

func NewStartJobHandler(awsCfg aws.Config, cfg *config.Config, log *slog.Logger) *handlers.UploadHandler {
	return handlers.NewStartJobHandler(cfg, NewInitiator(awsCfg, cfg, log), log)
}

func NewPresignHandler(awsCfg aws.Config, cfg *config.Config, log *slog.Logger) *handlers.UploadHandler {
	return handlers.NewPresignHandler(cfg, NewInitiator(awsCfg, cfg, log), log)
}

func NewAskHandler(awsCfg aws.Config, cfg *config.Config, log *slog.Logger) *handlers.AskHandler {
	var cache *agent.AnswerCache
	if cfg.AgentCacheTable != "" {
		cache = agent.NewAnswerCache(dynamodb.NewFromConfig(awsCfg), cfg.AgentCacheTable, cfg.AgentCacheTTL)
	}
	a := agent.NewBedrock(bedrockruntime.NewFromConfig(awsCfg), agent.BedrockOptions{
		ModelID:      cfg.ModelID,
		SystemPrompt: cfg.SystemPrompt,
		Cache:        cache,
		Logger:       log,
	})
	return handlers.NewAskHandler(cfg, a, log)
}

func NewContactHandler(awsCfg aws.Config, cfg *config.Config, log *slog.Logger) *handlers.ContactHandler {
	n := notify.NewSNSNotifier(sns.NewFromConfig(awsCfg), cfg.DeliverTo, log)
	return handlers.NewContactHandler(cfg, n, log)
}

func NewJobsExporter(awsCfg aws.Config, cfg *config.Config, log *slog.Logger) *etl.JobsExporter {
	return etl.NewJobsExporter(etl.ExportClients{
		DDB:    dynamodb.NewFromConfig(awsCfg),
		S3:     s3.NewFromConfig(awsCfg),
		Glue:   glue.NewFromConfig(awsCfg),
		Athena: athena.NewFromConfig(awsCfg),
	}, etl.ExportOptions{
		JobsTable:    cfg.TableName,
		GlueDatabase: cfg.GlueDatabase,
		ExportTable:  cfg.ExportTable,
		Workgroup:    cfg.AthenaWorkgroup,
		AthenaOutput: cfg.AthenaOutput,
		DaysBack:     cfg.ExportDaysBack,
	}, log)
}

// DevRoutes wires every HTTP function for the local server.
func DevRoutes(awsCfg aws.Config, cfg *config.Config, log *slog.Logger) devserver.Routes {
	return devserver.Routes{
		StartJob: NewStartJobHandler(awsCfg, cfg, log).Handle,
		Presign:  NewPresignHandler(awsCfg, cfg, log).Handle,
		Ask:      NewAskHandler(awsCfg, cfg, log).Handle,
		Contact:  NewContactHandler(awsCfg, cfg, log).Handle,
		Health:   handlers.Health,
	}
}
