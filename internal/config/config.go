package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/joho/godotenv"

	"github.com/jschaub30/aws-demos/internal/logging"
)

// ssmPrefix marks an env value that names an SSM parameter, e.g.
// AGENT_SYSTEM_PROMPT=ssm:/aws-demos/agent/system-prompt
const ssmPrefix = "ssm:"

const (
	DefaultAgentCacheTTL  = 600 * time.Second
	DefaultExportDaysBack = 1
	MaxExportDaysBack     = 30
	DefaultWorkgroup      = "primary"
	DefaultDevAddr        = ":8080"
)

type ParameterClient interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Config is everything the functions read from their environment. Each
// binary only requires the subset it uses (see the Require* methods).
type Config struct {
	BucketName string
	TableName  string

	ModelID         string
	SystemPrompt    string
	AgentCacheTable string
	AgentCacheTTL   time.Duration

	DeliverTo string

	GlueDatabase    string
	ExportTable     string
	AthenaWorkgroup string
	AthenaOutput    string
	ExportDaysBack  int

	LogLevel  string
	LogFormat string
	DevAddr   string
}

// LoadDotEnv loads a local .env file into the process environment. A missing
// file is not an error.
func LoadDotEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Load reads the environment and resolves ssm: references through params.
// params may be nil when no value uses an ssm: reference.
func Load(ctx context.Context, params ParameterClient) (*Config, error) {
	c := &Config{
		BucketName:      env("BUCKET_NAME"),
		TableName:       env("TABLE_NAME"),
		ModelID:         env("BEDROCK_MODEL_ID"),
		SystemPrompt:    env("AGENT_SYSTEM_PROMPT"),
		AgentCacheTable: env("AGENT_CACHE_TABLE"),
		AgentCacheTTL:   DefaultAgentCacheTTL,
		DeliverTo:       env("DELIVER_TO"),
		GlueDatabase:    env("GLUE_DATABASE"),
		ExportTable:     env("JOBS_EXPORT_TABLE"),
		AthenaWorkgroup: env("ATHENA_WORKGROUP"),
		AthenaOutput:    env("ATHENA_OUTPUT"),
		ExportDaysBack:  DefaultExportDaysBack,
		LogLevel:        env("LOG_LEVEL"),
		LogFormat:       env("LOG_FORMAT"),
		DevAddr:         env("DEV_ADDR"),
	}

	if v := env("AGENT_CACHE_TTL_SECONDS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.AgentCacheTTL = time.Duration(n) * time.Second
		}
	}
	if v := env("EXPORT_DAYS_BACK"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= MaxExportDaysBack {
			c.ExportDaysBack = n
		}
	}
	if c.AthenaWorkgroup == "" {
		c.AthenaWorkgroup = DefaultWorkgroup
	}
	if c.DevAddr == "" {
		c.DevAddr = DefaultDevAddr
	}

	for _, field := range []*string{
		&c.BucketName, &c.TableName,
		&c.ModelID, &c.SystemPrompt, &c.AgentCacheTable,
		&c.DeliverTo,
		&c.GlueDatabase, &c.ExportTable, &c.AthenaOutput,
	} {
		v, err := resolve(ctx, params, *field)
		if err != nil {
			return nil, err
		}
		*field = v
	}

	return c, nil
}

// RequireUpload reports the variables the upload functions need but lack.
func (c *Config) RequireUpload() error {
	return missing(map[string]string{
		"BUCKET_NAME": c.BucketName,
		"TABLE_NAME":  c.TableName,
	})
}

func (c *Config) RequireAgent() error {
	return missing(map[string]string{"BEDROCK_MODEL_ID": c.ModelID})
}

func (c *Config) RequireContact() error {
	return missing(map[string]string{"DELIVER_TO": c.DeliverTo})
}

func (c *Config) RequireExport() error {
	if err := missing(map[string]string{
		"TABLE_NAME":        c.TableName,
		"GLUE_DATABASE":     c.GlueDatabase,
		"JOBS_EXPORT_TABLE": c.ExportTable,
		"ATHENA_OUTPUT":     c.AthenaOutput,
	}); err != nil {
		return err
	}
	if !strings.HasPrefix(c.AthenaOutput, "s3://") {
		return fmt.Errorf("ATHENA_OUTPUT must start with s3://")
	}
	return nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func missing(vars map[string]string) error {
	var names []string
	// fixed order keeps the message stable
	for _, k := range []string{
		"BUCKET_NAME", "TABLE_NAME", "BEDROCK_MODEL_ID", "DELIVER_TO",
		"GLUE_DATABASE", "JOBS_EXPORT_TABLE", "ATHENA_OUTPUT",
	} {
		if v, ok := vars[k]; ok && v == "" {
			names = append(names, k)
		}
	}
	if len(names) == 0 {
		return nil
	}
	return fmt.Errorf("missing env %s", strings.Join(names, ", "))
}

func resolve(ctx context.Context, params ParameterClient, v string) (string, error) {
	name, ok := strings.CutPrefix(v, ssmPrefix)
	if !ok {
		return v, nil
	}
	if params == nil {
		return "", fmt.Errorf("ssm parameter %s referenced but no ssm client configured", name)
	}
	out, err := params.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("ssm GetParameter %s: %w", name, err)
	}
	if out.Parameter == nil {
		return "", fmt.Errorf("ssm parameter %s has no value", name)
	}
	return strings.TrimSpace(aws.ToString(out.Parameter.Value)), nil
}

// LoadAWS is the cold-start path shared by every function: optional .env,
// the default AWS credential chain, then Load with an SSM client.
func LoadAWS(ctx context.Context) (aws.Config, *Config, error) {
	if err := LoadDotEnv(); err != nil {
		return aws.Config{}, nil, err
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return aws.Config{}, nil, fmt.Errorf("load aws config: %w", err)
	}
	cfg, err := Load(ctx, ssm.NewFromConfig(awsCfg))
	if err != nil {
		return aws.Config{}, nil, err
	}
	return awsCfg, cfg, nil
}

// Logging returns the logger settings from the environment.
func (c *Config) Logging() logging.Config {
	return logging.Config{Level: c.LogLevel, Format: c.LogFormat}
}
