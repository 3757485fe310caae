package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	bedrockruntime "github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/jschaub30/aws-demos/internal/logging"
)

const (
	anthropicVersion = "bedrock-2023-05-31"
	maxTokens        = 512
	temperature      = 0.5
	topP             = 0.9
)

type BedrockClient interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Result is what the agent endpoint renders. Message holds the answer on
// success and a readable error otherwise.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type Invoker interface {
	Invoke(ctx context.Context, query string) Result
}

type BedrockOptions struct {
	ModelID      string
	SystemPrompt string
	Cache        *AnswerCache
	Logger       *slog.Logger
}

// Bedrock answers a question with a single InvokeModel call.
type Bedrock struct {
	client  BedrockClient
	modelID string
	system  string
	cache   *AnswerCache
	log     *slog.Logger
}

func NewBedrock(client BedrockClient, opt BedrockOptions) *Bedrock {
	log := opt.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Bedrock{
		client:  client,
		modelID: opt.ModelID,
		system:  opt.SystemPrompt,
		cache:   opt.Cache,
		log:     log,
	}
}

func (b *Bedrock) Invoke(ctx context.Context, query string) Result {
	if b.cache != nil {
		answer, ok, err := b.cache.Get(ctx, b.modelID, query)
		if err != nil {
			b.log.Warn("answer cache read failed", slog.Any("error", err))
		} else if ok {
			b.log.Info("answer served from cache")
			return Result{Success: true, Message: answer}
		}
	}

	answer, err := b.ask(ctx, query)
	if err != nil {
		msg := fmt.Sprintf("Error invoking agent: %v", err)
		b.log.Error("agent invocation failed", slog.String("model_id", b.modelID), slog.Any("error", err))
		return Result{Success: false, Message: msg}
	}

	if b.cache != nil {
		if err := b.cache.Put(ctx, b.modelID, query, answer); err != nil {
			b.log.Warn("answer cache write failed", slog.Any("error", err))
		}
	}
	return Result{Success: true, Message: answer}
}

func (b *Bedrock) ask(ctx context.Context, query string) (string, error) {
	payload := map[string]any{
		"anthropic_version": anthropicVersion,
		"max_tokens":        maxTokens,
		"temperature":       temperature,
		"top_p":             topP,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": query},
				},
			},
		},
	}
	if b.system != "" {
		payload["system"] = b.system
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("bedrock InvokeModel: %w", err)
	}

	// { "content":[{"type":"text","text":"..."}], "stop_reason": ... }
	var raw struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(out.Body, &raw); err != nil {
		return "", fmt.Errorf("bedrock response unmarshal: %w", err)
	}

	var sb strings.Builder
	for _, c := range raw.Content {
		if c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("model returned no text")
	}
	return text, nil
}
