package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jschaub30/aws-demos/internal/agent"
	"github.com/jschaub30/aws-demos/internal/config"
	"github.com/jschaub30/aws-demos/internal/logging"
)

type AskRequest struct {
	InputText string `json:"inputText"`
}

// AskHandler forwards a visitor's question to the agent and returns the
// answer as an HTML fragment.
type AskHandler struct {
	cfg   *config.Config
	agent agent.Invoker
	log   *slog.Logger
}

func NewAskHandler(cfg *config.Config, a agent.Invoker, log *slog.Logger) *AskHandler {
	if log == nil {
		log = logging.Discard()
	}
	return &AskHandler{cfg: cfg, agent: a, log: log}
}

func (h *AskHandler) Handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if isPreflight(req) {
		return preflightResp(contentTypeHTML)
	}
	if err := h.cfg.RequireAgent(); err != nil {
		h.log.Error("agent function misconfigured", slog.Any("error", err))
		return htmlResp(http.StatusInternalServerError, err.Error())
	}

	var body AskRequest
	if err := decodeBody(req, &body); err != nil && !errors.Is(err, errEmptyBody) {
		return htmlResp(http.StatusBadRequest, "Request body must be JSON or form-encoded")
	}
	query := strings.TrimSpace(body.InputText)
	if query == "" {
		return htmlResp(http.StatusBadRequest, "Must provide 'inputText' in body")
	}

	h.log.Info("invoking agent", slog.Int("query_len", len(query)))
	res := h.agent.Invoke(ctx, query)
	if !res.Success {
		return htmlResp(http.StatusInternalServerError, res.Message)
	}
	return htmlResp(http.StatusOK, res.Message)
}
