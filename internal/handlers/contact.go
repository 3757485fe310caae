package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jschaub30/aws-demos/internal/config"
	"github.com/jschaub30/aws-demos/internal/logging"
	"github.com/jschaub30/aws-demos/internal/notify"
)

const thankYouPage = `<html>
    <head>
        <title>Confirmation</title>
    </head>
    <body>
        <p>Thank you for reaching out! I'll be in touch within a day or two.</p>
    </body>
</html>`

type ContactHandler struct {
	cfg    *config.Config
	sender notify.Sender
	log    *slog.Logger
}

func NewContactHandler(cfg *config.Config, s notify.Sender, log *slog.Logger) *ContactHandler {
	if log == nil {
		log = logging.Discard()
	}
	return &ContactHandler{cfg: cfg, sender: s, log: log}
}

func (h *ContactHandler) Handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if isPreflight(req) {
		return preflightResp(contentTypeHTML)
	}
	if err := h.cfg.RequireContact(); err != nil {
		h.log.Error("contact function misconfigured", slog.Any("error", err))
		return htmlResp(http.StatusInternalServerError, err.Error())
	}

	var f notify.Fields
	if err := decodeBody(req, &f); err != nil && !errors.Is(err, errEmptyBody) {
		return htmlResp(http.StatusBadRequest, "Request body must be JSON or form-encoded")
	}
	if strings.TrimSpace(f.Name) == "" || strings.TrimSpace(f.Email) == "" || strings.TrimSpace(f.Message) == "" {
		return htmlResp(http.StatusBadRequest, "Must provide 'name', 'email' and 'message' in body")
	}

	res := h.sender.Send(ctx, f)
	if !res.Success {
		return htmlResp(http.StatusInternalServerError, res.Message)
	}
	return htmlResp(http.StatusOK, thankYouPage)
}
