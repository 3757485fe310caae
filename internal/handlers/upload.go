package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jschaub30/aws-demos/internal/config"
	"github.com/jschaub30/aws-demos/internal/logging"
	"github.com/jschaub30/aws-demos/internal/upload"
)

type Uploader interface {
	Start(ctx context.Context, req upload.Request) (*upload.Result, error)
	Presign(ctx context.Context, req upload.Request) (*upload.Result, error)
}

// UploadHandler serves both upload endpoints. start-job accepts either a
// filename or a source_url; gen-presigned-url only issues upload URLs.
type UploadHandler struct {
	cfg         *config.Config
	uploader    Uploader
	presignOnly bool
	log         *slog.Logger
}

func NewStartJobHandler(cfg *config.Config, u Uploader, log *slog.Logger) *UploadHandler {
	return newUploadHandler(cfg, u, false, log)
}

func NewPresignHandler(cfg *config.Config, u Uploader, log *slog.Logger) *UploadHandler {
	return newUploadHandler(cfg, u, true, log)
}

func newUploadHandler(cfg *config.Config, u Uploader, presignOnly bool, log *slog.Logger) *UploadHandler {
	if log == nil {
		log = logging.Discard()
	}
	return &UploadHandler{cfg: cfg, uploader: u, presignOnly: presignOnly, log: log}
}

// Handle returns a non-nil error only when the job record could not be
// written; the runtime reports that as an invocation failure.
func (h *UploadHandler) Handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if isPreflight(req) {
		return preflightResp("")
	}
	if err := h.cfg.RequireUpload(); err != nil {
		h.log.Error("upload function misconfigured", slog.Any("error", err))
		return h.fail(upload.ConfigurationError(err))
	}

	var body upload.Request
	if err := decodeBody(req, &body); err != nil && !errors.Is(err, errEmptyBody) {
		h.log.Warn("unreadable request body", slog.Any("error", err))
		return messageResp(http.StatusBadRequest, "Request body must be JSON or form-encoded")
	}

	var (
		res *upload.Result
		err error
	)
	if h.presignOnly {
		res, err = h.uploader.Presign(ctx, body)
	} else {
		res, err = h.uploader.Start(ctx, body)
	}
	if err != nil {
		if e, ok := upload.AsError(err); ok {
			return h.fail(e)
		}
		return events.APIGatewayV2HTTPResponse{}, err
	}

	return jsonResp(http.StatusOK, res)
}

func (h *UploadHandler) fail(e *upload.Error) (events.APIGatewayV2HTTPResponse, error) {
	h.log.Info("request rejected",
		slog.String("kind", e.Kind.String()),
		slog.Int("status", e.StatusCode()),
		slog.String("message", e.Message),
	)
	return messageResp(e.StatusCode(), e.Message)
}
