package contenttype

import (
	"context"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/jschaub30/aws-demos/internal/logging"
)

const Default = "application/octet-stream"

// extra covers common upload types missing from Go's builtin table. Lambda
// images ship without /etc/mime.types, so the builtin table is all we get.
var extra = map[string]string{
	".txt":  "text/plain",
	".csv":  "text/csv",
	".md":   "text/markdown",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".rtf":  "application/rtf",
	".zip":  "application/zip",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".heic": "image/heic",
}

var registerOnce sync.Once

func register() {
	for ext, typ := range extra {
		_ = mime.AddExtensionType(ext, typ)
	}
}

// Resolver determines the MIME type of a remote resource.
type Resolver struct {
	client *http.Client
	log    *slog.Logger
}

func NewResolver(client *http.Client, log *slog.Logger) *Resolver {
	if client == nil {
		client = &http.Client{}
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Resolver{client: client, log: log}
}

// Resolve returns the Content-Type reported by a HEAD request, else a guess
// from the file extension, else Default. It never fails.
func (r *Resolver) Resolve(ctx context.Context, sourceURL string) string {
	if ct := r.probe(ctx, sourceURL); ct != "" {
		r.log.Info("content type from headers", slog.String("content_type", ct))
		return ct
	}
	ct := Guess(Filename(sourceURL))
	r.log.Info("content type from filename", slog.String("content_type", ct))
	return ct
}

func (r *Resolver) probe(ctx context.Context, sourceURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, sourceURL, nil)
	if err != nil {
		return ""
	}
	res, err := r.client.Do(req)
	if err != nil {
		r.log.Warn("head request failed", slog.String("url", sourceURL), slog.Any("error", err))
		return ""
	}
	defer res.Body.Close()
	return strings.TrimSpace(res.Header.Get("Content-Type"))
}

// Guess maps a filename's extension to a MIME type, falling back to Default.
func Guess(filename string) string {
	registerOnce.Do(register)
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		return Default
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return Default
}

// Filename is the last path segment of rawURL with any query string removed.
func Filename(rawURL string) string {
	base, _, _ := strings.Cut(rawURL, "?")
	base, _, _ = strings.Cut(base, "#")
	if i := strings.LastIndex(base, "/"); i >= 0 {
		return base[i+1:]
	}
	return base
}
