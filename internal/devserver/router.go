package devserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jschaub30/aws-demos/internal/logging"
)

// Routes are the functions the local server exposes. A nil handler leaves
// its route unregistered.
type Routes struct {
	StartJob LambdaHandler
	Presign  LambdaHandler
	Ask      LambdaHandler
	Contact  LambdaHandler
	Health   LambdaHandler
}

// NewRouter mirrors the HTTP API routes so the static site can be pointed at
// localhost.
func NewRouter(routes Routes, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = logging.Discard()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(logger))

	post := func(path string, h LambdaHandler) {
		if h == nil {
			return
		}
		r.POST(path, Adapt(h, logger))
		r.OPTIONS(path, Adapt(h, logger))
	}
	post("/start-job", routes.StartJob)
	post("/gen-presigned-url", routes.Presign)
	post("/ask", routes.Ask)
	post("/contact", routes.Contact)

	if routes.Health != nil {
		r.GET("/health", Adapt(routes.Health, logger))
	}
	return r
}

func LoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "http request",
			slog.Int("status", c.Writer.Status()),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Duration("latency", time.Since(start)),
			slog.Int("body_size", c.Writer.Size()),
		)
	}
}
