// Command devserver runs the HTTP functions locally behind one gin router.
// AWS calls still go to the account in the default credential chain.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jschaub30/aws-demos/internal/app"
	"github.com/jschaub30/aws-demos/internal/config"
	"github.com/jschaub30/aws-demos/internal/devserver"
	"github.com/jschaub30/aws-demos/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsCfg, cfg, err := config.LoadAWS(ctx)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	lc := cfg.Logging()
	if lc.Format == "" {
		lc.Format = "console"
	}
	logger := logging.New(lc)

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.DebugMode)
	}
	router := devserver.NewRouter(app.DevRoutes(awsCfg, cfg, logger), logger)

	srv := &http.Server{
		Addr:              cfg.DevAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("devserver listening", slog.String("addr", cfg.DevAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", slog.Any("error", err))
	}
}
