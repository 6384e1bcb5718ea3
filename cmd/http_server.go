package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	chitrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/go-chi/chi.v5"

	"entrevia/internal/auth"
	"entrevia/internal/handler"
	"entrevia/internal/metrics"
	"entrevia/internal/utils/extractor"
	logging "entrevia/pkg/logger/pkg"
)

// requestID stamps every request with an id, honoring one sent by the edge
// proxy, and threads it through the logging context.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(extractor.RequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(extractor.RequestID, id)

		ctx := logging.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func startHTTP(logger *zap.Logger, h *handler.Handler, authConfig *auth.Config) {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestID)
	r.Use(metrics.Middleware())
	r.Use(chitrace.Middleware(chitrace.WithServiceName(viper.GetString("tracing.service"))))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   viper.GetStringSlice("server.allowed_origins"),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Post("/webhooks/kiwify", h.Webhook)
	r.Post("/webhooks/kiwify/test", h.WebhookTest)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(authConfig))
		h.Routes(r)
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", viper.GetString("server.port")),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", viper.GetString("server.port")))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to serve HTTP", zap.Error(err))
		}
	}()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Shutting down HTTP server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	logger.Info("HTTP server stopped")
}
