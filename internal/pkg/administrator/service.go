package administrator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"dupebot/internal/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

type health struct {
	Status     string    `json:"status"`
	QueueDepth int       `json:"queue_depth"`
	Workers    int       `json:"workers"`
	OpenGates  int       `json:"open_gates"`
	Uptime     string    `json:"uptime"`
	StartTime  time.Time `json:"start_time"`
}

// Routes of the admin service: /metrics for Prometheus and /health for
// monitoring.
func newServeMux(admin Administrator) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(writer http.ResponseWriter, request *http.Request) {
		if request.Method != http.MethodGet && request.Method != http.MethodHead {
			http.Error(writer, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		status := health{
			Status:     "OK",
			QueueDepth: admin.QueueDepth(),
			Workers:    admin.WorkerCount(),
			OpenGates:  admin.OpenGates(),
			Uptime:     time.Since(admin.StartTime()).Round(time.Second).String(),
			StartTime:  admin.StartTime(),
		}

		writer.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(writer).Encode(status); err != nil {
			logger.Log.Warn("Failed to write health response", zap.Error(err))
		}
	})
	return mux
}

// Serves the admin endpoints on port until ctx ends.
func (admin *administrator) StartService(ctx context.Context, port string) error {
	return serve(ctx, port, newServeMux(admin))
}

func serve(ctx context.Context, port string, handler http.Handler) error {
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Log.Warn("Admin service shutdown failed", zap.Error(err))
		}
	}()

	logger.Log.Info("Admin service listening", zap.String("address", server.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-shutdownDone
	return nil
}
