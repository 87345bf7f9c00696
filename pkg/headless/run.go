package headless

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/killallgit/huddle/pkg/controllers"
	"github.com/killallgit/huddle/pkg/metrics"
)

// Options configures Watch
type Options struct {
	// ChatID, when set, is selected after the first snapshot and its
	// history and live messages are printed.
	ChatID string
	// MetricsAddr, when set, serves Prometheus metrics on /metrics
	MetricsAddr string
	Out         io.Writer
}

// Watch connects the session and prints events until ctx is cancelled.
// This is the entry point for the watch command.
func Watch(ctx context.Context, session *controllers.Session, opts Options) error {
	if session == nil {
		return fmt.Errorf("session is required")
	}

	r := newRunner(session, opts.Out, opts.ChatID)
	defer r.cleanup()

	if _, err := session.Chat.LoadMembers(ctx); err != nil {
		// Sender ids are printed instead of names
		r.output.Error(err.Error())
	}

	r.bind(ctx)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return session.Run(ctx)
	})

	if opts.MetricsAddr != "" {
		server := &http.Server{
			Addr:              opts.MetricsAddr,
			Handler:           metricsRouter(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			r.log.Info("Serving metrics", "addr", opts.MetricsAddr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server failed: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

func metricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}
