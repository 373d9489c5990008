// Package metrics holds the Prometheus collectors of the bot.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	UpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suggestbot_updates_total",
			Help: "Inbound events by kind",
		},
		[]string{"kind"}, // photo, text, button, command
	)
	PhotosReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "suggestbot_photos_received_total",
			Help: "Photos added to pending submissions",
		},
	)
	SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suggestbot_submissions_total",
			Help: "Submissions that left the store, by outcome",
		},
		[]string{"outcome"}, // dispatched, cancelled, expired
	)
	DeliveryFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suggestbot_delivery_failures_total",
			Help: "Failed Telegram API calls",
		},
		[]string{"op"},
	)
	PendingSubmissions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "suggestbot_pending_submissions",
			Help: "Users with an unsent submission",
		},
	)
)

// Register adds all collectors to the registerer.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		UpdatesTotal,
		PhotosReceived,
		SubmissionsTotal,
		DeliveryFailures,
		PendingSubmissions,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, baseLogger *zerolog.Logger) error {
	log := baseLogger.With().Str("component", "metrics").Logger()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Starting metrics server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Metrics server shutdown error")
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
