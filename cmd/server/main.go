// Command server runs the telemetry ingest server: a TCP listener and a
// UDP receiver sharing one port (spec.md §6), backed by a sqlite
// Persistence store and exposing Prometheus metrics. Grounded on the
// teacher's cmd/tcp-server/main.go accept-loop-plus-signal-handling shape,
// generalized from one bare flag/log-backed TCP listener into a
// cobra-driven command that starts both listeners and an HTTP metrics
// endpoint side by side.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/khansohel/traffometer-server/internal/clock"
	"github.com/khansohel/traffometer-server/internal/config"
	"github.com/khansohel/traffometer-server/internal/metrics"
	"github.com/khansohel/traffometer-server/internal/store"
	"github.com/khansohel/traffometer-server/internal/store/memory"
	"github.com/khansohel/traffometer-server/internal/store/sqlite"
	"github.com/khansohel/traffometer-server/internal/transport"
	"github.com/khansohel/traffometer-server/pkg/telemetry/template"
)

func main() {
	cfg := config.Default()
	var dbPath string
	var metricsAddr string

	root := &cobra.Command{
		Use:   "server",
		Short: "Telemetry ingest server (TCP+UDP)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg, dbPath, metricsAddr)
		},
	}
	cfg.BindFlags(root.Flags())
	root.Flags().StringVar(&dbPath, "db", "telemetry.db", "sqlite database path; pass ':memory:' for an in-process store")
	root.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "address the /metrics HTTP endpoint binds to")

	if err := root.Execute(); err != nil {
		logrus.WithError(err).Fatal("server exited with error")
	}
}

func run(cfg config.Config, dbPath, metricsAddr string) error {
	log := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	entry := logrus.NewEntry(log)

	if err := cfg.Validate(); err != nil {
		return err
	}

	var persist store.Persistence
	if dbPath == ":memory:" {
		persist = memory.New()
	} else {
		st, err := sqlite.Open(dbPath)
		if err != nil {
			return err
		}
		defer st.Close()
		persist = st
	}

	reg := prometheus.NewRegistry()
	m := metrics.New()
	if err := m.Register(reg); err != nil {
		return err
	}

	registry := template.NewRegistry()
	clk := clock.Real{}

	timeouts := transport.Timeouts{
		Idle:    cfg.IdleTimeout,
		Packet:  cfg.PacketTimeout,
		Session: cfg.TCPSessionTimeout,
		Linger:  cfg.Linger,
	}
	udpTimeouts := timeouts
	udpTimeouts.Session = cfg.UDPSessionTimeout

	tcpSrv := &transport.TCPServer{
		Addr:                cfg.ListenAddr,
		Timeouts:            timeouts,
		Clock:               clk,
		Persist:             persist,
		Registry:            registry,
		Metrics:             m,
		Log:                 entry.WithField("transport", "tcp"),
		AcceptRatePerSecond: cfg.AcceptRatePerSecond,
		AcceptBurst:         cfg.AcceptBurst,
	}
	udpSrv := &transport.UDPServer{
		Addr:     cfg.ListenAddr,
		Timeouts: udpTimeouts,
		Clock:    clk,
		Persist:  persist,
		Registry: registry,
		Metrics:  m,
		Log:      entry.WithField("transport", "udp"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		entry.Info("shutdown signal received")
		cancel()
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{Addr: metricsAddr, Handler: mux}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			entry.WithError(err).Warn("metrics server exited")
		}
	}()

	errCh := make(chan error, 2)
	go func() { errCh <- tcpSrv.ListenAndServe(ctx) }()
	go func() { errCh <- udpSrv.ListenAndServe(ctx) }()

	entry.WithField("addr", cfg.ListenAddr).Info("telemetry server started")

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			runErr = err
			cancel()
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = metricsSrv.Shutdown(shutdownCtx)

	entry.Info("telemetry server stopped")
	return runErr
}
