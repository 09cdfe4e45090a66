package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"syscall"
	"testing"
	"time"

	"miniloan/internal/config"
	"miniloan/internal/event"
	"miniloan/internal/infrastructure/monitoring"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

type noopJob struct{}

func (noopJob) Name() string                { return "noop" }
func (noopJob) Run(_ context.Context) error { return nil }

func TestInitializeApp(t *testing.T) {
	cfg, log := initializeApp()

	assert.NotNil(t, cfg, "Config should not be nil")
	assert.NotNil(t, log, "Logger should not be nil")
}

func TestStartServer(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:         0,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			IdleTimeout:  5 * time.Second,
		},
	}

	srv, serverErrors, shutdownChan := startServer(cfg, http.NewServeMux(), logger)
	t.Cleanup(func() { _ = srv.Close() })

	assert.NotNil(t, srv)
	assert.NotNil(t, serverErrors)
	assert.NotNil(t, shutdownChan)
}

func TestHandleShutdown(t *testing.T) {
	cronScheduler := cron.New()
	cronScheduler.Start()
	srv := &http.Server{}
	shutdownChan := make(chan os.Signal, 1)
	serverErrors := make(chan error, 1)

	shutdownChan <- syscall.SIGINT

	done := make(chan struct{})
	go func() {
		handleShutdown(srv, cronScheduler, shutdownChan, serverErrors, logger)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("shutdown did not complete")
	}
}

func TestStartBatchJobs(t *testing.T) {
	cfg := &config.Config{Batch: config.BatchConfig{StaleApplicationSchedule: "0 3 * * *", StaleApplicationTimeout: time.Minute}}
	c := startBatchJobs(cfg, logger, noopJob{})
	defer c.Stop()
	assert.Len(t, c.Entries(), 1)

	cfg.Batch.StaleApplicationSchedule = "not a schedule"
	c2 := startBatchJobs(cfg, logger, noopJob{})
	defer c2.Stop()
	assert.Empty(t, c2.Entries())
}

func TestSubscribeSessionMetrics(t *testing.T) {
	bus := event.NewBus(logger)
	unsubscribe := subscribeSessionMetrics(bus)

	started := monitoring.Session.EventsTotal.WithLabelValues(string(event.TopicSessionStarted), "ADMIN")
	before := testutil.ToFloat64(started)

	bus.Publish(context.Background(), event.Event{
		Topic:   event.TopicSessionStarted,
		Payload: event.SessionEvent{UserID: 1, Role: "ADMIN"},
	})
	assert.Equal(t, before+1, testutil.ToFloat64(started))

	unsubscribe()
	assert.Zero(t, bus.Subscribers(event.TopicSessionStarted))
	assert.Zero(t, bus.Subscribers(event.TopicSessionEnded))
}

func TestInitializeBrokerDisabled(t *testing.T) {
	cfg := &config.Config{RabbitMQ: config.RabbitMQConfig{Enabled: false}}
	require.Nil(t, initializeBroker(cfg, event.NewBus(logger), logger))
}
