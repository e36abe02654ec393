package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"mercator-hq/warden/pkg/classifier"
	"mercator-hq/warden/pkg/compliance"
	"mercator-hq/warden/pkg/compliance/checks"
	"mercator-hq/warden/pkg/compliance/detector"
	"mercator-hq/warden/pkg/config"
	"mercator-hq/warden/pkg/monitor"
	"mercator-hq/warden/pkg/notify"
	"mercator-hq/warden/pkg/storage"
	"mercator-hq/warden/pkg/telemetry/metrics"
	"mercator-hq/warden/pkg/telemetry/tracing"
)

// engine holds the wired components shared by the commands.
type engine struct {
	cfg    *config.Config
	logger *slog.Logger

	// store is the backend; writes go through monitorStore, which is the
	// dry-run wrapper when dryRun is set.
	store        compliance.Store
	monitorStore compliance.Store
	dryRun       *storage.DryRun

	classifier   classifier.Backend
	publisher    *notify.NATSPublisher
	metrics      *metrics.Collector
	tracing      *tracing.Provider
	orchestrator *monitor.Orchestrator
}

type engineOptions struct {
	// monitor wires the classifier, notifier and orchestrator. Commands that
	// only read or prune leave it off.
	monitor bool
	dryRun  bool
}

func newEngine(cfg *config.Config, logger *slog.Logger, opts engineOptions) (*engine, error) {
	e := &engine{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.NewCollector(&cfg.Telemetry.Metrics, nil),
	}

	store, err := storage.Open(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	e.store = store
	e.monitorStore = store

	if !opts.monitor {
		return e, nil
	}

	if opts.dryRun || cfg.Monitor.DryRun {
		e.dryRun = storage.NewDryRun(store)
		e.monitorStore = e.dryRun
	}

	backend, err := classifier.New(classifier.Config{
		Provider:  cfg.Classifier.Provider,
		BaseURL:   cfg.Classifier.BaseURL,
		APIKey:    cfg.Classifier.APIKey,
		Model:     cfg.Classifier.Model,
		Timeout:   cfg.Classifier.Timeout,
		MaxTokens: cfg.Classifier.MaxTokens,
	}, logger)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("create classifier: %w", err)
	}
	e.classifier = backend

	// A nil Backend must reach the detector and evaluator as a nil
	// interface, not a typed nil.
	var c classifier.Classifier
	if backend != nil {
		c = backend
	}

	tp, err := tracing.New(context.Background(), cfg.Telemetry.Tracing, Version)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("create tracer: %w", err)
	}
	e.tracing = tp

	var publisher notify.Publisher
	if cfg.Notify.NATS.Enabled && e.dryRun == nil {
		p, err := notify.NewNATSPublisher(cfg.Notify.NATS, logger)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.publisher = p
		publisher = p
	}

	e.orchestrator = monitor.New(monitor.Dependencies{
		Store:     e.monitorStore,
		Detector:  detector.New(c, detector.Config{Timeout: cfg.Classifier.Timeout}, e.metrics, logger),
		Evaluator: checks.NewEvaluator(c, checks.Config{Timeout: cfg.Classifier.Timeout}, logger),
		Notifier:  notify.NewDispatcher(e.monitorStore, publisher, e.metrics, logger),
		Metrics:   e.metrics,
		Tracer:    tp.Tracer(),
	}, monitor.ConfigFrom(cfg.Monitor), logger)

	return e, nil
}

// Close flushes spans and releases the publisher, the classifier and the
// store.
func (e *engine) Close() error {
	var errs []error
	if e.tracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		errs = append(errs, e.tracing.Shutdown(ctx))
		cancel()
	}
	if e.publisher != nil {
		errs = append(errs, e.publisher.Close())
	}
	if e.classifier != nil {
		errs = append(errs, e.classifier.Close())
	}
	if e.store != nil {
		errs = append(errs, e.store.Close())
	}
	return errors.Join(errs...)
}

// ping verifies the store before a command starts work.
func (e *engine) ping(ctx context.Context) error {
	if err := e.store.Ping(ctx); err != nil {
		return fmt.Errorf("store unreachable: %w", err)
	}
	return nil
}
