package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/abelzeko/kommunekamp/internal/config"
	"github.com/abelzeko/kommunekamp/internal/integration"
	"github.com/abelzeko/kommunekamp/internal/integration/openai"
	"github.com/abelzeko/kommunekamp/internal/repository"
	"github.com/abelzeko/kommunekamp/internal/scoring"
	"github.com/abelzeko/kommunekamp/internal/telemetry"
	"github.com/abelzeko/kommunekamp/internal/usecases"
)

// app is the set of components shared by the commands
type app struct {
	metrics *telemetry.Metrics
	history repository.ComparisonRepository
	useCase *usecases.ComparisonUseCase
	closers []func() error
}

type wireOptions struct {
	reports     bool
	interpreter bool
}

var openPostGIS = integration.OpenPostGIS

func newApp(ctx context.Context, cfg config.Config, opts wireOptions) (_ *app, err error) {
	a := &app{metrics: telemetry.NewMetrics()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	provider, err := integration.NewDatavarehusClient(integration.DatavarehusConfig{
		BaseURL:           cfg.DatavarehusURL,
		Token:             cfg.DatavarehusToken,
		KommDatasetID:     cfg.KommDatasetID,
		Timeout:           cfg.HTTPTimeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Metrics:           a.metrics,
	})
	if err != nil {
		return nil, err
	}

	// Spatial metrics degrade to unavailable when PostGIS is missing or down.
	var spatial integration.SpatialQuerier
	if cfg.PostGISDSN != "" {
		db, err := openPostGIS(ctx, cfg.PostGISDSN)
		if err != nil {
			log.Warn().Err(err).Msg("PostGIS unavailable, brewery and foot trail metrics will be missing")
		} else {
			a.closers = append(a.closers, db.Close)
			spatial = integration.NewPostGISQuerier(db, cfg.HTTPTimeout)
		}
	} else {
		log.Warn().Msg("POSTGIS_DSN not set, brewery and foot trail metrics will be missing")
	}

	var demographics integration.DemographicsSource = integration.StaticDemographics{Value: cfg.DefaultPercentageUnder35}
	if cfg.DemographicsURL != "" {
		scraper, err := integration.NewDemographicsScraper(cfg.DemographicsURL, cfg.HTTPTimeout, a.metrics)
		if err != nil {
			return nil, err
		}
		demographics = scraper
	}

	builder, err := usecases.NewKommBuilder(provider, spatial, demographics, cfg.RainDatasetID, a.metrics)
	if err != nil {
		return nil, err
	}

	engine, err := scoring.NewEngine(cfg.Policy)
	if err != nil {
		return nil, err
	}

	deps := usecases.ComparisonDeps{
		Builder: builder,
		Engine:  engine,
		Weights: cfg.Weights,
		Metrics: a.metrics,
	}

	if opts.reports && cfg.ReportURL != "" {
		reports, err := integration.NewReportClient(integration.ReportConfig{
			BaseURL:        cfg.ReportURL,
			Token:          cfg.ReportToken,
			TemplateID:     cfg.ReportTemplateID,
			FilenamePrefix: cfg.ReportFilenamePrefix,
			Timeout:        2 * cfg.HTTPTimeout,
			Metrics:        a.metrics,
		})
		if err != nil {
			return nil, err
		}
		deps.Reports = reports
	}

	if opts.interpreter && cfg.OpenAIAPIKey != "" {
		interp, err := openai.NewInterpreter(cfg.OpenAIAPIKey)
		if err != nil {
			return nil, err
		}
		deps.Interpreter = interp
	}

	a.history = repository.NoopComparisonRepository{}
	if cfg.HistoryDB != "" {
		repo, err := repository.NewSQLiteComparisonRepository(cfg.HistoryDB)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize repository: %w", err)
		}
		a.history = repo
		a.closers = append(a.closers, repo.Close)
	}
	deps.History = a.history

	a.useCase, err = usecases.NewComparisonUseCase(deps)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("lower_is_better", string(cfg.Policy.LowerIsBetter)).
		Str("absent", string(cfg.Policy.Absent)).
		Int("weights", len(cfg.Weights)).
		Msg("Comparison service ready")
	return a, nil
}

// Close releases databases opened by newApp
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("Failed to close resource")
		}
	}
	a.closers = nil
}
