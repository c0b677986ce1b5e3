package container

import (
	"fmt"
	"io"
	"net/http"

	"speckle-inspector/internal/analyzer"
	"speckle-inspector/internal/config"
	"speckle-inspector/internal/factory"
	"speckle-inspector/internal/logger"
	"speckle-inspector/internal/observer"
	"speckle-inspector/internal/raw"
	"speckle-inspector/internal/repository"
	"speckle-inspector/internal/service"
	"speckle-inspector/internal/transport"
)

// Container holds all application dependencies
type Container struct {
	config     *config.Config
	factory    *factory.ComponentFactory
	analyzer   analyzer.SpeckleAnalyzer
	repository repository.ResultRepository
	events     *observer.EventPublisher
	metrics    *observer.MetricsObserver
	service    service.SpeckleAnalysisService
	handler    http.Handler
}

// NewContainer builds the dependency graph for the HTTP API
func NewContainer(cfg *config.Config) (*Container, error) {
	return NewContainerWithStreams(cfg, nil, nil)
}

// NewContainerWithStreams builds the dependency graph with terminal streams
// for interactive threshold selection
func NewContainerWithStreams(cfg *config.Config, in io.Reader, out io.Writer) (*Container, error) {
	logger.SetLevel(cfg.LogLevel)

	components := factory.NewComponentFactory(in, out)
	storageType := factory.StorageType(cfg.StorageBackend)

	source, err := components.StorageFactory.CreateSource(storageType, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create image source: %w", err)
	}

	speckleAnalyzer, err := components.AnalyzerFactory.CreateAnalyzer(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create analyzer: %w", err)
	}

	repo := repository.NewCSVResultRepository(cfg.ResultsDir)

	events := observer.NewEventPublisher()
	metrics := observer.NewMetricsObserver()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(metrics)

	svc, err := service.NewSpeckleAnalysisService(service.Dependencies{
		Source:     source,
		Registry:   raw.NewRegistry(),
		Analyzer:   speckleAnalyzer,
		Repository: repo,
		Validator:  components.StorageFactory.CreateValidator(storageType, cfg),
		Events:     events,
	}, service.Settings{
		MaxImageBytes: cfg.MaxImageSize,
		MaxWorkers:    cfg.MaxWorkers,
	})
	if err != nil {
		speckleAnalyzer.Close()
		return nil, err
	}

	return &Container{
		config:     cfg,
		factory:    components,
		analyzer:   speckleAnalyzer,
		repository: repo,
		events:     events,
		metrics:    metrics,
		service:    svc,
		handler:    transport.NewHandler(svc, components.StrategyFactory, metrics, cfg),
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Service returns the analysis service
func (c *Container) Service() service.SpeckleAnalysisService {
	return c.service
}

// Strategies returns the threshold strategy factory
func (c *Container) Strategies() factory.StrategyFactory {
	return c.factory.StrategyFactory
}

// Repository returns the result repository
func (c *Container) Repository() repository.ResultRepository {
	return c.repository
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Close waits for pending events and releases the analyzer
func (c *Container) Close() error {
	c.events.Flush()
	return c.analyzer.Close()
}
