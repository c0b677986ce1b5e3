package factory

import (
	"fmt"
	"io"
	"strings"

	"speckle-inspector/internal/analyzer"
	"speckle-inspector/internal/config"
	"speckle-inspector/internal/storage"
	"speckle-inspector/internal/strategy"
	"speckle-inspector/pkg/validation"
)

// StorageType represents different types of storage backends
type StorageType string

const (
	// HTTPStorage for captures served over HTTP
	HTTPStorage StorageType = config.StorageHTTP
	// AzureStorage for Azure blob storage
	AzureStorage StorageType = config.StorageAzure
	// LocalStorage for local file system
	LocalStorage StorageType = config.StorageLocal
)

// AnalyzerFactory creates speckle analyzers
type AnalyzerFactory interface {
	CreateAnalyzer(cfg *config.Config) (analyzer.SpeckleAnalyzer, error)
}

// StorageFactory creates capture sources and their matching validators
type StorageFactory interface {
	CreateSource(storageType StorageType, cfg *config.Config) (storage.Source, error)
	CreateValidator(storageType StorageType, cfg *config.Config) *validation.MeasurementValidator
}

// StrategyFactory creates threshold strategies by name
type StrategyFactory interface {
	CreateStrategy(name string, threshold int) (strategy.ThresholdStrategy, error)
}

// analyzerFactory implements AnalyzerFactory
type analyzerFactory struct{}

// NewAnalyzerFactory creates a new analyzer factory
func NewAnalyzerFactory() AnalyzerFactory {
	return &analyzerFactory{}
}

// Options maps configuration onto analysis options
func Options(cfg *config.Config) analyzer.AnalysisOptions {
	return analyzer.DefaultOptions().
		WithCropWindow(cfg.CropMinSize, cfg.CropDivisor).
		WithErosionSize(cfg.ErosionSize).
		WithLowPassSigma(cfg.LowPassSigma).
		WithMaxWorkers(cfg.MaxWorkers)
}

// CreateAnalyzer creates an analyzer configured from cfg
func (f *analyzerFactory) CreateAnalyzer(cfg *config.Config) (analyzer.SpeckleAnalyzer, error) {
	return analyzer.NewSpeckleAnalyzer(Options(cfg))
}

// storageFactory implements StorageFactory
type storageFactory struct{}

// NewStorageFactory creates a new storage factory
func NewStorageFactory() StorageFactory {
	return &storageFactory{}
}

// CreateSource creates a capture source based on the specified type
func (f *storageFactory) CreateSource(storageType StorageType, cfg *config.Config) (storage.Source, error) {
	switch storageType {
	case HTTPStorage:
		return storage.NewHTTPSource(cfg.RequestTimeout), nil
	case AzureStorage:
		src, err := storage.NewAzureSource(cfg.AzureAccountName, cfg.AzureAccountKey)
		if err != nil {
			return nil, err
		}
		return src, nil
	case LocalStorage:
		src := storage.NewLocalSource(cfg.ImageDir)
		if cfg.AllowAbsolutePaths {
			src = src.WithAbsolutePaths()
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

// CreateValidator returns a validator matching the locations a source accepts
func (f *storageFactory) CreateValidator(storageType StorageType, cfg *config.Config) *validation.MeasurementValidator {
	if storageType == HTTPStorage {
		return validation.NewRemoteMeasurementValidator(nil, nil)
	}
	v := validation.NewMeasurementValidator()
	if storageType == LocalStorage && cfg.AllowAbsolutePaths {
		v = v.WithAbsolutePaths()
	}
	return v
}

// strategyFactory implements StrategyFactory
type strategyFactory struct {
	in  io.Reader
	out io.Writer
}

// NewStrategyFactory creates a strategy factory. Interactive strategies read
// from in and write their previews to out.
func NewStrategyFactory(in io.Reader, out io.Writer) StrategyFactory {
	return &strategyFactory{in: in, out: out}
}

// CreateStrategy creates a threshold strategy. An empty name means fixed.
func (f *strategyFactory) CreateStrategy(name string, threshold int) (strategy.ThresholdStrategy, error) {
	var (
		s   strategy.ThresholdStrategy
		err error
	)
	switch strings.ToLower(name) {
	case "", strategy.FixedStrategy:
		s, err = strategy.NewFixedThreshold(threshold)
	case strategy.OtsuStrategy:
		s = strategy.NewOtsuThreshold()
	case strategy.PromptStrategy:
		if f.in == nil || f.out == nil {
			return nil, fmt.Errorf("strategy %q needs an interactive terminal", name)
		}
		s, err = strategy.NewPromptThreshold(f.in, f.out, threshold)
	default:
		return nil, fmt.Errorf("unsupported threshold strategy: %s", name)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	AnalyzerFactory AnalyzerFactory
	StorageFactory  StorageFactory
	StrategyFactory StrategyFactory
}

// NewComponentFactory creates a new component factory. The HTTP API passes
// nil streams so only headless strategies are available.
func NewComponentFactory(in io.Reader, out io.Writer) *ComponentFactory {
	return &ComponentFactory{
		AnalyzerFactory: NewAnalyzerFactory(),
		StorageFactory:  NewStorageFactory(),
		StrategyFactory: NewStrategyFactory(in, out),
	}
}
