package analyzer

import (
	"context"
	"image"
)

// SpeckleAnalyzer defines the main interface for speckle contrast analysis
type SpeckleAnalyzer interface {
	// Calculate runs the pipeline with the analyzer's default options
	Calculate(ctx context.Context, pair Pair, chooser ThresholdChooser) (*SpeckleResult, error)

	CalculateWithOptions(ctx context.Context, pair Pair, chooser ThresholdChooser, options AnalysisOptions) (*SpeckleResult, error)

	// Lifecycle management
	Close() error
}

// ContrastCalculator handles the statistics of flattened samples
type ContrastCalculator interface {
	Flatten(img *image.Gray, mask *image.Gray) ([]float64, error)
	Contrast(sample []float64) (float64, error)
	HighPass(sample []float64, sigma float64, guardAgainstZeroLowPass bool) ([]float64, error)
	FinalContrast(filteredSpeckle, filteredReference float64) (float64, bool)
}

// ThresholdChooser picks the perforation threshold for a cropped reference.
// The call may block until a decision is made; ctx is the only way to
// abandon it.
type ThresholdChooser interface {
	ChooseThreshold(ctx context.Context, preview Preview) (int, error)
}

// ThresholdChooserFunc adapts a function to ThresholdChooser
type ThresholdChooserFunc func(ctx context.Context, preview Preview) (int, error)

func (f ThresholdChooserFunc) ChooseThreshold(ctx context.Context, preview Preview) (int, error) {
	return f(ctx, preview)
}
