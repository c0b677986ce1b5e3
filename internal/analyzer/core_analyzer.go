package analyzer

import (
	"context"
	"fmt"
	"image"
	"time"

	apperrors "speckle-inspector/internal/errors"
	"speckle-inspector/internal/logger"

	"github.com/sirupsen/logrus"
)

const (
	NoteNoReference    = "No reference used. Can't calculate the corrected speckle contrast"
	NoteReferenceNoisy = "Reference speckle level higher than measured speckle level. Can't calculate the corrected speckle contrast"
)

// coreAnalyzer implements SpeckleAnalyzer interface and orchestrates all components
type coreAnalyzer struct {
	calculator ContrastCalculator
	options    AnalysisOptions
}

// NewSpeckleAnalyzer creates a new analyzer with all components
func NewSpeckleAnalyzer(options AnalysisOptions) (SpeckleAnalyzer, error) {
	if err := validateOptions(options); err != nil {
		return nil, err
	}
	return &coreAnalyzer{
		calculator: NewContrastCalculator(),
		options:    options,
	}, nil
}

func validateOptions(opts AnalysisOptions) error {
	switch {
	case opts.CropMinSize <= 0:
		return apperrors.NewValidationError(fmt.Sprintf("crop minimum size must be positive, got %d", opts.CropMinSize), nil)
	case opts.CropDivisor <= 0:
		return apperrors.NewValidationError(fmt.Sprintf("crop divisor must be positive, got %d", opts.CropDivisor), nil)
	case opts.ErosionSize < 0:
		return apperrors.NewValidationError(fmt.Sprintf("erosion size must not be negative, got %d", opts.ErosionSize), nil)
	case opts.LowPassSigma <= 0:
		return apperrors.NewValidationError(fmt.Sprintf("low pass sigma must be positive, got %g", opts.LowPassSigma), nil)
	}
	return nil
}

// Calculate runs the pipeline with the analyzer's options
func (ca *coreAnalyzer) Calculate(ctx context.Context, pair Pair, chooser ThresholdChooser) (*SpeckleResult, error) {
	return ca.CalculateWithOptions(ctx, pair, chooser, ca.options)
}

// CalculateWithOptions locates the brightest window of the speckle image,
// crops both images to it, masks perforations found in the reference and
// computes the raw, filtered and noise corrected contrast.
func (ca *coreAnalyzer) CalculateWithOptions(ctx context.Context, pair Pair, chooser ThresholdChooser, options AnalysisOptions) (*SpeckleResult, error) {
	start := time.Now()
	if err := validateOptions(options); err != nil {
		return nil, err
	}
	if pair.Speckle == nil || pair.Speckle.Bounds().Empty() {
		return nil, apperrors.NewInvalidInputError("speckle image is empty", nil)
	}
	if pair.HasReference() && pair.Reference.Bounds().Size() != pair.Speckle.Bounds().Size() {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("reference %v and speckle %v differ in size",
			pair.Reference.Bounds().Size(), pair.Speckle.Bounds().Size()), nil)
	}

	result := &SpeckleResult{
		ReferenceContrastFiltered: SentinelContrast,
		CorrectedContrast:         SentinelContrast,
		ReferenceFlattened:        []float64{},
	}

	size := options.CropSize(pair.Speckle.Bounds().Dx())
	logger.WithFields(logrus.Fields{
		"window": size,
		"width":  pair.Speckle.Bounds().Dx(),
		"height": pair.Speckle.Bounds().Dy(),
	}).Debug("Finding brightest area")

	filter, err := FindBrightestArea(pair.Speckle, size, size)
	if err != nil {
		return nil, fmt.Errorf("locate brightest area: %w", err)
	}
	result.Crop = filter

	speckleCropped, err := Crop(pair.Speckle, filter)
	if err != nil {
		return nil, fmt.Errorf("crop speckle image: %w", err)
	}

	var referenceCropped, mask *image.Gray
	if pair.HasReference() {
		if referenceCropped, err = Crop(pair.Reference, filter); err != nil {
			return nil, fmt.Errorf("crop reference image: %w", err)
		}
		logger.Debug("Generating perforation mask")
		threshold, m, err := ca.perforationMask(ctx, referenceCropped, chooser, options.ErosionSize)
		if err != nil {
			return nil, err
		}
		result.Threshold, mask = threshold, m
	} else {
		mask = FullMask(filter.Width, filter.Height)
	}

	if pair.HasReference() {
		result.ReferenceFlattened, err = ca.calculator.Flatten(referenceCropped, mask)
		if err != nil {
			return nil, fmt.Errorf("flatten reference: %w", err)
		}
		filtered, err := ca.calculator.HighPass(result.ReferenceFlattened, options.LowPassSigma, options.GuardReferenceLowPass)
		if err != nil {
			return nil, fmt.Errorf("high pass reference: %w", err)
		}
		if result.ReferenceContrastFiltered, err = ca.calculator.Contrast(filtered); err != nil {
			return nil, fmt.Errorf("reference contrast: %w", err)
		}
	}

	if result.SpeckleFlattened, err = ca.calculator.Flatten(speckleCropped, mask); err != nil {
		return nil, fmt.Errorf("flatten speckle: %w", err)
	}
	if result.RawContrast, err = ca.calculator.Contrast(result.SpeckleFlattened); err != nil {
		return nil, fmt.Errorf("raw speckle contrast: %w", err)
	}
	filtered, err := ca.calculator.HighPass(result.SpeckleFlattened, options.LowPassSigma, options.GuardSpeckleLowPass)
	if err != nil {
		return nil, fmt.Errorf("high pass speckle: %w", err)
	}
	if result.FilteredContrast, err = ca.calculator.Contrast(filtered); err != nil {
		return nil, fmt.Errorf("filtered speckle contrast: %w", err)
	}

	switch {
	case !pair.HasReference():
		result.Notes = append(result.Notes, NoteNoReference)
	default:
		corrected, ok := ca.calculator.FinalContrast(result.FilteredContrast, result.ReferenceContrastFiltered)
		result.CorrectedContrast = corrected
		if !ok {
			result.Notes = append(result.Notes, NoteReferenceNoisy)
		}
	}

	result.ProcessingTimeSec = time.Since(start).Seconds()

	fields := logrus.Fields{
		"reference_filtered": result.ReferenceContrastFiltered,
		"raw":                result.RawContrast,
		"filtered":           result.FilteredContrast,
		"corrected":          result.CorrectedContrast,
		"crop":               fmt.Sprintf("%dx%d+%d+%d", filter.Width, filter.Height, filter.X, filter.Y),
	}
	if len(result.Notes) > 0 {
		logger.WithFields(fields).Warn(result.Notes[0])
	} else {
		logger.WithFields(fields).Info("Speckle contrast calculated")
	}
	return result, nil
}

// perforationMask asks the chooser for a threshold and builds the mask from it
func (ca *coreAnalyzer) perforationMask(ctx context.Context, reference *image.Gray, chooser ThresholdChooser, erosionSize int) (int, *image.Gray, error) {
	if chooser == nil {
		return 0, nil, apperrors.NewInvalidInputError("a threshold chooser is required when a reference is used", nil)
	}
	preview := Preview{Reference: reference, ErosionSize: erosionSize}
	threshold, err := chooser.ChooseThreshold(ctx, preview)
	if err != nil {
		return 0, nil, fmt.Errorf("choose perforation threshold: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return 0, nil, apperrors.NewTimeoutError("analysis cancelled while choosing a threshold", err)
	}
	mask, err := preview.Render(threshold)
	if err != nil {
		return 0, nil, fmt.Errorf("build perforation mask: %w", err)
	}
	return threshold, mask, nil
}

// Close releases analyzer resources
func (ca *coreAnalyzer) Close() error {
	return nil
}
