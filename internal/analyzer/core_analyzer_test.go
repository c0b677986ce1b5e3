package analyzer

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	apperrors "speckle-inspector/internal/errors"
	"speckle-inspector/internal/raw"
)

func fixedChooser(threshold int) ThresholdChooser {
	return ThresholdChooserFunc(func(ctx context.Context, preview Preview) (int, error) {
		return threshold, nil
	})
}

func newTestAnalyzer(t *testing.T, opts AnalysisOptions) SpeckleAnalyzer {
	t.Helper()
	a, err := NewSpeckleAnalyzer(opts)
	if err != nil {
		t.Fatalf("failed to create analyzer: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

// checkerboard alternates between low and high so every window has contrast
func checkerboard(width, height int, low, high uint8) *image.Gray {
	return createGray(width, height, func(x, y int) uint8 {
		if (x+y)%2 == 0 {
			return low
		}
		return high
	})
}

func TestNewSpeckleAnalyzer_RejectsInvalidOptions(t *testing.T) {
	testCases := []struct {
		name string
		opts AnalysisOptions
	}{
		{"zero crop size", DefaultOptions().WithCropWindow(0, 9)},
		{"zero divisor", DefaultOptions().WithCropWindow(400, 0)},
		{"negative erosion", DefaultOptions().WithErosionSize(-1)},
		{"zero sigma", DefaultOptions().WithLowPassSigma(0)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewSpeckleAnalyzer(tc.opts); !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestEndToEnd_BrightSquareMosaic(t *testing.T) {
	mosaic := image.NewGray16(image.Rect(0, 0, 20, 20))
	for y := 8; y < 12; y++ {
		for x := 8; x < 12; x++ {
			mosaic.SetGray16(x, y, color.Gray16{Y: 255})
		}
	}
	pattern, err := raw.BGGR.Descriptor()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	frame := raw.NewFrame(mosaic, pattern, [4]int{0, 0, 0, 0}, [4]int{255, 255, 255, 255})

	normalized, err := raw.Normalize(frame)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	filter, err := FindBrightestArea(normalized, 2, 2)
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if filter.X < 8 || filter.X > 10 || filter.Y < 8 || filter.Y > 10 {
		t.Fatalf("expected a corner inside the bright square, got (%d,%d)", filter.X, filter.Y)
	}

	cropped, err := Crop(normalized, filter)
	if err != nil {
		t.Fatalf("crop: %v", err)
	}
	green, err := raw.Debayer(cropped, raw.ChannelGreen)
	if err != nil {
		t.Fatalf("debayer: %v", err)
	}

	calc := NewContrastCalculator()
	all, err := calc.Flatten(green, nil)
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	var sample []float64
	for _, v := range all {
		if v > 0 {
			sample = append(sample, v)
		}
	}
	if len(sample) == 0 {
		t.Fatal("expected green photosites inside the crop")
	}
	contrast, err := calc.Contrast(sample)
	if err != nil {
		t.Fatalf("contrast: %v", err)
	}
	if contrast != 0 {
		t.Errorf("expected contrast 0 for a uniform bright sample, got %v", contrast)
	}
}

func TestCalculate_WithoutReference(t *testing.T) {
	a := newTestAnalyzer(t, DefaultOptions().WithCropWindow(2, 9))
	speckle := brightSquare(20, 20, 8, 8, 4, 4, 255, 0)

	result, err := a.Calculate(context.Background(), Pair{Speckle: speckle}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Crop.X != 8 || result.Crop.Y != 8 || result.Crop.Width != 2 {
		t.Errorf("unexpected crop %+v", result.Crop)
	}
	if len(result.SpeckleFlattened) != 4 {
		t.Errorf("expected the full 2x2 window in the sample, got %d values", len(result.SpeckleFlattened))
	}
	if result.RawContrast != 0 {
		t.Errorf("expected raw contrast 0, got %v", result.RawContrast)
	}
	if math.Abs(result.FilteredContrast) > 1e-6 {
		t.Errorf("expected filtered contrast 0, got %v", result.FilteredContrast)
	}
	if result.ReferenceContrastFiltered != SentinelContrast || result.CorrectedContrast != SentinelContrast {
		t.Errorf("expected sentinels without a reference, got %v and %v",
			result.ReferenceContrastFiltered, result.CorrectedContrast)
	}
	if len(result.ReferenceFlattened) != 0 {
		t.Errorf("expected no reference sample, got %d values", len(result.ReferenceFlattened))
	}
	if len(result.Notes) != 1 || result.Notes[0] != NoteNoReference {
		t.Errorf("expected the no reference note, got %v", result.Notes)
	}
}

func TestCalculate_WithReference(t *testing.T) {
	a := newTestAnalyzer(t, DefaultOptions().WithCropWindow(12, 9))

	// Uniform reference with a dark perforation column at x=5
	reference := createGray(12, 12, func(x, y int) uint8 {
		if x == 5 {
			return 0
		}
		return 120
	})
	speckle := checkerboard(12, 12, 100, 150)

	var previewed image.Rectangle
	chooser := ThresholdChooserFunc(func(ctx context.Context, preview Preview) (int, error) {
		previewed = preview.Reference.Bounds()
		return 30, nil
	})

	result, err := a.Calculate(context.Background(), Pair{Speckle: speckle, Reference: reference}, chooser)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if previewed != image.Rect(0, 0, 12, 12) {
		t.Errorf("expected the chooser to see the cropped reference, got %v", previewed)
	}
	if result.Threshold != 30 {
		t.Errorf("expected threshold 30, got %d", result.Threshold)
	}
	// Erosion with a 2x2 square widens the column to x=5 and x=6
	if want := 12 * 10; len(result.ReferenceFlattened) != want || len(result.SpeckleFlattened) != want {
		t.Errorf("expected %d masked pixels, got reference %d speckle %d",
			want, len(result.ReferenceFlattened), len(result.SpeckleFlattened))
	}
	if math.Abs(result.ReferenceContrastFiltered) > 1e-6 {
		t.Errorf("expected a flat reference, got contrast %v", result.ReferenceContrastFiltered)
	}
	if result.RawContrast <= 0 || result.FilteredContrast <= 0 {
		t.Fatalf("expected positive speckle contrast, got raw %v filtered %v", result.RawContrast, result.FilteredContrast)
	}
	if math.Abs(result.CorrectedContrast-result.FilteredContrast) > 1e-6 {
		t.Errorf("expected corrected %v to match filtered %v for a noise free reference",
			result.CorrectedContrast, result.FilteredContrast)
	}
	if len(result.Notes) != 0 {
		t.Errorf("expected no notes, got %v", result.Notes)
	}
}

func TestCalculate_NoisyReference(t *testing.T) {
	a := newTestAnalyzer(t, DefaultOptions().WithCropWindow(8, 9))
	reference := checkerboard(8, 8, 50, 250)
	speckle := createGray(8, 8, func(x, y int) uint8 { return 200 })

	result, err := a.Calculate(context.Background(), Pair{Speckle: speckle, Reference: reference}, fixedChooser(30))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.CorrectedContrast != SentinelContrast {
		t.Errorf("expected the sentinel, got %v", result.CorrectedContrast)
	}
	if len(result.Notes) != 1 || result.Notes[0] != NoteReferenceNoisy {
		t.Errorf("expected the noisy reference note, got %v", result.Notes)
	}
}

func TestCalculate_Errors(t *testing.T) {
	speckle := checkerboard(20, 20, 10, 90)
	reference := createGray(20, 20, func(x, y int) uint8 { return 120 })
	errChooser := errors.New("window closed")

	testCases := []struct {
		name    string
		opts    AnalysisOptions
		pair    Pair
		chooser ThresholdChooser
		ctx     func() context.Context
		check   func(error) bool
	}{
		{
			name:  "default window larger than image",
			opts:  DefaultOptions(),
			pair:  Pair{Speckle: speckle},
			check: func(err error) bool { return apperrors.IsType(err, apperrors.ErrorTypeInvalidWindowSize) },
		},
		{
			name:  "empty speckle",
			opts:  DefaultOptions().WithCropWindow(2, 9),
			pair:  Pair{},
			check: func(err error) bool { return apperrors.IsType(err, apperrors.ErrorTypeInvalidInput) },
		},
		{
			name:  "reference size mismatch",
			opts:  DefaultOptions().WithCropWindow(2, 9),
			pair:  Pair{Speckle: speckle, Reference: createGray(10, 10, func(x, y int) uint8 { return 1 })},
			check: func(err error) bool { return apperrors.IsType(err, apperrors.ErrorTypeInvalidInput) },
		},
		{
			name:  "reference without chooser",
			opts:  DefaultOptions().WithCropWindow(4, 9),
			pair:  Pair{Speckle: speckle, Reference: reference},
			check: func(err error) bool { return apperrors.IsType(err, apperrors.ErrorTypeInvalidInput) },
		},
		{
			name: "chooser failure",
			opts: DefaultOptions().WithCropWindow(4, 9),
			pair: Pair{Speckle: speckle, Reference: reference},
			chooser: ThresholdChooserFunc(func(ctx context.Context, preview Preview) (int, error) {
				return 0, errChooser
			}),
			check: func(err error) bool { return errors.Is(err, errChooser) },
		},
		{
			name:    "mask excludes everything",
			opts:    DefaultOptions().WithCropWindow(4, 9),
			pair:    Pair{Speckle: speckle, Reference: reference},
			chooser: fixedChooser(255),
			check:   func(err error) bool { return apperrors.IsType(err, apperrors.ErrorTypeDegenerateSample) },
		},
		{
			name:    "cancelled while choosing",
			opts:    DefaultOptions().WithCropWindow(4, 9),
			pair:    Pair{Speckle: speckle, Reference: reference},
			chooser: fixedChooser(30),
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
			check: func(err error) bool { return apperrors.IsType(err, apperrors.ErrorTypeTimeout) },
		},
	}

	a := newTestAnalyzer(t, DefaultOptions())
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			if tc.ctx != nil {
				ctx = tc.ctx()
			}
			_, err := a.CalculateWithOptions(ctx, tc.pair, tc.chooser, tc.opts)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !tc.check(err) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
