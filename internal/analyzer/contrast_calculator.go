package analyzer

import (
	"fmt"
	"image"
	"math"

	apperrors "speckle-inspector/internal/errors"

	"github.com/ajroetker/go-highway/hwy/contrib/vec"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"
)

// gaussianTruncate is the kernel radius in standard deviations
const gaussianTruncate = 4.0

// contrastCalculator implements ContrastCalculator interface
type contrastCalculator struct{}

// NewContrastCalculator creates a new contrast calculator
func NewContrastCalculator() ContrastCalculator {
	return &contrastCalculator{}
}

// Flatten collects the pixels whose mask value is above 0 in row-major
// order. A nil mask selects every pixel.
func (cc *contrastCalculator) Flatten(img *image.Gray, mask *image.Gray) ([]float64, error) {
	if img == nil {
		return nil, apperrors.NewInvalidInputError("cannot flatten a missing image", nil)
	}
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	if mask != nil && (mask.Bounds().Dx() != width || mask.Bounds().Dy() != height) {
		return nil, apperrors.NewInvalidInputError(
			fmt.Sprintf("mask %dx%d does not match image %dx%d", mask.Bounds().Dx(), mask.Bounds().Dy(), width, height), nil)
	}

	sample := make([]float64, 0, width*height)
	for y := 0; y < height; y++ {
		pix := img.Pix[y*img.Stride : y*img.Stride+width]
		if mask == nil {
			for _, v := range pix {
				sample = append(sample, float64(v))
			}
			continue
		}
		m := mask.Pix[y*mask.Stride : y*mask.Stride+width]
		for x, v := range pix {
			if m[x] > 0 {
				sample = append(sample, float64(v))
			}
		}
	}
	return sample, nil
}

// Contrast is the population standard deviation over the mean, in percent
func (cc *contrastCalculator) Contrast(sample []float64) (float64, error) {
	if len(sample) == 0 {
		return 0, apperrors.NewDegenerateSampleError("contrast of an empty sample is undefined")
	}
	mean, std := stat.PopMeanStdDev(sample, nil)
	if mean == 0 {
		return 0, apperrors.NewDegenerateSampleError("contrast of a zero-mean sample is undefined")
	}
	return std / mean * 100, nil
}

// HighPass divides the sample by its Gaussian low pass. The sample is
// treated as a single row and mirrored at the ends. With the guard on, a low
// pass containing an exact 0 is shifted up by 1 before dividing.
func (cc *contrastCalculator) HighPass(sample []float64, sigma float64, guardAgainstZeroLowPass bool) ([]float64, error) {
	if len(sample) == 0 {
		return nil, apperrors.NewDegenerateSampleError("cannot high-pass an empty sample")
	}
	if sigma <= 0 {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("low pass sigma must be positive, got %g", sigma), nil)
	}

	low, err := gaussianLowPass(sample, sigma)
	if err != nil {
		return nil, err
	}
	if guardAgainstZeroLowPass && vec.MinFloat64(low) == 0 {
		vec.AddConstFloat64(1, low)
	}

	out := make([]float64, len(sample))
	vec.DivToFloat64(out, sample, low)
	return out, nil
}

func gaussianLowPass(sample []float64, sigma float64) ([]float64, error) {
	src, err := samplesToMat(sample)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()

	radius := int(gaussianTruncate*sigma + 0.5)
	ksize := image.Pt(2*radius+1, 1)
	if err := gocv.GaussianBlur(src, &dst, ksize, sigma, 0, gocv.BorderReflect101); err != nil {
		return nil, apperrors.NewProcessingError("gaussian low pass failed", err)
	}
	return matToSamples(dst), nil
}

// FinalContrast removes the reference noise from the filtered speckle
// contrast. ok is false when the reference is at least as noisy as the
// measurement, in which case the sentinel is returned.
func (cc *contrastCalculator) FinalContrast(filteredSpeckle, filteredReference float64) (float64, bool) {
	radicand := filteredSpeckle*filteredSpeckle - filteredReference*filteredReference
	if radicand > 0 {
		return math.Sqrt(radicand), true
	}
	return SentinelContrast, false
}
