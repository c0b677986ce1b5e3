package analyzer

import (
	"fmt"
	"image"

	apperrors "speckle-inspector/internal/errors"

	"gocv.io/x/gocv"
)

const (
	// MinThreshold and MaxThreshold bound a perforation threshold
	MinThreshold = 1
	MaxThreshold = 255

	maskOn = 255
)

// PerforationMask marks pixels at or above threshold with 255 and then
// erodes the bright area with an erosionSize x erosionSize square. An
// erosion size of 1 or less leaves the thresholded mask as is.
func PerforationMask(img *image.Gray, threshold, erosionSize int) (*image.Gray, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, apperrors.NewInvalidInputError("cannot mask an empty image", nil)
	}
	if threshold < MinThreshold || threshold > MaxThreshold {
		return nil, apperrors.NewInvalidInputError(
			fmt.Sprintf("threshold %d outside %d-%d", threshold, MinThreshold, MaxThreshold), nil)
	}

	src, err := grayToMat(img)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	mask := gocv.NewMat()
	defer mask.Close()
	// THRESH_BINARY keeps values strictly above thresh
	gocv.Threshold(src, &mask, float32(threshold-1), maskOn, gocv.ThresholdBinary)

	if erosionSize > 1 {
		kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(erosionSize, erosionSize))
		defer kernel.Close()
		eroded := gocv.NewMat()
		defer eroded.Close()
		if err := gocv.Erode(mask, &eroded, kernel); err != nil {
			return nil, apperrors.NewProcessingError("failed to erode perforation mask", err)
		}
		return matToGray(eroded)
	}
	return matToGray(mask)
}

// FullMask includes every pixel of a w x h image
func FullMask(w, h int) *image.Gray {
	mask := image.NewGray(image.Rect(0, 0, w, h))
	for i := range mask.Pix {
		mask.Pix[i] = maskOn
	}
	return mask
}

// OtsuThreshold picks the threshold that best separates the two intensity
// populations of img
func OtsuThreshold(img *image.Gray) (int, error) {
	if img == nil || img.Bounds().Empty() {
		return 0, apperrors.NewInvalidInputError("cannot pick a threshold for an empty image", nil)
	}
	src, err := grayToMat(img)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	t := int(gocv.Threshold(src, &dst, 0, maskOn, gocv.ThresholdBinary|gocv.ThresholdOtsu))

	// Otsu reports the last value of the dark class; the mask starts one above
	t++
	if t > MaxThreshold {
		t = MaxThreshold
	}
	return t, nil
}

// ExcludedFraction is the share of mask pixels that are 0
func ExcludedFraction(mask *image.Gray) float64 {
	if mask == nil || len(mask.Pix) == 0 {
		return 0
	}
	b := mask.Bounds()
	var excluded int
	for y := 0; y < b.Dy(); y++ {
		for _, v := range mask.Pix[y*mask.Stride : y*mask.Stride+b.Dx()] {
			if v == 0 {
				excluded++
			}
		}
	}
	return float64(excluded) / float64(b.Dx()*b.Dy())
}

// Preview lets a threshold chooser look at candidate masks before one is
// used for the measurement
type Preview struct {
	Reference   *image.Gray
	ErosionSize int
}

// Render builds the mask a threshold would produce
func (p Preview) Render(threshold int) (*image.Gray, error) {
	return PerforationMask(p.Reference, threshold, p.ErosionSize)
}
