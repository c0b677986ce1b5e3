package analyzer

import (
	"fmt"
	"image"
	"image/draw"

	apperrors "speckle-inspector/internal/errors"

	"github.com/ajroetker/go-highway/hwy/contrib/algo"
)

// integralImage is a (H+1)x(W+1) table where cell (y, x) holds the sum of all
// pixels above and left of (y, x). int64 keeps full resolution frames exact.
type integralImage struct {
	stride int
	sums   []int64
}

func newIntegralImage(img *image.Gray) integralImage {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	stride := width + 1

	ii := integralImage{stride: stride, sums: make([]int64, stride*(height+1))}
	row := make([]int64, width)
	for y := 0; y < height; y++ {
		pix := img.Pix[y*img.Stride : y*img.Stride+width]
		for x, v := range pix {
			row[x] = int64(v)
		}
		algo.PrefixSum(row)

		above := ii.sums[y*stride+1 : y*stride+stride]
		cur := ii.sums[(y+1)*stride+1 : (y+1)*stride+stride]
		for x := range cur {
			cur[x] = above[x] + row[x]
		}
	}
	return ii
}

func (ii integralImage) at(x, y int) int64 {
	return ii.sums[y*ii.stride+x]
}

// windowSum is the sum of the w x h window with its top-left corner at (x, y)
func (ii integralImage) windowSum(x, y, w, h int) int64 {
	return ii.at(x+w, y+h) - ii.at(x, y+h) - ii.at(x+w, y) + ii.at(x, y)
}

// FindBrightestArea returns the w x h window with the largest pixel sum.
// Windows are scanned top to bottom, left to right and the first maximum wins.
func FindBrightestArea(img *image.Gray, w, h int) (CropFilter, error) {
	if img == nil || img.Bounds().Empty() {
		return CropFilter{}, apperrors.NewInvalidInputError("cannot search an empty image", nil)
	}
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return CropFilter{}, apperrors.NewInvalidWindowSizeError(fmt.Sprintf("window %dx%d must be positive", w, h))
	}
	if w > width || h > height {
		return CropFilter{}, apperrors.NewInvalidWindowSizeError(
			fmt.Sprintf("window %dx%d does not fit into %dx%d image", w, h, width, height))
	}

	ii := newIntegralImage(img)

	best := CropFilter{Width: w, Height: h}
	maxSum := int64(-1)
	for y := 0; y <= height-h; y++ {
		for x := 0; x <= width-w; x++ {
			if sum := ii.windowSum(x, y, w, h); sum > maxSum {
				maxSum = sum
				best.X, best.Y = x, y
			}
		}
	}
	return best, nil
}

// Crop copies the window out of the image. The result does not share
// memory with img.
func Crop(img *image.Gray, filter CropFilter) (*image.Gray, error) {
	if img == nil {
		return nil, apperrors.NewInvalidInputError("cannot crop a missing image", nil)
	}
	b := img.Bounds()
	r := filter.Rect().Add(b.Min)
	if filter.Width <= 0 || filter.Height <= 0 || !r.In(b) {
		return nil, apperrors.NewInvalidWindowSizeError(
			fmt.Sprintf("crop %dx%d at (%d,%d) outside %dx%d image", filter.Width, filter.Height, filter.X, filter.Y, b.Dx(), b.Dy()))
	}

	out := image.NewGray(image.Rect(0, 0, filter.Width, filter.Height))
	draw.Draw(out, out.Bounds(), img, r.Min, draw.Src)
	return out, nil
}
