package analyzer

import (
	"image"
	"math/rand"
	"testing"

	apperrors "speckle-inspector/internal/errors"
)

func createGray(width, height int, value func(x, y int) uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Pix[y*img.Stride+x] = value(x, y)
		}
	}
	return img
}

func brightSquare(width, height, x0, y0, w, h int, on, off uint8) *image.Gray {
	return createGray(width, height, func(x, y int) uint8 {
		if x >= x0 && x < x0+w && y >= y0 && y < y0+h {
			return on
		}
		return off
	})
}

func TestFindBrightestArea_UniformRegion(t *testing.T) {
	testCases := []struct {
		name         string
		x, y, w, h   int
		imageW, imgH int
	}{
		{"square in the middle", 5, 7, 4, 4, 20, 20},
		{"wide window", 0, 3, 6, 2, 12, 10},
		{"bottom right corner", 16, 16, 4, 4, 20, 20},
		{"window equals image", 0, 0, 8, 6, 8, 6},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			img := brightSquare(tc.imageW, tc.imgH, tc.x, tc.y, tc.w, tc.h, 200, 10)
			filter, err := FindBrightestArea(img, tc.w, tc.h)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			want := CropFilter{X: tc.x, Y: tc.y, Width: tc.w, Height: tc.h}
			if filter != want {
				t.Errorf("expected %+v, got %+v", want, filter)
			}
		})
	}
}

func TestFindBrightestArea_FirstMaximumWins(t *testing.T) {
	t.Run("flat image", func(t *testing.T) {
		img := createGray(10, 10, func(x, y int) uint8 { return 50 })
		filter, err := FindBrightestArea(img, 3, 3)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if filter.X != 0 || filter.Y != 0 {
			t.Errorf("expected the top-left window, got (%d,%d)", filter.X, filter.Y)
		}
	})

	t.Run("two equal regions", func(t *testing.T) {
		img := createGray(12, 12, func(x, y int) uint8 {
			if (x >= 7 && x < 9 && y >= 2 && y < 4) || (x >= 1 && x < 3 && y >= 8 && y < 10) {
				return 255
			}
			return 0
		})
		filter, err := FindBrightestArea(img, 2, 2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// The upper region comes first in row-major order
		if filter.X != 7 || filter.Y != 2 {
			t.Errorf("expected (7,2), got (%d,%d)", filter.X, filter.Y)
		}
	})
}

func TestFindBrightestArea_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	img := createGray(31, 17, func(x, y int) uint8 { return uint8(rng.Intn(256)) })

	const w, h = 5, 4
	bestSum, bestX, bestY := -1, 0, 0
	for y := 0; y+h <= 17; y++ {
		for x := 0; x+w <= 31; x++ {
			sum := 0
			for dy := 0; dy < h; dy++ {
				for dx := 0; dx < w; dx++ {
					sum += int(img.Pix[(y+dy)*img.Stride+x+dx])
				}
			}
			if sum > bestSum {
				bestSum, bestX, bestY = sum, x, y
			}
		}
	}

	filter, err := FindBrightestArea(img, w, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filter.X != bestX || filter.Y != bestY {
		t.Errorf("expected (%d,%d), got (%d,%d)", bestX, bestY, filter.X, filter.Y)
	}
}

func TestFindBrightestArea_InvalidWindow(t *testing.T) {
	img := createGray(10, 8, func(x, y int) uint8 { return 1 })

	testCases := []struct {
		name string
		w, h int
	}{
		{"zero width", 0, 2},
		{"negative height", 2, -1},
		{"too wide", 11, 2},
		{"too tall", 2, 9},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FindBrightestArea(img, tc.w, tc.h)
			if !apperrors.IsType(err, apperrors.ErrorTypeInvalidWindowSize) {
				t.Errorf("expected invalid window size error, got %v", err)
			}
		})
	}

	if _, err := FindBrightestArea(nil, 1, 1); !apperrors.IsType(err, apperrors.ErrorTypeInvalidInput) {
		t.Errorf("expected invalid input for a nil image, got %v", err)
	}
}

func TestCrop(t *testing.T) {
	img := createGray(6, 6, func(x, y int) uint8 { return uint8(y*6 + x) })

	cropped, err := Crop(img, CropFilter{X: 2, Y: 1, Width: 3, Height: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cropped.Bounds() != image.Rect(0, 0, 3, 2) {
		t.Fatalf("unexpected bounds %v", cropped.Bounds())
	}
	if got := cropped.GrayAt(0, 0).Y; got != 8 {
		t.Errorf("expected top-left value 8, got %d", got)
	}
	if got := cropped.GrayAt(2, 1).Y; got != 16 {
		t.Errorf("expected bottom-right value 16, got %d", got)
	}

	cropped.Pix[0] = 255
	if img.GrayAt(2, 1).Y != 8 {
		t.Error("crop must not share memory with the source")
	}

	if _, err := Crop(img, CropFilter{X: 4, Y: 4, Width: 3, Height: 3}); !apperrors.IsType(err, apperrors.ErrorTypeInvalidWindowSize) {
		t.Errorf("expected invalid window size for an out of bounds crop, got %v", err)
	}
}
