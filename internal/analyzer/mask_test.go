package analyzer

import (
	"testing"

	apperrors "speckle-inspector/internal/errors"
)

func TestPerforationMask_Threshold(t *testing.T) {
	// Values 0..99 laid out row by row
	img := createGray(10, 10, func(x, y int) uint8 { return uint8(y*10 + x) })

	for _, erosion := range []int{0, 1} {
		mask, err := PerforationMask(img, 40, erosion)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for i, v := range img.Pix {
			want := uint8(0)
			if v >= 40 {
				want = 255
			}
			if mask.Pix[i] != want {
				t.Fatalf("erosion %d: pixel value %d expected mask %d, got %d", erosion, v, want, mask.Pix[i])
			}
		}
	}
}

func TestPerforationMask_Erosion(t *testing.T) {
	t.Run("isolated pixel disappears", func(t *testing.T) {
		img := brightSquare(8, 8, 3, 3, 1, 1, 200, 0)
		mask, err := PerforationMask(img, 30, 2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ExcludedFraction(mask) != 1 {
			t.Errorf("expected the single bright pixel to be eroded, excluded fraction %f", ExcludedFraction(mask))
		}
	})

	t.Run("block shrinks", func(t *testing.T) {
		img := brightSquare(10, 10, 3, 3, 3, 3, 200, 0)
		mask, err := PerforationMask(img, 30, 2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		on := 0
		for _, v := range mask.Pix {
			if v > 0 {
				on++
			}
		}
		if on != 4 {
			t.Errorf("expected a 3x3 block to erode to 4 pixels, got %d", on)
		}
	})

	t.Run("bright image keeps its border", func(t *testing.T) {
		img := createGray(6, 6, func(x, y int) uint8 { return 180 })
		mask, err := PerforationMask(img, 30, 3)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ExcludedFraction(mask) != 0 {
			t.Errorf("expected no excluded pixels, got fraction %f", ExcludedFraction(mask))
		}
	})
}

func TestPerforationMask_InvalidInput(t *testing.T) {
	img := createGray(4, 4, func(x, y int) uint8 { return 100 })

	for _, threshold := range []int{0, 256, -3} {
		if _, err := PerforationMask(img, threshold, 2); !apperrors.IsType(err, apperrors.ErrorTypeInvalidInput) {
			t.Errorf("threshold %d: expected invalid input, got %v", threshold, err)
		}
	}
	if _, err := PerforationMask(nil, 30, 2); !apperrors.IsType(err, apperrors.ErrorTypeInvalidInput) {
		t.Errorf("expected invalid input for nil image, got %v", err)
	}
}

func TestFullMask(t *testing.T) {
	mask := FullMask(5, 3)
	if mask.Bounds().Dx() != 5 || mask.Bounds().Dy() != 3 {
		t.Fatalf("unexpected bounds %v", mask.Bounds())
	}
	for i, v := range mask.Pix {
		if v != 255 {
			t.Fatalf("pixel %d: expected 255, got %d", i, v)
		}
	}
}

func TestOtsuThreshold_SeparatesBimodalReference(t *testing.T) {
	img := createGray(16, 16, func(x, y int) uint8 {
		if x < 8 {
			return 20
		}
		return 200
	})

	threshold, err := OtsuThreshold(img)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if threshold <= 20 || threshold > 200 {
		t.Fatalf("expected a threshold between the two populations, got %d", threshold)
	}

	mask, err := Preview{Reference: img, ErosionSize: 0}.Render(threshold)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ExcludedFraction(mask); got != 0.5 {
		t.Errorf("expected the dark half to be excluded, got fraction %f", got)
	}
}

func TestExcludedFraction(t *testing.T) {
	mask := brightSquare(4, 4, 0, 0, 4, 1, 0, 255)
	if got := ExcludedFraction(mask); got != 0.25 {
		t.Errorf("expected 0.25, got %f", got)
	}
	if got := ExcludedFraction(nil); got != 0 {
		t.Errorf("expected 0 for nil mask, got %f", got)
	}
}
