package raw

import (
	"image"

	apperrors "speckle-inspector/internal/errors"
)

// Debayer extracts one colour channel from a BGGR mosaic.
//
// Green photosites sit on a diagonal lattice, so the green image is the
// lattice rotated by 45 degrees: ceil((H+W)/2)-1 rows by ceil((H+W)/2)
// columns. Red and blue keep their rectangular half-resolution grid of
// ceil(H/2)+1 rows by ceil(W/2)+1 columns. Cells no photosite maps to stay 0.
func Debayer(mosaic *image.Gray, channel Channel) (*image.Gray, error) {
	if mosaic == nil || mosaic.Bounds().Empty() {
		return nil, apperrors.NewInvalidInputError("cannot debayer an empty mosaic", nil)
	}

	switch channel {
	case ChannelGreen:
		return debayerGreen(mosaic), nil
	case ChannelRed:
		return debayerRedBlue(mosaic, 1), nil
	case ChannelBlue:
		return debayerRedBlue(mosaic, 0), nil
	}
	return nil, apperrors.NewInvalidChannelError(string(channel))
}

func debayerGreen(mosaic *image.Gray) *image.Gray {
	b := mosaic.Bounds()
	height, width := b.Dy(), b.Dx()

	newWidth := ceilHalf(height + width)
	newHeight := newWidth - 1
	out := image.NewGray(image.Rect(0, 0, newWidth, newHeight))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if y%2 == x%2 {
				continue
			}
			newY := ceilHalf(y+x) - 1
			newX := ceilHalf(width - 1 - x + y)
			out.Pix[newY*out.Stride+newX] = mosaic.GrayAt(b.Min.X+x, b.Min.Y+y).Y
		}
	}
	return out
}

// debayerRedBlue keeps the photosites whose row and column both have the
// given parity: 0 for blue, 1 for red.
func debayerRedBlue(mosaic *image.Gray, parity int) *image.Gray {
	b := mosaic.Bounds()
	height, width := b.Dy(), b.Dx()

	out := image.NewGray(image.Rect(0, 0, ceilHalf(width)+1, ceilHalf(height)+1))

	for y := parity; y < height; y += 2 {
		for x := parity; x < width; x += 2 {
			out.Pix[ceilHalf(y)*out.Stride+ceilHalf(x)] = mosaic.GrayAt(b.Min.X+x, b.Min.Y+y).Y
		}
	}
	return out
}

// ceilHalf is ceil(n/2) for n >= 0
func ceilHalf(n int) int {
	return (n + 1) / 2
}

// Process normalizes a raw frame and extracts a single channel
func Process(frame RawFrame, channel Channel) (*image.Gray, error) {
	normalized, err := Normalize(frame)
	if err != nil {
		return nil, err
	}
	return Debayer(normalized, channel)
}

// ProcessPair runs Process on a speckle frame and its reference
func ProcessPair(speckle, reference RawFrame, channel Channel) (*image.Gray, *image.Gray, error) {
	speckleOut, err := Process(speckle, channel)
	if err != nil {
		return nil, nil, err
	}
	referenceOut, err := Process(reference, channel)
	if err != nil {
		return nil, nil, err
	}
	return speckleOut, referenceOut, nil
}
