package raw

import (
	"fmt"
	"image"

	apperrors "speckle-inspector/internal/errors"
	"speckle-inspector/internal/logger"

	"github.com/sirupsen/logrus"
)

// calibration is the black level and usable range of one colour
type calibration struct {
	black int
	span  int
}

func (c calibration) scale(v int) uint8 {
	if v <= c.black {
		return 0
	}
	if v >= c.black+c.span {
		return 255
	}
	return uint8(float64(v-c.black) / float64(c.span) * 255)
}

// Normalize converts a raw frame into an 8-bit mosaic laid out as BGGR.
// Frames starting with green lose their first and last column (GBRG) or row
// (GRBG), frames starting with red lose both.
func Normalize(frame RawFrame) (*image.Gray, error) {
	if frame == nil || frame.Mosaic() == nil {
		return nil, apperrors.NewInvalidInputError("input is not a raw capture: missing sensor mosaic", nil)
	}
	mosaic := frame.Mosaic()
	if mosaic.Bounds().Empty() {
		return nil, apperrors.NewInvalidInputError("input is not a raw capture: empty sensor mosaic", nil)
	}

	pattern, err := DetectPattern(frame.Pattern())
	if err != nil {
		return nil, err
	}

	black, white := frame.BlackLevels(), frame.WhiteLevels()
	var cal [4]calibration
	for i := range cal {
		if white[i] <= black[i] {
			return nil, apperrors.NewInvalidInputError(
				fmt.Sprintf("white level %d must exceed black level %d for color %d", white[i], black[i], i), nil)
		}
		cal[i] = calibration{black: black[i], span: white[i] - black[i]}
	}

	region, err := bggrRegion(mosaic.Bounds(), pattern)
	if err != nil {
		return nil, err
	}
	if pattern != BGGR {
		logger.WithFields(logrus.Fields{
			"from": string(pattern),
			"to":   string(BGGR),
		}).Debug("Converting bayer pattern")
	}

	width, height := region.Dx(), region.Dy()
	out := image.NewGray(image.Rect(0, 0, width, height))

	perChannel := black[Red] != black[Green1] || black[Blue] != black[Red]
	for y := 0; y < height; y++ {
		row := out.Pix[y*out.Stride : y*out.Stride+width]
		for x := 0; x < width; x++ {
			v := int(mosaic.Gray16At(region.Min.X+x, region.Min.Y+y).Y)
			if !perChannel {
				row[x] = cal[Red].scale(v)
				continue
			}
			switch {
			case y%2 != x%2:
				row[x] = cal[Green1].scale(v)
			case y%2 == 0:
				row[x] = cal[Blue].scale(v)
			default:
				row[x] = cal[Red].scale(v)
			}
		}
	}

	return out, nil
}

// bggrRegion returns the part of the mosaic whose top-left photosite is blue
func bggrRegion(bounds image.Rectangle, pattern BayerPattern) (image.Rectangle, error) {
	r := bounds
	trimCols := pattern == GBRG || pattern == RGGB
	trimRows := pattern == GRBG || pattern == RGGB

	if trimCols {
		r.Min.X++
		r.Max.X--
	}
	if trimRows {
		r.Min.Y++
		r.Max.Y--
	}
	if r.Empty() {
		return image.Rectangle{}, apperrors.NewInvalidInputError(
			fmt.Sprintf("mosaic %dx%d too small to convert %s to BGGR", bounds.Dx(), bounds.Dy(), pattern), nil)
	}
	return r, nil
}
