package raw

import (
	"fmt"
	"image"
	"strings"

	apperrors "speckle-inspector/internal/errors"
)

// ColorIndex identifies the colour of one photosite in a bayer descriptor
type ColorIndex int

const (
	Red    ColorIndex = 0
	Green1 ColorIndex = 1
	Blue   ColorIndex = 2
	Green2 ColorIndex = 3
)

func (c ColorIndex) isGreen() bool {
	return c == Green1 || c == Green2
}

// BayerPattern is one of the four canonical 2x2 layouts
type BayerPattern string

const (
	RGGB BayerPattern = "RGGB"
	GBRG BayerPattern = "GBRG"
	GRBG BayerPattern = "GRBG"
	BGGR BayerPattern = "BGGR"
)

// Descriptor returns the 2x2 colour map of the pattern
func (p BayerPattern) Descriptor() ([2][2]ColorIndex, error) {
	switch p {
	case RGGB:
		return [2][2]ColorIndex{{Red, Green1}, {Green2, Blue}}, nil
	case GBRG:
		return [2][2]ColorIndex{{Green1, Blue}, {Red, Green2}}, nil
	case GRBG:
		return [2][2]ColorIndex{{Green1, Red}, {Blue, Green2}}, nil
	case BGGR:
		return [2][2]ColorIndex{{Blue, Green1}, {Green2, Red}}, nil
	}
	return [2][2]ColorIndex{}, apperrors.NewInvalidInputError(fmt.Sprintf("unknown bayer pattern %q", string(p)), nil)
}

// DetectPattern identifies the layout from the top-left block of a descriptor.
// The descriptor must hold red, blue and two greens.
func DetectPattern(d [2][2]ColorIndex) (BayerPattern, error) {
	var reds, greens, blues int
	for _, row := range d {
		for _, c := range row {
			switch {
			case c == Red:
				reds++
			case c == Blue:
				blues++
			case c.isGreen():
				greens++
			default:
				return "", apperrors.NewInvalidInputError(fmt.Sprintf("unknown color index %d in bayer pattern", c), nil)
			}
		}
	}
	if reds != 1 || blues != 1 || greens != 2 {
		return "", apperrors.NewInvalidInputError(fmt.Sprintf("bayer pattern %v is not a 2x2 RGGB permutation", d), nil)
	}

	switch {
	case d[0][0] == Blue:
		return BGGR, nil
	case d[0][0] == Red:
		return RGGB, nil
	case d[0][1] == Blue:
		return GBRG, nil
	default:
		return GRBG, nil
	}
}

// RawFrame is a raw sensor capture: the mosaic plus its calibration.
// Black and white levels are indexed by ColorIndex.
type RawFrame interface {
	Mosaic() *image.Gray16
	Pattern() [2][2]ColorIndex
	BlackLevels() [4]int
	WhiteLevels() [4]int
}

// Frame is the concrete RawFrame produced by the decoders
type Frame struct {
	mosaic  *image.Gray16
	pattern [2][2]ColorIndex
	black   [4]int
	white   [4]int
}

// NewFrame builds a frame from a mosaic and its calibration
func NewFrame(mosaic *image.Gray16, pattern [2][2]ColorIndex, black, white [4]int) *Frame {
	return &Frame{mosaic: mosaic, pattern: pattern, black: black, white: white}
}

func (f *Frame) Mosaic() *image.Gray16     { return f.mosaic }
func (f *Frame) Pattern() [2][2]ColorIndex { return f.pattern }
func (f *Frame) BlackLevels() [4]int       { return f.black }
func (f *Frame) WhiteLevels() [4]int       { return f.white }

// Channel selects which photosites a debayer keeps
type Channel string

const (
	ChannelRed   Channel = "r"
	ChannelGreen Channel = "g"
	ChannelBlue  Channel = "b"
)

// ParseChannel accepts a single letter r, g or b in either case
func ParseChannel(s string) (Channel, error) {
	switch strings.ToLower(s) {
	case "r":
		return ChannelRed, nil
	case "g":
		return ChannelGreen, nil
	case "b":
		return ChannelBlue, nil
	}
	return "", apperrors.NewInvalidChannelError(s)
}
