package raw

import (
	"fmt"
	"image"
	"image/draw"
	"io"
	"strings"
	"sync"

	apperrors "speckle-inspector/internal/errors"

	"golang.org/x/image/tiff"
	"gopkg.in/yaml.v3"
)

// Raw format tags by camera vendor
var RawFormats = map[string]string{
	"PANASONIC": "RW2",
	"CANON":     "CR2",
	"CFA":       "TIFF",
}

// SidecarSuffix is appended to a mosaic path to find its calibration file
const SidecarSuffix = ".yaml"

// Decoder turns a stored raw capture and its calibration into a frame
type Decoder interface {
	Decode(mosaic io.Reader, calibration io.Reader) (RawFrame, error)
}

// Calibration is the sidecar layout read by CFADecoder
type Calibration struct {
	Pattern    string  `yaml:"pattern"`
	Descriptor [][]int `yaml:"descriptor"`
	BlackLevel []int   `yaml:"black_level"`
	WhiteLevel []int   `yaml:"white_level"`
}

func (c Calibration) descriptor() ([2][2]ColorIndex, error) {
	if c.Pattern != "" {
		return BayerPattern(strings.ToUpper(c.Pattern)).Descriptor()
	}
	var d [2][2]ColorIndex
	if len(c.Descriptor) != 2 || len(c.Descriptor[0]) != 2 || len(c.Descriptor[1]) != 2 {
		return d, apperrors.NewInvalidInputError("calibration needs a pattern name or a 2x2 descriptor", nil)
	}
	for y := range d {
		for x := range d[y] {
			d[y][x] = ColorIndex(c.Descriptor[y][x])
		}
	}
	return d, nil
}

func levels(name string, values []int) ([4]int, error) {
	var out [4]int
	switch len(values) {
	case 1:
		for i := range out {
			out[i] = values[0]
		}
	case 4:
		copy(out[:], values)
	default:
		return out, apperrors.NewInvalidInputError(fmt.Sprintf("%s needs 1 or 4 values, got %d", name, len(values)), nil)
	}
	return out, nil
}

// CFADecoder reads an undemosaiced sensor dump stored as a single channel
// TIFF (dcraw -D -4 -T or similar) with a YAML calibration sidecar.
type CFADecoder struct{}

func (CFADecoder) Decode(mosaic io.Reader, calibration io.Reader) (RawFrame, error) {
	img, err := tiff.Decode(mosaic)
	if err != nil {
		return nil, apperrors.NewInvalidInputError("input is not a raw capture: failed to decode CFA TIFF", err)
	}

	var gray16 *image.Gray16
	switch m := img.(type) {
	case *image.Gray16:
		gray16 = m
	case *image.Gray:
		gray16 = image.NewGray16(m.Bounds())
		draw.Draw(gray16, m.Bounds(), m, m.Bounds().Min, draw.Src)
	default:
		return nil, apperrors.NewInvalidInputError(
			fmt.Sprintf("input is not a raw capture: expected a single channel mosaic, got %T", img), nil)
	}

	var cal Calibration
	if err := yaml.NewDecoder(calibration).Decode(&cal); err != nil {
		return nil, apperrors.NewInvalidInputError("failed to read raw calibration", err)
	}
	pattern, err := cal.descriptor()
	if err != nil {
		return nil, err
	}
	black, err := levels("black_level", cal.BlackLevel)
	if err != nil {
		return nil, err
	}
	white, err := levels("white_level", cal.WhiteLevel)
	if err != nil {
		return nil, err
	}

	return NewFrame(gray16, pattern, black, white), nil
}

// Registry maps format tags to raw decoders
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]Decoder
}

// NewRegistry returns a registry that decodes CFA TIFF exports. The
// proprietary containers stay recognised as raw but need a decoder.
func NewRegistry() *Registry {
	r := &Registry{decoders: make(map[string]Decoder)}
	r.Register(RawFormats["CFA"], CFADecoder{})
	return r
}

// Register installs a decoder for a format tag
func (r *Registry) Register(format string, d Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[strings.ToUpper(format)] = d
}

// IsRaw reports whether the format tag names a raw capture
func (r *Registry) IsRaw(format string) bool {
	format = strings.ToUpper(format)
	for _, tag := range RawFormats {
		if tag == format {
			return true
		}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.decoders[format]
	return ok
}

// Decoder returns the decoder registered for a raw format tag
func (r *Registry) Decoder(format string) (Decoder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.decoders[strings.ToUpper(format)]
	if !ok {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("no raw decoder registered for format %q", format), nil)
	}
	return d, nil
}
