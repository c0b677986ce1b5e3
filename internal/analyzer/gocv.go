package analyzer

import (
	"fmt"
	"image"

	apperrors "speckle-inspector/internal/errors"

	"github.com/ajroetker/go-highway/hwy/contrib/vec"
	"gocv.io/x/gocv"
)

// grayToMat copies an 8-bit image into a single channel Mat
func grayToMat(img *image.Gray) (gocv.Mat, error) {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()

	// Sub-images keep the parent stride
	buf := img.Pix
	if img.Stride != width {
		buf = make([]byte, width*height)
		for y := 0; y < height; y++ {
			copy(buf[y*width:(y+1)*width], img.Pix[y*img.Stride:y*img.Stride+width])
		}
	}

	mat, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC1, buf[:width*height])
	if err != nil {
		return gocv.Mat{}, apperrors.NewProcessingError("failed to wrap image for OpenCV", err)
	}
	return mat, nil
}

// matToGray copies a single channel 8-bit Mat into a new image
func matToGray(mat gocv.Mat) (*image.Gray, error) {
	if mat.Type() != gocv.MatTypeCV8UC1 {
		return nil, apperrors.NewProcessingError(fmt.Sprintf("expected an 8-bit single channel Mat, got type %d", mat.Type()), nil)
	}
	out := image.NewGray(image.Rect(0, 0, mat.Cols(), mat.Rows()))
	copy(out.Pix, mat.ToBytes())
	return out, nil
}

// samplesToMat wraps a sample as a 1xN float64 row
func samplesToMat(sample []float64) (gocv.Mat, error) {
	buf := make([]byte, len(sample)*8)
	vec.EncodeFloat64s(buf, sample)
	mat, err := gocv.NewMatFromBytes(1, len(sample), gocv.MatTypeCV64F, buf)
	if err != nil {
		return gocv.Mat{}, apperrors.NewProcessingError("failed to wrap sample for OpenCV", err)
	}
	return mat, nil
}

// matToSamples copies a float64 row back into Go memory
func matToSamples(mat gocv.Mat) []float64 {
	out := make([]float64, mat.Total())
	vec.DecodeFloat64s(out, mat.ToBytes())
	return out
}

// DecodePlane decodes a standard colour image and returns one of its planes.
// Planes are indexed in OpenCV's BGR order.
func DecodePlane(data []byte, plane int) (*image.Gray, error) {
	if plane < 0 || plane > 2 {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("colour plane %d out of range", plane), nil)
	}
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, apperrors.NewInvalidInputError("failed to decode image", err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, apperrors.NewInvalidInputError("input is not a decodable image", nil)
	}

	channel := gocv.NewMat()
	defer channel.Close()
	if err := gocv.ExtractChannel(mat, &channel, plane); err != nil {
		return nil, apperrors.NewProcessingError("failed to extract colour plane", err)
	}
	return matToGray(channel)
}
