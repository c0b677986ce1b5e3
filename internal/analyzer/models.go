package analyzer

import (
	"image"

	"speckle-inspector/pkg/models"
)

// SpeckleResult is an alias to the shared models.SpeckleResult
type SpeckleResult = models.SpeckleResult

// CropFilter is an alias to the shared models.CropFilter
type CropFilter = models.CropFilter

// SentinelContrast marks contrast values that could not be computed
const SentinelContrast = models.SentinelContrast

// Pair is the single-channel input of one analysis. A nil Reference runs
// the measurement without noise correction and without a perforation mask.
type Pair struct {
	Speckle   *image.Gray
	Reference *image.Gray
}

// HasReference reports whether the pair carries a reference image
func (p Pair) HasReference() bool {
	return p.Reference != nil
}
