package models

import (
	"image"
	"time"
)

// SentinelContrast marks a contrast value that could not be computed
const SentinelContrast = -1.0

// CropFilter is the window cut out of both images of a pair
type CropFilter struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect returns the window as an image rectangle
func (c CropFilter) Rect() image.Rectangle {
	return image.Rect(c.X, c.Y, c.X+c.Width, c.Y+c.Height)
}

// SpeckleResult holds the contrast values of one analysed pair.
// Key names follow the stored result format.
type SpeckleResult struct {
	ReferenceContrastFiltered float64 `json:"fi_ref_speck"`
	RawContrast               float64 `json:"raw_speck"`
	FilteredContrast          float64 `json:"fi_speck"`
	CorrectedContrast         float64 `json:"dif_speck"`

	ReferenceFlattened []float64 `json:"ref_flattened"`
	SpeckleFlattened   []float64 `json:"speck_flattened"`

	Crop      CropFilter `json:"crop"`
	Threshold int        `json:"threshold,omitempty"`

	// Undercomputable values
	Notes []string `json:"notes,omitempty"`

	ProcessingTimeSec float64 `json:"processing_time_sec"`
}

// Measurement describes one entry of a batch
type Measurement struct {
	Path           string                 `json:"path" yaml:"path"`
	RefName        string                 `json:"refName,omitempty" yaml:"refName,omitempty"`
	ImgName        string                 `json:"imgName" yaml:"imgName" binding:"required"`
	Datatype       string                 `json:"datatype" yaml:"datatype" binding:"required"`
	UseRefImg      *bool                  `json:"useRefImg,omitempty" yaml:"useRefImg,omitempty"`
	DebayerChannel string                 `json:"debayerChannel,omitempty" yaml:"debayerChannel,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	SaveFileName   string                 `json:"saveFileName,omitempty" yaml:"saveFileName,omitempty"`
}

// UsesReference reports whether the reference image takes part. Unset means yes.
func (m Measurement) UsesReference() bool {
	return m.UseRefImg == nil || *m.UseRefImg
}

// Channel returns the requested colour channel, green when unset
func (m Measurement) Channel() string {
	if m.DebayerChannel == "" {
		return "g"
	}
	return m.DebayerChannel
}

// ImagePath is the location of the speckle image
func (m Measurement) ImagePath() string {
	return m.Path + m.ImgName + "." + m.Datatype
}

// ReferencePath is the location of the reference image
func (m Measurement) ReferencePath() string {
	return m.Path + m.RefName + "." + m.Datatype
}

// ImageInfo identifies the analysed image in a stored row. Path is the full
// image location, directory plus name and extension.
type ImageInfo struct {
	Name     string `json:"name"`
	Datatype string `json:"datatype"`
	Path     string `json:"path"`
}

// AnalysisRecord is one analysed measurement ready to be persisted
type AnalysisRecord struct {
	Timestamp time.Time              `json:"timestamp"`
	Image     ImageInfo              `json:"image"`
	Result    SpeckleResult          `json:"result"`
	Metadata  map[string]interface{} `json:"metadata"`
	Persisted bool                   `json:"persisted"`
}

// ValidationError represents a structured validation error
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}
