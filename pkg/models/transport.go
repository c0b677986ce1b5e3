package models

// AnalyzeRequest asks for a single measurement to be analysed.
// Threshold selects a fixed perforation threshold; Strategy "otsu" picks one
// automatically.
type AnalyzeRequest struct {
	Measurement Measurement `json:"measurement"`
	Strategy    string      `json:"strategy,omitempty" binding:"omitempty,oneof=fixed otsu"`
	Threshold   int         `json:"threshold,omitempty" binding:"omitempty,min=1,max=255"`
}

// BatchRequest asks for a list of measurements to be analysed in order
type BatchRequest struct {
	Measurements []Measurement `json:"measurements" binding:"required,min=1,dive"`
	Strategy     string        `json:"strategy,omitempty" binding:"omitempty,oneof=fixed otsu"`
	Threshold    int           `json:"threshold,omitempty" binding:"omitempty,min=1,max=255"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// MeasurementOutcome is the result of one batch entry
type MeasurementOutcome struct {
	ImgName string          `json:"img_name"`
	Record  *AnalysisRecord `json:"record,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// BatchResponse reports every entry of a batch with summary counts
type BatchResponse struct {
	Outcomes          []MeasurementOutcome `json:"outcomes"`
	Succeeded         int                  `json:"succeeded"`
	Failed            int                  `json:"failed"`
	Persisted         int                  `json:"persisted"`
	ProcessingTimeSec float64              `json:"processing_time_sec"`
}
