package analyzer

// AnalysisOptions configures the contrast pipeline
type AnalysisOptions struct {
	// Crop window: max(width/CropDivisor, CropMinSize) square
	CropMinSize int
	CropDivisor int

	// Perforation mask
	ErosionSize int

	// High pass
	LowPassSigma          float64
	GuardSpeckleLowPass   bool
	GuardReferenceLowPass bool

	// Performance options
	MaxWorkers int
}

// DefaultOptions returns default analysis options
func DefaultOptions() AnalysisOptions {
	return AnalysisOptions{
		CropMinSize:           400,
		CropDivisor:           9,
		ErosionSize:           2,
		LowPassSigma:          9,
		GuardSpeckleLowPass:   true,
		GuardReferenceLowPass: false,
		MaxWorkers:            1, // Sequential
	}
}

// CropSize returns the side of the square window for an image width
func (opts AnalysisOptions) CropSize(width int) int {
	size := opts.CropMinSize
	if opts.CropDivisor > 0 && width/opts.CropDivisor > size {
		size = width / opts.CropDivisor
	}
	return size
}

// WithCropWindow sets the minimum window side and the width divisor
func (opts AnalysisOptions) WithCropWindow(minSize, divisor int) AnalysisOptions {
	opts.CropMinSize = minSize
	opts.CropDivisor = divisor
	return opts
}

// WithErosionSize sets the side of the erosion square
func (opts AnalysisOptions) WithErosionSize(size int) AnalysisOptions {
	opts.ErosionSize = size
	return opts
}

// WithLowPassSigma sets the Gaussian sigma of the high pass
func (opts AnalysisOptions) WithLowPassSigma(sigma float64) AnalysisOptions {
	opts.LowPassSigma = sigma
	return opts
}

// WithLowPassGuards sets the zero low pass guard per path
func (opts AnalysisOptions) WithLowPassGuards(speckle, reference bool) AnalysisOptions {
	opts.GuardSpeckleLowPass = speckle
	opts.GuardReferenceLowPass = reference
	return opts
}

// WithMaxWorkers sets how many measurements may run at once
func (opts AnalysisOptions) WithMaxWorkers(n int) AnalysisOptions {
	opts.MaxWorkers = n
	return opts
}
