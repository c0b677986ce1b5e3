package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"time"

	"speckle-inspector/internal/analyzer"
	apperrors "speckle-inspector/internal/errors"
	"speckle-inspector/internal/logger"
	"speckle-inspector/internal/observer"
	"speckle-inspector/internal/raw"
	"speckle-inspector/internal/repository"
	"speckle-inspector/internal/storage"
	"speckle-inspector/pkg/models"
	"speckle-inspector/pkg/validation"

	"github.com/sirupsen/logrus"
)

// SpeckleAnalysisService runs measurements from their stored captures to a
// result record
type SpeckleAnalysisService interface {
	// AnalyzeMeasurement loads, analyses and optionally persists one measurement
	AnalyzeMeasurement(ctx context.Context, m models.Measurement, chooser analyzer.ThresholdChooser) (*models.AnalysisRecord, error)

	// AnalyzeBatch analyses every measurement. A failing measurement is
	// reported in its outcome and does not stop the others.
	AnalyzeBatch(ctx context.Context, measurements []models.Measurement, chooser analyzer.ThresholdChooser) *models.BatchResponse

	ValidateMeasurement(m models.Measurement) error
}

// Dependencies are the collaborators of the service. Repository and Events
// may be nil.
type Dependencies struct {
	Source     storage.Source
	Registry   *raw.Registry
	Analyzer   analyzer.SpeckleAnalyzer
	Repository repository.ResultRepository
	Validator  *validation.MeasurementValidator
	Events     observer.Subject
}

// Settings bound how a service loads and schedules measurements
type Settings struct {
	// MaxImageBytes caps a single capture, zero means unlimited
	MaxImageBytes int64
	// MaxWorkers above one analyses batch entries concurrently
	MaxWorkers int
}

type speckleAnalysisService struct {
	source     storage.Source
	registry   *raw.Registry
	analyzer   analyzer.SpeckleAnalyzer
	repository repository.ResultRepository
	validator  *validation.MeasurementValidator
	events     observer.Subject
	settings   Settings
	now        func() time.Time
}

// NewSpeckleAnalysisService creates a new speckle analysis service
func NewSpeckleAnalysisService(deps Dependencies, settings Settings) (SpeckleAnalysisService, error) {
	if deps.Source == nil || deps.Analyzer == nil {
		return nil, apperrors.NewInternalError("speckle analysis service needs a source and an analyzer", nil)
	}
	if deps.Registry == nil {
		deps.Registry = raw.NewRegistry()
	}
	if deps.Validator == nil {
		deps.Validator = validation.NewMeasurementValidator()
	}
	return &speckleAnalysisService{
		source:     deps.Source,
		registry:   deps.Registry,
		analyzer:   deps.Analyzer,
		repository: deps.Repository,
		validator:  deps.Validator,
		events:     deps.Events,
		settings:   settings,
		now:        time.Now,
	}, nil
}

func (s *speckleAnalysisService) ValidateMeasurement(m models.Measurement) error {
	return s.validator.ValidateMeasurement(m)
}

func (s *speckleAnalysisService) AnalyzeMeasurement(ctx context.Context, m models.Measurement, chooser analyzer.ThresholdChooser) (*models.AnalysisRecord, error) {
	start := time.Now()
	s.publish(ctx, observer.AnalysisEvent{EventType: observer.AnalysisStarted, ImgName: m.ImgName, ImagePath: m.ImagePath(), Success: true})

	record, err := s.analyze(ctx, m, chooser)
	if err != nil {
		s.publish(ctx, observer.AnalysisEvent{
			EventType:      observer.AnalysisFailed,
			ImgName:        m.ImgName,
			ImagePath:      m.ImagePath(),
			ProcessingTime: time.Since(start),
			ErrorMessage:   err.Error(),
		})
		return nil, err
	}

	s.publish(ctx, observer.AnalysisEvent{
		EventType:      observer.AnalysisCompleted,
		ImgName:        m.ImgName,
		ImagePath:      m.ImagePath(),
		ProcessingTime: time.Since(start),
		Success:        true,
		Metadata: map[string]interface{}{
			"dif_speck": record.Result.CorrectedContrast,
			"persisted": record.Persisted,
		},
	})
	return record, nil
}

func (s *speckleAnalysisService) analyze(ctx context.Context, m models.Measurement, chooser analyzer.ThresholdChooser) (*models.AnalysisRecord, error) {
	if err := s.validator.ValidateMeasurement(m); err != nil {
		return nil, err
	}
	input, err := NewInput(m, s.registry)
	if err != nil {
		return nil, err
	}

	pair, err := s.load(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.ImgName, err)
	}
	s.publish(ctx, observer.AnalysisEvent{EventType: observer.ImageLoaded, ImgName: m.ImgName, ImagePath: m.ImagePath(), Success: true})

	result, err := s.analyzer.Calculate(ctx, pair, chooser)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.ImgName, err)
	}

	metadata := make(map[string]interface{}, len(m.Metadata)+1)
	for k, v := range m.Metadata {
		metadata[k] = v
	}
	metadata["color"] = m.Channel()

	record := &models.AnalysisRecord{
		Timestamp: s.now(),
		Image:     models.ImageInfo{Name: m.ImgName, Datatype: m.Datatype, Path: m.ImagePath()},
		Result:    *result,
		Metadata:  metadata,
	}

	if m.SaveFileName != "" {
		if s.repository == nil {
			return nil, apperrors.NewInternalError(fmt.Sprintf("%s: no result repository configured for %q", m.ImgName, m.SaveFileName), nil)
		}
		if err := s.repository.Append(ctx, m.SaveFileName, record); err != nil {
			return nil, fmt.Errorf("%s: %w", m.ImgName, err)
		}
		record.Persisted = true
		s.publish(ctx, observer.AnalysisEvent{
			EventType: observer.ResultPersisted,
			ImgName:   m.ImgName,
			ImagePath: m.ImagePath(),
			Success:   true,
			Metadata:  map[string]interface{}{"save_file": m.SaveFileName},
		})
	}
	return record, nil
}

// load turns an input variant into the single channel pair the analyzer works on
func (s *speckleAnalysisService) load(ctx context.Context, input Input) (analyzer.Pair, error) {
	switch in := input.(type) {
	case RawPair:
		speckle, err := s.loadRawFrame(ctx, in.Format, in.Speckle)
		if err != nil {
			return analyzer.Pair{}, err
		}
		reference, err := s.loadRawFrame(ctx, in.Format, in.Reference)
		if err != nil {
			return analyzer.Pair{}, err
		}
		sp, ref, err := raw.ProcessPair(speckle, reference, in.Channel)
		if err != nil {
			return analyzer.Pair{}, err
		}
		return analyzer.Pair{Speckle: sp, Reference: ref}, nil

	case RawSingle:
		frame, err := s.loadRawFrame(ctx, in.Format, in.Speckle)
		if err != nil {
			return analyzer.Pair{}, err
		}
		sp, err := raw.Process(frame, in.Channel)
		if err != nil {
			return analyzer.Pair{}, err
		}
		return analyzer.Pair{Speckle: sp}, nil

	case StandardPair:
		// The reference is read first, the same order the captures are taken in
		ref, err := s.loadPlane(ctx, in.Reference, in.Channel)
		if err != nil {
			return analyzer.Pair{}, err
		}
		sp, err := s.loadPlane(ctx, in.Speckle, in.Channel)
		if err != nil {
			return analyzer.Pair{}, err
		}
		return analyzer.Pair{Speckle: sp, Reference: ref}, nil

	case StandardSingle:
		sp, err := s.loadPlane(ctx, in.Speckle, in.Channel)
		if err != nil {
			return analyzer.Pair{}, err
		}
		return analyzer.Pair{Speckle: sp}, nil
	}
	return analyzer.Pair{}, apperrors.NewInternalError(fmt.Sprintf("unhandled input %T", input), nil)
}

func (s *speckleAnalysisService) loadRawFrame(ctx context.Context, format, location string) (raw.RawFrame, error) {
	decoder, err := s.registry.Decoder(format)
	if err != nil {
		return nil, err
	}
	mosaic, err := storage.ReadAll(ctx, s.source, location, s.settings.MaxImageBytes)
	if err != nil {
		return nil, err
	}
	calibration, err := storage.ReadAll(ctx, s.source, location+raw.SidecarSuffix, s.settings.MaxImageBytes)
	if err != nil {
		return nil, err
	}
	return decoder.Decode(bytes.NewReader(mosaic), bytes.NewReader(calibration))
}

func (s *speckleAnalysisService) loadPlane(ctx context.Context, location string, ch raw.Channel) (*image.Gray, error) {
	data, err := storage.ReadAll(ctx, s.source, location, s.settings.MaxImageBytes)
	if err != nil {
		return nil, err
	}
	return analyzer.DecodePlane(data, planeIndex(ch))
}

func (s *speckleAnalysisService) AnalyzeBatch(ctx context.Context, measurements []models.Measurement, chooser analyzer.ThresholdChooser) *models.BatchResponse {
	start := time.Now()
	outcomes := make([]models.MeasurementOutcome, len(measurements))

	run := func(i int) {
		m := measurements[i]
		outcomes[i].ImgName = m.ImgName
		record, err := s.AnalyzeMeasurement(ctx, m, chooser)
		if err != nil {
			outcomes[i].Error = err.Error()
			return
		}
		outcomes[i].Record = record
	}

	if s.settings.MaxWorkers > 1 && len(measurements) > 1 {
		pool := analyzer.NewWorkerPool(s.settings.MaxWorkers)
		pool.Start()
		for i := range measurements {
			pool.Submit(func() { run(i) })
		}
		pool.Wait()
		pool.Close()
	} else {
		for i := range measurements {
			run(i)
		}
	}

	response := &models.BatchResponse{Outcomes: outcomes}
	for _, o := range outcomes {
		if o.Record == nil {
			response.Failed++
			continue
		}
		response.Succeeded++
		if o.Record.Persisted {
			response.Persisted++
		}
	}
	response.ProcessingTimeSec = time.Since(start).Seconds()

	logger.WithFields(logrus.Fields{
		"measurements": len(measurements),
		"succeeded":    response.Succeeded,
		"failed":       response.Failed,
		"persisted":    response.Persisted,
		"duration_sec": response.ProcessingTimeSec,
	}).Info("Measurement batch finished")
	return response
}

func (s *speckleAnalysisService) publish(ctx context.Context, event observer.AnalysisEvent) {
	if s.events == nil {
		return
	}
	s.events.NotifyObservers(ctx, event)
}
