package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"speckle-inspector/pkg/models"
)

// Header is the first row of every result file
var Header = []string{"dateID", "imgInfo", "speckleData"}

// ResultRepository stores analysed measurements. Rows are only ever appended.
type ResultRepository interface {
	// Append adds one row to the named result file, creating it when needed
	Append(ctx context.Context, fileName string, record *models.AnalysisRecord) error

	// ReadAll returns the stored rows without the header
	ReadAll(ctx context.Context, fileName string) ([]StoredRow, error)
}

// StoredRow is one row of a result file as written: a timestamp followed by
// JSON encoded image info, result and metadata
type StoredRow struct {
	DateID      string
	ImgInfo     string
	SpeckleData string
	Metadata    string
}

func newStoredRow(record *models.AnalysisRecord) (StoredRow, error) {
	imgInfo, err := json.Marshal(record.Image)
	if err != nil {
		return StoredRow{}, fmt.Errorf("encode image info: %w", err)
	}
	speckleData, err := json.Marshal(record.Result)
	if err != nil {
		return StoredRow{}, fmt.Errorf("encode speckle data: %w", err)
	}
	metadata := record.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return StoredRow{}, fmt.Errorf("encode metadata: %w", err)
	}
	return StoredRow{
		DateID:      record.Timestamp.Format(time.RFC3339Nano),
		ImgInfo:     string(imgInfo),
		SpeckleData: string(speckleData),
		Metadata:    string(meta),
	}, nil
}

func (r StoredRow) cells() []string {
	return []string{r.DateID, r.ImgInfo, r.SpeckleData, r.Metadata}
}

// Record decodes the row back into an analysis record
func (r StoredRow) Record() (*models.AnalysisRecord, error) {
	record := &models.AnalysisRecord{Persisted: true}

	ts, err := time.Parse(time.RFC3339Nano, r.DateID)
	if err != nil {
		return nil, fmt.Errorf("%w: dateID %q: %v", ErrMalformedRow, r.DateID, err)
	}
	record.Timestamp = ts

	if err := json.Unmarshal([]byte(r.ImgInfo), &record.Image); err != nil {
		return nil, fmt.Errorf("%w: imgInfo: %v", ErrMalformedRow, err)
	}
	if err := json.Unmarshal([]byte(r.SpeckleData), &record.Result); err != nil {
		return nil, fmt.Errorf("%w: speckleData: %v", ErrMalformedRow, err)
	}
	if r.Metadata != "" {
		if err := json.Unmarshal([]byte(r.Metadata), &record.Metadata); err != nil {
			return nil, fmt.Errorf("%w: metadata: %v", ErrMalformedRow, err)
		}
	}
	return record, nil
}
