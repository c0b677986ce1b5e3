package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	apperrors "speckle-inspector/internal/errors"
	"speckle-inspector/internal/logger"
	"speckle-inspector/pkg/models"

	"github.com/sirupsen/logrus"
)

// CSVResultRepository keeps one CSV file per save name under a directory
type CSVResultRepository struct {
	dir string
	mu  sync.Mutex
}

// NewCSVResultRepository creates a repository rooted at dir. The directory
// is created on the first append.
func NewCSVResultRepository(dir string) *CSVResultRepository {
	return &CSVResultRepository{dir: dir}
}

func (r *CSVResultRepository) path(fileName string) (string, error) {
	if fileName == "" || fileName != filepath.Base(fileName) || strings.ContainsAny(fileName, `/\`) || fileName == ".." {
		return "", apperrors.NewValidationError(fmt.Sprintf("result file name %q", fileName), ErrInvalidFileName)
	}
	return filepath.Join(r.dir, fileName+".csv"), nil
}

// Append writes the record as one row. The header goes in first when the
// file does not exist yet.
func (r *CSVResultRepository) Append(ctx context.Context, fileName string, record *models.AnalysisRecord) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewTimeoutError("append cancelled", err)
	}
	path, err := r.path(fileName)
	if err != nil {
		return err
	}
	row, err := newStoredRow(record)
	if err != nil {
		return apperrors.NewInternalError("failed to encode result row", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return apperrors.NewInternalError(fmt.Sprintf("failed to create results directory %s", r.dir), err)
	}

	needsHeader := false
	if info, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) || (err == nil && info.Size() == 0) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return apperrors.NewInternalError(fmt.Sprintf("failed to open %s", path), err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if needsHeader {
		if err := w.Write(Header); err != nil {
			return apperrors.NewInternalError("failed to write result header", err)
		}
	}
	if err := w.Write(row.cells()); err != nil {
		return apperrors.NewInternalError("failed to write result row", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return apperrors.NewInternalError(fmt.Sprintf("failed to flush %s", path), err)
	}

	logger.WithFields(logrus.Fields{
		"file":  path,
		"image": record.Image.Name,
	}).Debug("Result row appended")
	return nil
}

// ReadAll returns every stored row of the named file
func (r *CSVResultRepository) ReadAll(ctx context.Context, fileName string) ([]StoredRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewTimeoutError("read cancelled", err)
	}
	path, err := r.path(fileName)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("results %s", fileName), ErrResultsNotFound)
		}
		return nil, apperrors.NewInternalError(fmt.Sprintf("failed to open %s", path), err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	// Data rows carry a metadata cell the header does not name
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Sprintf("failed to parse %s", path), err)
	}
	if len(records) <= 1 {
		return []StoredRow{}, nil
	}

	rows := make([]StoredRow, 0, len(records)-1)
	for i, cells := range records[1:] {
		if len(cells) < len(Header) {
			return nil, apperrors.NewInternalError(fmt.Sprintf("row %d of %s", i+2, path), ErrMalformedRow)
		}
		row := StoredRow{DateID: cells[0], ImgInfo: cells[1], SpeckleData: cells[2]}
		if len(cells) > 3 {
			row.Metadata = cells[3]
		}
		rows = append(rows, row)
	}
	return rows, nil
}
