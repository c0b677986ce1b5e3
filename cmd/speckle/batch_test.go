package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"speckle-inspector/internal/repository"
	"speckle-inspector/pkg/models"
)

func TestParseBatch(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{
			name: "bare list",
			input: `
- path: captures/
  refName: ref
  imgName: speck-1
  datatype: RW2
- path: captures/
  imgName: speck-2
  datatype: RW2
  useRefImg: false
  debayerChannel: b
`,
			want: 2,
		},
		{
			name: "measurements key",
			input: `
measurements:
  - imgName: speck
    refName: ref
    datatype: png
    saveFileName: projector
    metadata:
      iso: 200
      camera: GH5
`,
			want: 1,
		},
		{name: "empty", input: "", wantErr: true},
		{name: "unknown key", input: "batch:\n  - imgName: a\n", wantErr: true},
		{name: "not yaml", input: "measurements: [", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseBatch([]byte(tc.input))
			if tc.wantErr {
				if err == nil {
					t.Errorf("expected an error, got %d measurements", len(got))
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != tc.want {
				t.Errorf("expected %d measurements, got %d", tc.want, len(got))
			}
		})
	}
}

func TestParseBatch_Fields(t *testing.T) {
	got, err := parseBatch([]byte(`
- path: captures/
  imgName: speck
  datatype: RW2
  useRefImg: false
  debayerChannel: b
  saveFileName: run
  metadata:
    iso: 200
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := got[0]
	if m.UsesReference() || m.Channel() != "b" || m.SaveFileName != "run" {
		t.Errorf("unexpected measurement %+v", m)
	}
	if m.ImagePath() != "captures/speck.RW2" {
		t.Errorf("unexpected image path %s", m.ImagePath())
	}
	if m.Metadata["iso"] != 200 {
		t.Errorf("expected metadata to be kept, got %v", m.Metadata)
	}
}

func TestLoadBatch_MissingFile(t *testing.T) {
	if _, err := loadBatch(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestLoadBatch_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.yaml")
	if err := os.WriteFile(path, []byte("- imgName: a\n  datatype: png\n  useRefImg: false\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := loadBatch(path)
	if err != nil || len(got) != 1 {
		t.Fatalf("expected one measurement, got %v, %v", got, err)
	}
}

func TestPrintBatch(t *testing.T) {
	response := &models.BatchResponse{
		Outcomes: []models.MeasurementOutcome{
			{ImgName: "speck-1", Record: &models.AnalysisRecord{Result: models.SpeckleResult{
				RawContrast: 12.5, FilteredContrast: 5, ReferenceContrastFiltered: 3, CorrectedContrast: 4,
			}}},
			{ImgName: "speck-2", Record: &models.AnalysisRecord{Result: models.SpeckleResult{
				RawContrast: 9, FilteredContrast: 2, ReferenceContrastFiltered: models.SentinelContrast,
				CorrectedContrast: models.SentinelContrast, Notes: []string{"No reference used"},
			}}},
			{ImgName: "speck-3", Error: "image speck-3.RW2 not found"},
		},
		Succeeded: 2,
		Failed:    1,
		Persisted: 1,
	}

	var buf bytes.Buffer
	if err := printBatch(&buf, response); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"12.500", "4.000", "No reference used", "not found", "2 analysed, 1 failed, 1 persisted"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestPrintRows(t *testing.T) {
	repo := repository.NewCSVResultRepository(t.TempDir())
	record := &models.AnalysisRecord{
		Timestamp: time.Date(2024, 6, 9, 14, 30, 5, 0, time.UTC),
		Image:     models.ImageInfo{Name: "speck", Datatype: "RW2"},
		Result:    models.SpeckleResult{RawContrast: 10, FilteredContrast: 5, CorrectedContrast: 4},
		Metadata:  map[string]interface{}{"color": "g"},
	}
	if err := repo.Append(t.Context(), "run", record); err != nil {
		t.Fatalf("append: %v", err)
	}
	rows, err := repo.ReadAll(t.Context(), "run")
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var buf bytes.Buffer
	if err := printRows(&buf, rows); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "2024-06-09 14:30:05") || !strings.Contains(buf.String(), "4.000") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}
