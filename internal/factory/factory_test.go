package factory

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"speckle-inspector/internal/config"
	apperrors "speckle-inspector/internal/errors"
	"speckle-inspector/internal/storage"
	"speckle-inspector/internal/strategy"
	"speckle-inspector/pkg/models"
)

func testConfig() *config.Config {
	return &config.Config{
		RequestTimeout: time.Second,
		ImageDir:       "captures",
		ErosionSize:    3,
		CropMinSize:    64,
		CropDivisor:    4,
		LowPassSigma:   2,
		MaxWorkers:     2,
	}
}

func TestOptions(t *testing.T) {
	opts := Options(testConfig())
	if opts.CropMinSize != 64 || opts.CropDivisor != 4 || opts.ErosionSize != 3 || opts.LowPassSigma != 2 || opts.MaxWorkers != 2 {
		t.Errorf("configuration not applied: %+v", opts)
	}
	if !opts.GuardSpeckleLowPass || opts.GuardReferenceLowPass {
		t.Errorf("expected the default guards, got %+v", opts)
	}
}

func TestCreateAnalyzer(t *testing.T) {
	a, err := NewAnalyzerFactory().CreateAnalyzer(testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer a.Close()

	invalid := testConfig()
	invalid.LowPassSigma = 0
	if _, err := NewAnalyzerFactory().CreateAnalyzer(invalid); err == nil {
		t.Error("expected an error for sigma 0")
	}
}

func TestCreateSource(t *testing.T) {
	f := NewStorageFactory()
	cfg := testConfig()

	src, err := f.CreateSource(LocalStorage, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := src.(*storage.LocalSource); !ok {
		t.Errorf("expected a local source, got %T", src)
	}

	src, err = f.CreateSource(HTTPStorage, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := src.(*storage.HTTPSource); !ok {
		t.Errorf("expected an HTTP source, got %T", src)
	}

	cfg.AzureAccountName = "account"
	cfg.AzureAccountKey = "not base64!"
	if src, err := f.CreateSource(AzureStorage, cfg); err == nil || src != nil {
		t.Errorf("expected an error and a nil source for a malformed key, got %v, %v", src, err)
	}

	if _, err := f.CreateSource("ftp", cfg); err == nil {
		t.Error("expected unsupported storage type error")
	}
}

func TestCreateSource_AbsolutePaths(t *testing.T) {
	f := NewStorageFactory()
	cfg := testConfig()
	cfg.ImageDir = t.TempDir()
	location := filepath.Join(t.TempDir(), "speck.png")
	if err := os.WriteFile(location, []byte("png"), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	src, err := f.CreateSource(LocalStorage, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := src.Open(context.Background(), location); !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Errorf("expected absolute location to be refused by default, got %v", err)
	}
	m := models.Measurement{Path: filepath.Dir(location) + "/", ImgName: "speck", Datatype: "png", UseRefImg: new(bool)}
	if issues := f.CreateValidator(LocalStorage, cfg).Validate(m); len(issues) == 0 {
		t.Error("expected the default validator to reject an absolute path")
	}

	cfg.AllowAbsolutePaths = true
	src, err = f.CreateSource(LocalStorage, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rc, err := src.Open(context.Background(), location)
	if err != nil {
		t.Fatalf("expected absolute location to open, got %v", err)
	}
	rc.Close()
	if issues := f.CreateValidator(LocalStorage, cfg).Validate(m); len(issues) != 0 {
		t.Errorf("expected absolute path to pass validation, got %v", issues)
	}
}

func TestCreateStrategy(t *testing.T) {
	testCases := []struct {
		name     string
		strategy string
		in       io.Reader
		want     string
		wantErr  bool
	}{
		{"default", "", nil, strategy.FixedStrategy, false},
		{"fixed", "fixed", nil, strategy.FixedStrategy, false},
		{"otsu", "OTSU", nil, strategy.OtsuStrategy, false},
		{"prompt", "prompt", strings.NewReader("\n"), strategy.PromptStrategy, false},
		{"prompt without terminal", "prompt", nil, "", true},
		{"unknown", "median", nil, "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var out io.Writer
			if tc.in != nil {
				out = io.Discard
			}
			s, err := NewStrategyFactory(tc.in, out).CreateStrategy(tc.strategy, 30)
			if tc.wantErr {
				if err == nil || s != nil {
					t.Errorf("expected an error and no strategy, got %v, %v", s, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.GetStrategyName() != tc.want {
				t.Errorf("expected %s, got %s", tc.want, s.GetStrategyName())
			}
		})
	}

	if s, err := NewStrategyFactory(nil, nil).CreateStrategy("fixed", 0); err == nil || s != nil {
		t.Errorf("expected an invalid threshold to fail, got %v, %v", s, err)
	}
}
