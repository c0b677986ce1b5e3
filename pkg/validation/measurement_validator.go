package validation

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	apperrors "speckle-inspector/internal/errors"
	"speckle-inspector/pkg/models"
)

// MeasurementValidator checks batch entries before any image is loaded
type MeasurementValidator struct {
	remote         bool
	allowAbsolute  bool
	allowedSchemes []string
	allowedHosts   []string
}

// NewMeasurementValidator creates a validator for file system locations.
// Locations must be relative and may not step into a parent directory.
func NewMeasurementValidator() *MeasurementValidator {
	return &MeasurementValidator{}
}

// WithAbsolutePaths returns a copy of the validator that accepts absolute
// file system locations
func (v *MeasurementValidator) WithAbsolutePaths() *MeasurementValidator {
	cp := *v
	cp.allowAbsolute = true
	return &cp
}

// NewRemoteMeasurementValidator creates a validator whose image locations
// must be URLs. An empty host list allows every host.
func NewRemoteMeasurementValidator(schemes []string, hosts []string) *MeasurementValidator {
	if len(schemes) == 0 {
		schemes = []string{"http", "https"}
	}
	return &MeasurementValidator{
		remote:         true,
		allowedSchemes: schemes,
		allowedHosts:   hosts,
	}
}

// Validate returns every problem found in the measurement
func (v *MeasurementValidator) Validate(m models.Measurement) []models.ValidationError {
	var issues []models.ValidationError
	add := func(field, code, message string) {
		issues = append(issues, models.ValidationError{Code: code, Message: message, Field: field})
	}

	if strings.TrimSpace(m.ImgName) == "" {
		add("imgName", "required", "image name cannot be empty")
	}
	if strings.TrimSpace(m.Datatype) == "" {
		add("datatype", "required", "datatype cannot be empty")
	} else if strings.ContainsAny(m.Datatype, `/\.`) {
		add("datatype", "invalid", "datatype must be a bare file extension")
	}
	if m.UsesReference() && strings.TrimSpace(m.RefName) == "" {
		add("refName", "required", "reference name is required unless useRefImg is false")
	}
	switch strings.ToLower(m.Channel()) {
	case "r", "g", "b":
	default:
		add("debayerChannel", "invalid_channel", fmt.Sprintf("'%s' is not a valid color channel, use 'r', 'g' or 'b'", m.DebayerChannel))
	}
	if m.SaveFileName != "" && !isPlainFileName(m.SaveFileName) {
		add("saveFileName", "invalid", "save file name must not contain path elements")
	}

	if v.remote {
		if m.ImgName != "" {
			if err := v.validateURL(m.ImagePath()); err != nil {
				add("path", "invalid_location", err.Error())
			}
		}
		return issues
	}

	for _, f := range []struct{ field, value string }{
		{"path", m.Path},
		{"imgName", m.ImgName},
		{"refName", m.RefName},
	} {
		if hasParentElement(f.value) {
			add(f.field, "invalid_location", "location must not contain '..'")
		}
	}
	if !v.allowAbsolute && m.ImgName != "" && filepath.IsAbs(m.ImagePath()) {
		add("path", "invalid_location", "absolute locations are not allowed")
	}
	return issues
}

// ValidateMeasurement returns a validation error summarising all problems
func (v *MeasurementValidator) ValidateMeasurement(m models.Measurement) error {
	issues := v.Validate(m)
	if len(issues) == 0 {
		return nil
	}
	parts := make([]string, len(issues))
	for i, issue := range issues {
		parts[i] = issue.Field + ": " + issue.Message
	}
	return apperrors.NewValidationError(fmt.Sprintf("invalid measurement %q: %s", m.ImgName, strings.Join(parts, "; ")), nil)
}

func isPlainFileName(name string) bool {
	return name == filepath.Base(name) && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}

func hasParentElement(location string) bool {
	for _, element := range strings.FieldsFunc(location, func(r rune) bool { return r == '/' || r == '\\' }) {
		if element == ".." {
			return true
		}
	}
	return false
}

func (v *MeasurementValidator) validateURL(location string) error {
	parsedURL, err := url.Parse(location)
	if err != nil {
		return fmt.Errorf("invalid URL format")
	}
	if !contains(v.allowedSchemes, parsedURL.Scheme) {
		return fmt.Errorf("URL scheme %q not allowed", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("URL must have a valid host")
	}
	if len(v.allowedHosts) > 0 && !contains(v.allowedHosts, parsedURL.Host) {
		return fmt.Errorf("URL host %q not allowed", parsedURL.Host)
	}
	return nil
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
