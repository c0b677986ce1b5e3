package strategy

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"speckle-inspector/internal/analyzer"
	apperrors "speckle-inspector/internal/errors"
	"speckle-inspector/internal/logger"

	"github.com/sirupsen/logrus"
)

// Strategy names
const (
	FixedStrategy  = "fixed"
	OtsuStrategy   = "otsu"
	PromptStrategy = "prompt"
)

// DefaultInitialThreshold is where an interactive selection starts
const DefaultInitialThreshold = 30

// ThresholdStrategy is a named way of choosing the perforation threshold
type ThresholdStrategy interface {
	analyzer.ThresholdChooser
	GetStrategyName() string
}

func validateThreshold(threshold int) error {
	if threshold < analyzer.MinThreshold || threshold > analyzer.MaxThreshold {
		return apperrors.NewValidationError(
			fmt.Sprintf("threshold %d outside %d-%d", threshold, analyzer.MinThreshold, analyzer.MaxThreshold), nil)
	}
	return nil
}

// FixedThreshold always answers with the same value. Used for headless runs.
type FixedThreshold struct {
	threshold int
}

// NewFixedThreshold creates a fixed threshold strategy
func NewFixedThreshold(threshold int) (*FixedThreshold, error) {
	if err := validateThreshold(threshold); err != nil {
		return nil, err
	}
	return &FixedThreshold{threshold: threshold}, nil
}

// ChooseThreshold returns the configured threshold
func (s *FixedThreshold) ChooseThreshold(ctx context.Context, preview analyzer.Preview) (int, error) {
	return s.threshold, nil
}

// GetStrategyName returns the strategy name
func (s *FixedThreshold) GetStrategyName() string {
	return FixedStrategy
}

// OtsuThreshold separates perforations from the lit screen automatically
type OtsuThreshold struct{}

// NewOtsuThreshold creates an automatic threshold strategy
func NewOtsuThreshold() *OtsuThreshold {
	return &OtsuThreshold{}
}

// ChooseThreshold runs Otsu's method on the cropped reference
func (s *OtsuThreshold) ChooseThreshold(ctx context.Context, preview analyzer.Preview) (int, error) {
	threshold, err := analyzer.OtsuThreshold(preview.Reference)
	if err != nil {
		return 0, err
	}
	logger.WithField("threshold", threshold).Debug("Otsu threshold selected")
	return threshold, nil
}

// GetStrategyName returns the strategy name
func (s *OtsuThreshold) GetStrategyName() string {
	return OtsuStrategy
}

// PromptThreshold lets an operator try thresholds on a terminal. Every
// number entered renders a preview and reports the excluded share of the
// crop; an empty line, "accept" or the end of input keeps the last value.
// One reader goroutine serves all measurements until Close.
type PromptThreshold struct {
	out     io.Writer
	initial int

	in        io.Reader
	once      sync.Once
	lines     chan string
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// NewPromptThreshold creates an interactive strategy reading from in
func NewPromptThreshold(in io.Reader, out io.Writer, initial int) (*PromptThreshold, error) {
	if err := validateThreshold(initial); err != nil {
		return nil, err
	}
	return &PromptThreshold{
		in:      in,
		out:     out,
		initial: initial,
		lines:   make(chan string),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}, nil
}

// readLines feeds input lines to the strategy until the reader is exhausted
// or the strategy is closed. A read already blocked on in only returns with
// the next line.
func (s *PromptThreshold) readLines() {
	go func() {
		defer close(s.stopped)
		defer close(s.lines)
		scanner := bufio.NewScanner(s.in)
		for scanner.Scan() {
			select {
			case s.lines <- scanner.Text():
			case <-s.done:
				return
			}
		}
	}()
}

// Close stops the input reader. Later calls to ChooseThreshold fail.
func (s *PromptThreshold) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

// ChooseThreshold blocks until the operator accepts a value or ctx ends
func (s *PromptThreshold) ChooseThreshold(ctx context.Context, preview analyzer.Preview) (int, error) {
	select {
	case <-s.done:
		return 0, apperrors.NewInternalError("threshold prompt is closed", nil)
	default:
	}
	s.once.Do(s.readLines)

	current := s.initial
	if err := s.show(preview, current); err != nil {
		return 0, err
	}

	for {
		select {
		case <-ctx.Done():
			return 0, apperrors.NewTimeoutError("threshold selection abandoned", ctx.Err())
		case <-s.done:
			return 0, apperrors.NewInternalError("threshold prompt is closed", nil)
		case line, ok := <-s.lines:
			if !ok {
				return current, nil
			}
			line = strings.TrimSpace(line)
			if line == "" || strings.EqualFold(line, "accept") {
				logger.WithField("threshold", current).Info("Threshold accepted")
				return current, nil
			}
			candidate, err := strconv.Atoi(line)
			if err == nil {
				err = validateThreshold(candidate)
			}
			if err != nil {
				fmt.Fprintf(s.out, "enter a threshold between %d and %d, or press enter to accept %d\n",
					analyzer.MinThreshold, analyzer.MaxThreshold, current)
				continue
			}
			current = candidate
			if err := s.show(preview, current); err != nil {
				return 0, err
			}
		}
	}
}

func (s *PromptThreshold) show(preview analyzer.Preview, threshold int) error {
	mask, err := preview.Render(threshold)
	if err != nil {
		return err
	}
	excluded := analyzer.ExcludedFraction(mask)
	logger.WithFields(logrus.Fields{
		"threshold": threshold,
		"excluded":  excluded,
	}).Debug("Rendered threshold preview")
	_, err = fmt.Fprintf(s.out, "threshold %3d: %5.1f%% of the crop excluded [enter to accept]\n", threshold, excluded*100)
	return err
}

// GetStrategyName returns the strategy name
func (s *PromptThreshold) GetStrategyName() string {
	return PromptStrategy
}
