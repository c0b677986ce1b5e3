package service

import (
	"speckle-inspector/internal/raw"
	"speckle-inspector/pkg/models"
)

// Input is the decoded shape of a measurement. Exactly one of RawPair,
// RawSingle, StandardPair and StandardSingle implements it, and the loader
// switches on it once.
type Input interface {
	speckleLocation() string
	channel() raw.Channel
}

type source struct {
	Speckle string
	Channel raw.Channel
}

func (s source) speckleLocation() string { return s.Speckle }
func (s source) channel() raw.Channel    { return s.Channel }

// RawPair is a raw speckle capture with its raw reference
type RawPair struct {
	source
	Format    string
	Reference string
}

// RawSingle is a raw speckle capture analysed without a reference
type RawSingle struct {
	source
	Format string
}

// StandardPair is a standard colour image with its reference
type StandardPair struct {
	source
	Reference string
}

// StandardSingle is a standard colour image analysed without a reference
type StandardSingle struct {
	source
}

// NewInput builds the input variant of a measurement
func NewInput(m models.Measurement, registry *raw.Registry) (Input, error) {
	ch, err := raw.ParseChannel(m.Channel())
	if err != nil {
		return nil, err
	}
	src := source{Speckle: m.ImagePath(), Channel: ch}

	if registry.IsRaw(m.Datatype) {
		if m.UsesReference() {
			return RawPair{source: src, Format: m.Datatype, Reference: m.ReferencePath()}, nil
		}
		return RawSingle{source: src, Format: m.Datatype}, nil
	}
	if m.UsesReference() {
		return StandardPair{source: src, Reference: m.ReferencePath()}, nil
	}
	return StandardSingle{source: src}, nil
}

// planeIndex maps a channel to its plane in a decoded BGR image
func planeIndex(ch raw.Channel) int {
	switch ch {
	case raw.ChannelBlue:
		return 0
	case raw.ChannelRed:
		return 2
	default:
		return 1
	}
}
