package audio

import (
	"context"
	"os"

	"github.com/avern/wikiscribe/internal/ffmpeg"
)

// Prober is the probe subset of the ffmpeg adapter.
type Prober interface {
	Probe(ctx context.Context, path string) (ffmpeg.Info, error)
}

// Validator confirms a file is worth sending to the transcription service.
// It runs before any API spend so corrupt input never costs money.
type Validator struct {
	probe Prober
	stat  func(string) (os.FileInfo, error)
}

// NewValidator creates a Validator backed by the given prober.
func NewValidator(probe Prober) *Validator {
	return &Validator{probe: probe, stat: os.Stat}
}

// NewValidatorWithStat creates a Validator with an injected stat function
// (for testing).
func NewValidatorWithStat(probe Prober, stat func(string) (os.FileInfo, error)) *Validator {
	return &Validator{probe: probe, stat: stat}
}

// Validate reports whether path exists, is non-empty, and has a decodable,
// positive duration. It never returns an error; every failure mode means
// "do not process this file".
func (v *Validator) Validate(ctx context.Context, path string) bool {
	fi, err := v.stat(path)
	if err != nil {
		return false
	}
	if fi.Size() == 0 {
		return false
	}

	info, err := v.probe.Probe(ctx, path)
	if err != nil {
		return false
	}
	// Guards against zero and against NaN float parses, which convert to
	// non-positive durations.
	return info.Duration > 0
}
