// Package lang detects the language of generated text so wiki pages carry
// the right locale when none is configured.
package lang

import (
	"strings"

	"github.com/pemistahl/lingua-go"
)

// Detector wraps a lingua language detector. Building the underlying model
// is expensive; construct once and reuse.
type Detector struct {
	detector lingua.LanguageDetector
}

// NewDetector builds a detector over all supported languages.
func NewDetector() *Detector {
	return &Detector{
		detector: lingua.NewLanguageDetectorBuilder().FromAllLanguages().Build(),
	}
}

// Detect returns the ISO 639-1 code of the text's language.
// ok is false when detection is inconclusive (short or mixed text).
func (d *Detector) Detect(text string) (code string, ok bool) {
	language, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return "", false
	}
	return strings.ToLower(language.IsoCode639_1().String()), true
}

// DetectOr returns the detected ISO 639-1 code, or fallback when detection
// is inconclusive.
func (d *Detector) DetectOr(text, fallback string) string {
	if code, ok := d.Detect(text); ok {
		return code
	}
	return fallback
}
