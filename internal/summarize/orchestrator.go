package summarize

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avern/wikiscribe/internal/config"
	"github.com/avern/wikiscribe/internal/textsplit"
)

// singleCallTokenThreshold is the combined content+prompt estimate under
// which one generation call handles the whole document.
const singleCallTokenThreshold = 15000

// chunkFailurePlaceholder replaces a chunk whose generation failed twice.
const chunkFailurePlaceholder = "*[This section could not be generated.]*"

// instructionPrompt is the fixed summary instruction. Chunked documents get
// a positional preamble prepended per call.
const instructionPrompt = `You convert raw transcripts into clear, well-structured Markdown documents.

Rules:
- Produce a concise document with one H1 title and H2 sections by topic.
- Preserve all substantive information; remove filler and repetition.
- End with a "Key Points" section listing the main takeaways.
- Do not invent content that is not in the transcript.`

// consolidatePrompt merges per-chunk outputs into one coherent document.
const consolidatePrompt = `You receive multiple parts of a structured Markdown document.
Merge them into a single coherent document.

Rules:
- Keep only one H1 title (from the first part).
- Merge sections that cover the same topic.
- Eliminate exact duplicates only; preserve all unique content.
- Keep a single "Key Points" section at the end, merged from all parts.`

// ErrUnsupportedFileType indicates an input file whose format has no
// text extractor.
var ErrUnsupportedFileType = errors.New("unsupported file type")

// LanguageDetector resolves an output-language hint from document text.
type LanguageDetector interface {
	DetectOr(text, fallback string) string
}

// Markdown runs the transcript-to-summary stage over a directory.
type Markdown struct {
	gen      Generator
	detector LanguageDetector

	dirs     config.Dirs
	mode     config.ConsolidationMode
	delay    time.Duration
	language string

	log *logrus.Logger
	now func() time.Time
}

// MarkdownOption configures a Markdown orchestrator.
type MarkdownOption func(*Markdown)

// WithMarkdownNow sets the clock (for testing).
func WithMarkdownNow(fn func() time.Time) MarkdownOption {
	return func(m *Markdown) {
		m.now = fn
	}
}

// WithCallDelay sets the pause between sequential generation calls.
func WithCallDelay(d time.Duration) MarkdownOption {
	return func(m *Markdown) {
		m.delay = d
	}
}

// NewMarkdown wires the markdown generation orchestrator.
// detector may be nil; the configured language is then used as-is.
func NewMarkdown(gen Generator, detector LanguageDetector, cfg config.Config, log *logrus.Logger, opts ...MarkdownOption) *Markdown {
	m := &Markdown{
		gen:      gen,
		detector: detector,
		dirs:     cfg.Dirs,
		mode:     cfg.Consolidation,
		delay:    cfg.CallDelay,
		language: cfg.Language,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Summary tallies a directory run.
type Summary struct {
	Processed int
	Succeeded int
	Failed    int
	Errors    []string
}

// Run generates a summary document for every transcript in transcription/.
// A per-file failure persists an error-status document and the batch
// continues.
func (m *Markdown) Run(ctx context.Context) (Summary, error) {
	entries, err := os.ReadDir(m.dirs.Transcripts)
	if err != nil {
		return Summary{}, fmt.Errorf("cannot read transcript directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var sum Summary
	for _, name := range names {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		sum.Processed++

		outPath := filepath.Join(m.dirs.Markdown, trimExt(name)+".md")
		body, err := m.processFile(ctx, filepath.Join(m.dirs.Transcripts, name))
		if err != nil {
			sum.Failed++
			sum.Errors = append(sum.Errors, fmt.Sprintf("%s: %v", name, err))
			m.log.WithField("file", name).Errorf("generation failed: %v", err)
			// Persist an error-status document so the failure leaves an artifact.
			if werr := m.writeDocument(outPath, name, "", err); werr != nil {
				m.log.WithField("file", name).Warnf("failed to write error document: %v", werr)
			}
			continue
		}

		if err := m.writeDocument(outPath, name, body, nil); err != nil {
			sum.Failed++
			sum.Errors = append(sum.Errors, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		sum.Succeeded++
		m.log.WithFields(logrus.Fields{"file": name, "output": outPath}).Info("summary written")
	}

	return sum, nil
}

// processFile generates the summary body for one input file.
func (m *Markdown) processFile(ctx context.Context, path string) (string, error) {
	content, err := extractText(path)
	if err != nil {
		return "", err
	}

	instruction := m.instructionFor(content)

	if textsplit.EstimateTokens(content)+textsplit.EstimateTokens(instruction) < singleCallTokenThreshold {
		return m.generateWithRetry(ctx, instruction, content)
	}

	return m.generateChunked(ctx, instruction, content)
}

// generateChunked splits the document, generates each chunk sequentially
// with an inter-call delay and positional context, then consolidates.
func (m *Markdown) generateChunked(ctx context.Context, instruction, content string) (string, error) {
	chunks := textsplit.Split(content, textsplit.DefaultMaxTokens)
	m.log.WithField("chunks", len(chunks)).Info("document over threshold, generating in parts")

	parts := make([]string, len(chunks))
	for i, chunk := range chunks {
		if i > 0 {
			if err := sleepCtx(ctx, m.delay); err != nil {
				return "", err
			}
		}

		part, err := m.generateWithRetry(ctx, positionPreamble(i, len(chunks))+instruction, chunk)
		if err != nil {
			m.log.WithField("part", i+1).Warnf("chunk generation failed twice, using placeholder: %v", err)
			part = chunkFailurePlaceholder
		}
		parts[i] = part
	}

	if m.mode == config.ConsolidateConcat {
		return strings.Join(parts, "\n\n---\n\n"), nil
	}

	if err := sleepCtx(ctx, m.delay); err != nil {
		return "", err
	}
	merged, err := m.generateWithRetry(ctx, consolidatePrompt, joinParts(parts))
	if err != nil {
		// Fall back to concatenation rather than losing the generated parts.
		m.log.Warnf("consolidation call failed, concatenating parts: %v", err)
		return strings.Join(parts, "\n\n---\n\n"), nil
	}
	return merged, nil
}

// generateWithRetry attempts a generation call, retrying once immediately
// with identical inputs on failure.
func (m *Markdown) generateWithRetry(ctx context.Context, instruction, content string) (string, error) {
	out, err := m.gen.Generate(ctx, instruction, content)
	if err == nil {
		return out, nil
	}
	if ctx.Err() != nil {
		return "", err
	}
	return m.gen.Generate(ctx, instruction, content)
}

// instructionFor adds an output-language hint when detection disagrees with
// the configured default.
func (m *Markdown) instructionFor(content string) string {
	if m.detector == nil {
		return instructionPrompt
	}
	code := m.detector.DetectOr(content, m.language)
	if code == "" || code == "en" {
		return instructionPrompt
	}
	return fmt.Sprintf("Respond in the language with ISO 639-1 code %q.\n\n%s", code, instructionPrompt)
}

// positionPreamble annotates a chunk call with its place in the document.
func positionPreamble(index, total int) string {
	position := "middle"
	switch {
	case index == 0:
		position = "first"
	case index == total-1:
		position = "last"
	}
	return fmt.Sprintf(
		"This document was split into %d parts; you are processing part %d (%s part). "+
			"Only the first part carries the H1 title; continue the structure otherwise.\n\n",
		total, index+1, position)
}

// joinParts labels and joins chunk outputs for the consolidation call.
func joinParts(parts []string) string {
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteString("\n\n---\n\n")
		}
		fmt.Fprintf(&b, "=== PART %d ===\n\n%s", i+1, p)
	}
	return b.String()
}

// extractText reads the plain text of a supported input file.
func extractText(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".txt":
		data, err := os.ReadFile(path) // #nosec G304 -- path comes from our own directory scan
		if err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupportedFileType)
	}
}

// writeDocument persists the output with front-matter recording provenance
// and status. A non-nil genErr produces an error-status document embedding
// the message.
func (m *Markdown) writeDocument(path, sourceName, body string, genErr error) error {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "title: %s\n", trimExt(sourceName))
	fmt.Fprintf(&b, "source: %s\n", sourceName)
	fmt.Fprintf(&b, "processed: %s\n", m.now().Format(time.RFC3339))
	if genErr != nil {
		b.WriteString("status: error\n")
		fmt.Fprintf(&b, "error: %v\n", genErr)
	} else {
		b.WriteString("status: success\n")
	}
	b.WriteString("---\n\n")

	if genErr != nil {
		fmt.Fprintf(&b, "Generation failed: %v\n", genErr)
	} else {
		b.WriteString(body)
		b.WriteString("\n")
	}

	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}

// sleepCtx pauses for d unless ctx is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// trimExt strips the file extension from a name.
func trimExt(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
