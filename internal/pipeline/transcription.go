// Package pipeline orchestrates the per-file stages: audio extraction from
// videos and directory-scale transcription with quarantine semantics.
//
// Files are processed one at a time; parallelism lives inside a file
// (concurrent chunk extraction and transcription), never across files.
package pipeline

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

	"github.com/avern/wikiscribe/internal/audio"
	"github.com/avern/wikiscribe/internal/config"
	"github.com/avern/wikiscribe/internal/format"
	"github.com/avern/wikiscribe/internal/transcribe"
)

// supportedAudioFormats lists formats accepted by the transcription API.
var supportedAudioFormats = map[string]bool{
	".mp3":  true,
	".mp4":  true,
	".mpeg": true,
	".mpga": true,
	".m4a":  true,
	".ogg":  true,
	".wav":  true,
	".webm": true,
	".flac": true,
}

// maxChunkDuration is the per-chunk duration cap of the transcription service.
const maxChunkDuration = config.MaxChunkSeconds * time.Second

// Segmenter splits an audio file into service-sized chunks.
type Segmenter interface {
	Segment(ctx context.Context, path string, desiredChunks int) ([]audio.Chunk, error)
}

// Validator pre-flights a file before any API spend.
type Validator interface {
	Validate(ctx context.Context, path string) bool
}

// ErrNoTranscription indicates every chunk came back empty.
var ErrNoTranscription = errors.New("no valid transcription generated")

// ErrValidationFailed indicates the pre-flight check rejected the file.
var ErrValidationFailed = errors.New("file is missing, empty, or has no decodable duration")

// Transcription runs the audio-to-transcript stage over a directory.
type Transcription struct {
	validator   Validator
	prober      audio.Prober
	segmenter   Segmenter
	transcriber transcribe.Transcriber

	dirs        config.Dirs
	language    string
	maxParallel int

	log *logrus.Logger
	now func() time.Time
}

// TranscriptionOption configures a Transcription orchestrator.
type TranscriptionOption func(*Transcription)

// WithNow sets the clock (for testing).
func WithNow(fn func() time.Time) TranscriptionOption {
	return func(t *Transcription) {
		t.now = fn
	}
}

// NewTranscription wires the transcription orchestrator.
func NewTranscription(
	validator Validator,
	prober audio.Prober,
	segmenter Segmenter,
	transcriber transcribe.Transcriber,
	cfg config.Config,
	log *logrus.Logger,
	opts ...TranscriptionOption,
) *Transcription {
	t := &Transcription{
		validator:   validator,
		prober:      prober,
		segmenter:   segmenter,
		transcriber: transcriber,
		dirs:        cfg.Dirs,
		language:    cfg.Language,
		maxParallel: cfg.MaxParallel,
		log:         log,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Summary tallies a directory run.
type Summary struct {
	Processed int
	Succeeded int
	Failed    int
	Errors    []string
}

// Run transcribes every supported audio file in the audios directory.
// Per-file failures quarantine that file and the batch continues; only a
// missing source directory aborts the run.
func (t *Transcription) Run(ctx context.Context) (Summary, error) {
	entries, err := os.ReadDir(t.dirs.Audios)
	if err != nil {
		return Summary{}, fmt.Errorf("cannot read audio directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !supportedAudioFormats[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var sum Summary
	for _, name := range names {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		sum.Processed++
		if err := t.processFile(ctx, filepath.Join(t.dirs.Audios, name)); err != nil {
			sum.Failed++
			sum.Errors = append(sum.Errors, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		sum.Succeeded++
	}

	return sum, nil
}

// processFile drives one audio file to a terminal state: transcript written
// and source relocated to transcripted/, or source quarantined to error/.
func (t *Transcription) processFile(ctx context.Context, path string) error {
	base := filepath.Base(path)
	log := t.log.WithField("file", base)

	// 1. Validate before any API spend.
	if !t.validator.Validate(ctx, path) {
		log.Warn("validation failed, quarantining")
		return t.quarantine(path, ErrValidationFailed)
	}

	// 2. Measure.
	info, err := t.prober.Probe(ctx, path)
	if err != nil {
		return t.quarantine(path, err)
	}

	// 3. Decide.
	plan := audio.PlanSegmentation(info.Size, info.Duration, config.MaxChunkBytes, maxChunkDuration)
	log.WithFields(logrus.Fields{
		"size":     format.Size(info.Size),
		"duration": format.Duration(info.Duration),
		"chunks":   plan.ChunkCount,
	}).Info("processing audio file")

	// 4. Segment if needed.
	var chunks []audio.Chunk
	if plan.NeedsSegmentation {
		chunks, err = t.segmenter.Segment(ctx, path, plan.ChunkCount)
		if err != nil {
			return t.quarantine(path, err)
		}
		// Temp chunks never outlive this run, success or failure.
		defer audio.Cleanup(chunks)

		chunks = t.filterOverlongChunks(ctx, chunks, log)
		if len(chunks) == 0 {
			return t.quarantine(path, audio.ErrNoValidChunks)
		}
	} else {
		// Whole file fits the service limits; treat it as a single chunk
		// pointing at the source (no temp file, no cleanup).
		chunks = []audio.Chunk{{Path: path, Index: 0, Source: base}}
	}

	// 5. Transcribe.
	results, err := transcribe.TranscribeAll(ctx, chunks, t.transcriber, t.language, t.maxParallel)
	if err != nil {
		return t.quarantine(path, err)
	}
	for _, r := range results {
		if r.Err != nil {
			log.WithField("chunk", r.Index).Warnf("chunk transcription failed, excluded: %v", r.Err)
		}
	}

	// 6. Combine.
	combined := transcribe.Combine(results)
	if combined == "" {
		return t.quarantine(path, ErrNoTranscription)
	}

	// 7. Persist transcript.
	outPath := filepath.Join(t.dirs.Transcripts, trimExt(base)+".md")
	if err := t.writeTranscript(outPath, base, combined); err != nil {
		return t.quarantine(path, err)
	}
	log.WithField("output", outPath).Info("transcript written")

	// 8. Relocate. A move failure must not undo the persisted success.
	if err := t.relocate(path); err != nil {
		log.Warnf("transcription succeeded but relocation failed: %v", err)
	}

	return nil
}

// filterOverlongChunks re-validates chunk durations against the service cap,
// discarding any chunk still over it. The input slice is left intact: the
// deferred Cleanup holds it and must still see every chunk path.
func (t *Transcription) filterOverlongChunks(ctx context.Context, chunks []audio.Chunk, log *logrus.Entry) []audio.Chunk {
	valid := make([]audio.Chunk, 0, len(chunks))
	for _, c := range chunks {
		info, err := t.prober.Probe(ctx, c.Path)
		if err != nil {
			log.WithField("chunk", c.Index).Warnf("chunk probe failed, discarding: %v", err)
			continue
		}
		if info.Duration > maxChunkDuration {
			log.WithField("chunk", c.Index).Warnf("chunk duration %s exceeds cap, discarding",
				format.Duration(info.Duration))
			continue
		}
		valid = append(valid, c)
	}
	return valid
}

// writeTranscript writes the transcript markdown with the fixed header block.
func (t *Transcription) writeTranscript(path, originalName, body string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# Transcript: %s\n\n", trimExt(originalName))
	fmt.Fprintf(&b, "- Original file: %s\n", originalName)
	fmt.Fprintf(&b, "- Transcribed: %s\n", t.now().Format(time.RFC3339))
	fmt.Fprintf(&b, "- Characters: %d\n", len(body))
	b.WriteString("\n---\n\n")
	b.WriteString(body)
	b.WriteString("\n")

	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	return nil
}

// relocate moves a successfully transcribed source into transcripted/,
// appending a timestamp on name collision, and drops an _info.txt sidecar
// recording provenance.
func (t *Transcription) relocate(path string) error {
	base := filepath.Base(path)
	dest := filepath.Join(t.dirs.Transcripted, base)
	if _, err := os.Stat(dest); err == nil {
		dest = filepath.Join(t.dirs.Transcripted,
			fmt.Sprintf("%s_%s%s", trimExt(base), format.Timestamp(t.now()), filepath.Ext(base)))
	}

	if err := os.Rename(path, dest); err != nil {
		return fmt.Errorf("failed to move %s: %w", base, err)
	}

	info := fmt.Sprintf("moved_from: %s\nmoved_to: %s\nmoved_at: %s\n",
		path, dest, t.now().Format(time.RFC3339))
	sidecar := filepath.Join(t.dirs.Transcripted, trimExt(base)+"_info.txt")
	if err := os.WriteFile(sidecar, []byte(info), 0600); err != nil {
		return fmt.Errorf("failed to write info sidecar: %w", err)
	}
	return nil
}

// quarantine moves a failed source into error/ with a diagnostic log and
// returns reason so the caller records the failure.
func (t *Transcription) quarantine(path string, reason error) error {
	base := filepath.Base(path)

	var size int64
	if fi, err := os.Stat(path); err == nil {
		size = fi.Size()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "file: %s\n", base)
	fmt.Fprintf(&b, "error_type: %T\n", reason)
	fmt.Fprintf(&b, "error: %v\n", reason)
	fmt.Fprintf(&b, "file_size: %d\n", size)
	fmt.Fprintf(&b, "quarantined_at: %s\n", t.now().Format(time.RFC3339))

	logPath := filepath.Join(t.dirs.Errors, trimExt(base)+"_error.log")
	if err := os.WriteFile(logPath, []byte(b.String()), 0600); err != nil {
		t.log.Warnf("failed to write error log for %s: %v", base, err)
	}

	dest := filepath.Join(t.dirs.Errors, base)
	if _, err := os.Stat(dest); err == nil {
		dest = filepath.Join(t.dirs.Errors,
			fmt.Sprintf("%s_%s%s", trimExt(base), format.Timestamp(t.now()), filepath.Ext(base)))
	}
	if err := os.Rename(path, dest); err != nil {
		t.log.Warnf("failed to quarantine %s: %v", base, err)
	}

	return reason
}

// trimExt strips the file extension from a name.
func trimExt(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
