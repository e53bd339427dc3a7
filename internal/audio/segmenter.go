// Package audio holds the local intelligence of the pipeline: deciding how
// to slice oversized files into service-sized chunks, validating inputs
// before any API spend, and cleaning up the chunk scratch space.
package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/avern/wikiscribe/internal/ffmpeg"
	"github.com/avern/wikiscribe/internal/format"
)

// Chunk represents a time-slice of an audio file awaiting transcription.
// The orchestration run that created a chunk owns it; chunks must not
// outlive the run (see Cleanup).
type Chunk struct {
	Path     string        // Absolute path to the chunk file.
	Index    int           // Zero-based index for ordering.
	Start    time.Duration // Start offset in the source audio.
	Duration time.Duration // Slice length; zero means to end-of-stream.
	Source   string        // Base name of the parent file.
}

// String returns a human-readable representation for logging.
func (c Chunk) String() string {
	if c.Duration <= 0 {
		return fmt.Sprintf("chunk %d: %s-end", c.Index, format.Duration(c.Start))
	}
	return fmt.Sprintf("chunk %d: %s+%s", c.Index, format.Duration(c.Start), format.Duration(c.Duration))
}

// MediaTool is the subset of the ffmpeg adapter the segmenter needs.
type MediaTool interface {
	Probe(ctx context.Context, path string) (ffmpeg.Info, error)
	CutSegment(ctx context.Context, src, dst string, start, duration time.Duration) error
}

// WarnFunc is a callback for non-fatal problems during segmentation.
type WarnFunc func(msg string)

// Segmenter splits audio files into even time-slices sized for the
// transcription service's upload limit.
type Segmenter struct {
	tool          MediaTool
	tempRoot      string
	maxChunkBytes int64
	maxParallel   int
	warn          WarnFunc

	stat func(string) (os.FileInfo, error)
}

// SegmenterOption configures a Segmenter.
type SegmenterOption func(*Segmenter)

// WithMaxChunkBytes overrides the per-chunk size budget.
func WithMaxChunkBytes(n int64) SegmenterOption {
	return func(s *Segmenter) {
		if n > 0 {
			s.maxChunkBytes = n
		}
	}
}

// WithMaxParallel bounds concurrent ffmpeg invocations.
func WithMaxParallel(n int) SegmenterOption {
	return func(s *Segmenter) {
		if n >= 1 {
			s.maxParallel = n
		}
	}
}

// WithWarnFunc sets the warning callback. Nil suppresses warnings.
func WithWarnFunc(fn WarnFunc) SegmenterOption {
	return func(s *Segmenter) {
		s.warn = fn
	}
}

// WithStat sets the file stat function (for testing).
func WithStat(fn func(string) (os.FileInfo, error)) SegmenterOption {
	return func(s *Segmenter) {
		s.stat = fn
	}
}

// Default segmentation parameters.
const (
	// defaultMaxChunkBytes is the transcription service upload limit (25 MiB).
	defaultMaxChunkBytes = 25 * 1024 * 1024

	// defaultMaxParallel bounds concurrent segment extractions.
	defaultMaxParallel = 4
)

// NewSegmenter creates a Segmenter writing chunk files under tempRoot.
func NewSegmenter(tool MediaTool, tempRoot string, opts ...SegmenterOption) *Segmenter {
	s := &Segmenter{
		tool:          tool,
		tempRoot:      tempRoot,
		maxChunkBytes: defaultMaxChunkBytes,
		maxParallel:   defaultMaxParallel,
		stat:          os.Stat,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Segment splits path into desiredChunks even time-slices, or into
// ceil(size/maxChunkBytes) slices when desiredChunks is zero.
//
// Extractions run concurrently, bounded by the configured parallelism.
// A single slice's extraction failure is tolerated: the slice is dropped
// with a warning and the remaining chunks survive. Missing or zero-byte
// chunk files are filtered the same way. Only an empty surviving set fails
// with ErrNoValidChunks.
//
// Chunks are written to a per-source temp subdirectory; the caller owns
// cleanup via Cleanup.
func (s *Segmenter) Segment(ctx context.Context, path string, desiredChunks int) ([]Chunk, error) {
	info, err := s.tool.Probe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to probe %s: %w", filepath.Base(path), err)
	}

	chunkCount := desiredChunks
	if chunkCount <= 0 {
		chunkCount = int(ceilDiv(info.Size, s.maxChunkBytes))
	}
	if chunkCount < 1 {
		chunkCount = 1
	}

	chunkDuration := info.Duration / time.Duration(chunkCount)

	tempDir, err := s.makeTempDir(path)
	if err != nil {
		return nil, err
	}

	base := filepath.Base(path)
	ext := filepath.Ext(path)
	chunks := make([]Chunk, chunkCount)
	for i := 0; i < chunkCount; i++ {
		dur := chunkDuration
		if i == chunkCount-1 {
			// The last slice runs to end-of-stream to absorb rounding remainder.
			dur = 0
		}
		chunks[i] = Chunk{
			Path:     filepath.Join(tempDir, fmt.Sprintf("chunk_%03d%s", i, ext)),
			Index:    i,
			Start:    time.Duration(i) * chunkDuration,
			Duration: dur,
			Source:   base,
		}
	}

	failed := make([]bool, chunkCount)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxParallel)

	for i, c := range chunks {
		i, c := i, c
		g.Go(func() error {
			if err := s.tool.CutSegment(gctx, path, c.Path, c.Start, c.Duration); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed[i] = true
				s.warnf("dropping %s of %s: %v", c, base, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		_ = os.RemoveAll(tempDir)
		return nil, err
	}

	valid := make([]Chunk, 0, chunkCount)
	for i, c := range chunks {
		if failed[i] {
			// A failed cut may still leave a partial file behind.
			_ = os.Remove(c.Path)
			continue
		}
		fi, err := s.stat(c.Path)
		if err != nil || fi.Size() == 0 {
			s.warnf("dropping %s of %s: empty or missing output", c, base)
			_ = os.Remove(c.Path)
			continue
		}
		valid = append(valid, c)
	}

	if len(valid) == 0 {
		_ = os.RemoveAll(tempDir)
		return nil, fmt.Errorf("%s: %w", base, ErrNoValidChunks)
	}

	return valid, nil
}

// makeTempDir creates the per-source scratch directory. The random suffix
// keeps concurrent runs over the same file from colliding.
func (s *Segmenter) makeTempDir(path string) (string, error) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	dir := filepath.Join(s.tempRoot, fmt.Sprintf("%s-%s", base, uuid.NewString()[:8]))
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}
	return dir, nil
}

func (s *Segmenter) warnf(msgFormat string, args ...any) {
	if s.warn != nil {
		s.warn(fmt.Sprintf(msgFormat, args...))
	}
}

// Cleanup removes chunk files and their parent scratch directory,
// best-effort. Call it in a defer so cleanup runs whether or not the
// run succeeded.
func Cleanup(chunks []Chunk) {
	if len(chunks) == 0 {
		return
	}
	for _, c := range chunks {
		_ = os.Remove(c.Path) // best-effort; files may already be gone
	}
	// The parent is the per-source scratch dir; Remove only succeeds once empty.
	_ = os.Remove(filepath.Dir(chunks[0].Path))
}
