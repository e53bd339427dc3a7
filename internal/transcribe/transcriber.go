// Package transcribe adapts the OpenAI speech-to-text API and orchestrates
// per-chunk transcription with bounded parallelism.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"github.com/avern/wikiscribe/internal/apierr"
	"github.com/avern/wikiscribe/internal/audio"
)

// MaxRecommendedParallel is the recommended upper limit for concurrent API
// requests. Higher values may trigger rate limiting.
const MaxRecommendedParallel = 10

// Default retry configuration for transient API failures.
const (
	defaultMaxRetries = 3
	defaultBaseDelay  = 1 * time.Second
	defaultMaxDelay   = 30 * time.Second
)

// Transcriber transcribes audio files to text.
type Transcriber interface {
	// Transcribe converts an audio file to text in the given language
	// (ISO 639-1). Returns the transcribed text or an error; corrupt input
	// is reported as apierr.ErrCorruptInput.
	Transcribe(ctx context.Context, audioPath, language string) (string, error)
}

// audioTranscriber is the slice of the OpenAI client we use.
// *openai.Client implements this implicitly; tests inject mocks.
type audioTranscriber interface {
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

// Compile-time interface compliance checks.
var (
	_ Transcriber      = (*OpenAITranscriber)(nil)
	_ audioTranscriber = (*openai.Client)(nil)
)

// OpenAITranscriber transcribes audio using OpenAI's transcription API with
// automatic retries for transient errors.
type OpenAITranscriber struct {
	client     audioTranscriber
	model      string
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// TranscriberOption configures an OpenAITranscriber.
type TranscriberOption func(*OpenAITranscriber)

// WithModel sets the transcription model.
func WithModel(model string) TranscriberOption {
	return func(t *OpenAITranscriber) {
		t.model = model
	}
}

// WithMaxRetries sets the maximum number of retry attempts.
func WithMaxRetries(n int) TranscriberOption {
	return func(t *OpenAITranscriber) {
		if n >= 0 {
			t.maxRetries = n
		}
	}
}

// WithRetryDelays sets the base and max delays for exponential backoff.
func WithRetryDelays(base, max time.Duration) TranscriberOption {
	return func(t *OpenAITranscriber) {
		if base > 0 {
			t.baseDelay = base
		}
		if max > 0 {
			t.maxDelay = max
		}
	}
}

// withClient sets a custom transcription client (for testing).
func withClient(c audioTranscriber) TranscriberOption {
	return func(t *OpenAITranscriber) {
		t.client = c
	}
}

// NewOpenAITranscriber creates an OpenAITranscriber around the given client.
func NewOpenAITranscriber(client *openai.Client, opts ...TranscriberOption) *OpenAITranscriber {
	t := &OpenAITranscriber{
		client:     client,
		model:      openai.Whisper1,
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
		maxDelay:   defaultMaxDelay,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transcribe uploads an audio file and returns the plain-text transcript.
// Transient errors (rate limits, timeouts, 5xx) are retried with backoff;
// everything else is classified into apierr sentinels and returned.
func (t *OpenAITranscriber) Transcribe(ctx context.Context, audioPath, language string) (string, error) {
	req := openai.AudioRequest{
		Model:    t.model,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatText,
		Language: language,
	}

	cfg := apierr.RetryConfig{
		MaxRetries: t.maxRetries,
		BaseDelay:  t.baseDelay,
		MaxDelay:   t.maxDelay,
	}

	return apierr.RetryWithBackoff(ctx, cfg, func() (string, error) {
		resp, err := t.client.CreateTranscription(ctx, req)
		if err != nil {
			return "", apierr.Classify(err)
		}
		return resp.Text, nil
	}, apierr.IsRetryable)
}

// ChunkResult carries one chunk's transcription outcome.
type ChunkResult struct {
	Index int
	Text  string
	Err   error // transient failure already tolerated; recorded for logging
}

// TranscribeAll transcribes chunks in parallel, bounded by maxParallel, and
// returns results in chunk-index order regardless of completion order.
//
// Transient failures are tolerated per chunk: the chunk contributes an empty
// string and the error is recorded on its ChunkResult. A corrupt-input
// rejection (apierr.ErrCorruptInput) aborts the whole operation: the file
// itself is bad, and retrying its other slices wastes spend.
func TranscribeAll(
	ctx context.Context,
	chunks []audio.Chunk,
	t Transcriber,
	language string,
	maxParallel int,
) ([]ChunkResult, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	if maxParallel < 1 {
		maxParallel = 1
	}
	if maxParallel > MaxRecommendedParallel {
		maxParallel = MaxRecommendedParallel
	}

	results := make([]ChunkResult, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)

	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			text, err := t.Transcribe(gctx, chunk.Path, language)
			if err != nil {
				if errors.Is(err, apierr.ErrCorruptInput) {
					return fmt.Errorf("chunk %d (%s): %w",
						chunk.Index, filepath.Base(chunk.Path), err)
				}
				// Transient: this chunk contributes nothing, the rest survive.
				results[i] = ChunkResult{Index: chunk.Index, Err: err}
				return nil
			}
			results[i] = ChunkResult{Index: chunk.Index, Text: text}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// Combine joins non-empty chunk transcripts with blank-line separation,
// preserving chunk order. Whitespace-only outputs are filtered first, so
// combining is idempotent with pre-filtered input. Returns "" when every
// chunk came back empty.
func Combine(results []ChunkResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		text := strings.TrimSpace(r.Text)
		if text == "" {
			continue
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n")
}
