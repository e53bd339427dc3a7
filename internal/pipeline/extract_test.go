package pipeline_test

// Coverage Notes:
// - Uses a scripted Extractor fake; no ffmpeg processes are spawned.

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/avern/wikiscribe/internal/config"
	"github.com/avern/wikiscribe/internal/pipeline"
)

// scriptedExtractor maps video base names to outcomes and records calls.
type scriptedExtractor struct {
	noAudio map[string]bool
	errs    map[string]error
	calls   []string
}

func (e *scriptedExtractor) ExtractAudio(_ context.Context, videoPath, audioPath string) (bool, error) {
	base := filepath.Base(videoPath)
	e.calls = append(e.calls, base)
	if err := e.errs[base]; err != nil {
		return false, err
	}
	if e.noAudio[base] {
		return false, nil
	}
	// Materialize the output like ffmpeg would.
	if err := os.WriteFile(audioPath, []byte("mp3-bytes"), 0600); err != nil {
		return false, err
	}
	return true, nil
}

func writeVideo(t *testing.T, cfg config.Config, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(cfg.Dirs.Videos, name), []byte("mp4-bytes"), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestExtractionRun(t *testing.T) {
	t.Parallel()

	cfg := testDirs(t)
	writeVideo(t, cfg, "talk.mp4")
	writeVideo(t, cfg, "slides.mkv")

	ex := &scriptedExtractor{}
	sum, err := pipeline.NewExtraction(ex, cfg, testLogger()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.Processed != 2 || sum.Succeeded != 2 {
		t.Fatalf("Summary = %+v, want 2 succeeded", sum)
	}

	for _, name := range []string{"talk.mp3", "slides.mp3"} {
		if !fileExists(filepath.Join(cfg.Dirs.Audios, name)) {
			t.Errorf("missing extracted audio %s", name)
		}
	}
}

func TestExtractionSkipsExistingAudio(t *testing.T) {
	t.Parallel()

	cfg := testDirs(t)
	writeVideo(t, cfg, "talk.mp4")
	if err := os.WriteFile(filepath.Join(cfg.Dirs.Audios, "talk.mp3"), []byte("old"), 0600); err != nil {
		t.Fatal(err)
	}

	ex := &scriptedExtractor{}
	sum, err := pipeline.NewExtraction(ex, cfg, testLogger()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(ex.calls) != 0 {
		t.Errorf("extractor called %d times, want 0 (idempotent skip)", len(ex.calls))
	}
	if sum.Processed != 0 {
		t.Errorf("Processed = %d, want 0", sum.Processed)
	}
}

func TestExtractionSkipsVideosWithoutAudio(t *testing.T) {
	t.Parallel()

	cfg := testDirs(t)
	writeVideo(t, cfg, "silent.mp4")

	ex := &scriptedExtractor{noAudio: map[string]bool{"silent.mp4": true}}
	sum, err := pipeline.NewExtraction(ex, cfg, testLogger()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.Succeeded != 0 || sum.Failed != 0 {
		t.Errorf("Summary = %+v, want silent skip with no failure", sum)
	}
}

func TestExtractionRecordsPerFileFailures(t *testing.T) {
	t.Parallel()

	cfg := testDirs(t)
	writeVideo(t, cfg, "broken.mp4")
	writeVideo(t, cfg, "fine.mp4")

	ex := &scriptedExtractor{errs: map[string]error{"broken.mp4": errors.New("invalid data")}}
	sum, err := pipeline.NewExtraction(ex, cfg, testLogger()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v, want nil (batch continues)", err)
	}
	if sum.Succeeded != 1 || sum.Failed != 1 {
		t.Errorf("Summary = %+v, want 1 succeeded and 1 failed", sum)
	}
	if len(sum.Errors) != 1 {
		t.Errorf("Errors = %v, want one entry", sum.Errors)
	}
}

func TestExtractionIgnoresNonVideoFiles(t *testing.T) {
	t.Parallel()

	cfg := testDirs(t)
	if err := os.WriteFile(filepath.Join(cfg.Dirs.Videos, "readme.txt"), []byte("text"), 0600); err != nil {
		t.Fatal(err)
	}

	ex := &scriptedExtractor{}
	sum, err := pipeline.NewExtraction(ex, cfg, testLogger()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.Processed != 0 {
		t.Errorf("Processed = %d, want 0", sum.Processed)
	}
}
