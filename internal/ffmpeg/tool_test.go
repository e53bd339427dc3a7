package ffmpeg_test

// Coverage Notes:
// - Uses a fake Runner; no real ffmpeg/ffprobe processes are spawned.
// - New's PATH resolution is not tested; it depends on the host environment.

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/avern/wikiscribe/internal/ffmpeg"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

// call records one invocation handed to the fake runner.
type call struct {
	name string
	args []string
}

// fakeRunner replays canned outputs per binary name.
type fakeRunner struct {
	calls   []call
	outputs map[string][]byte // keyed by binary name
	errs    map[string]error
}

func (r *fakeRunner) CombinedOutput(_ context.Context, name string, args []string) ([]byte, error) {
	r.calls = append(r.calls, call{name: name, args: args})
	return r.outputs[name], r.errs[name]
}

// fakeFileInfo satisfies os.FileInfo with a fixed size.
type fakeFileInfo struct {
	size int64
}

func (f fakeFileInfo) Name() string       { return "fake" }
func (f fakeFileInfo) Size() int64        { return f.size }
func (f fakeFileInfo) Mode() fs.FileMode  { return 0644 }
func (f fakeFileInfo) ModTime() time.Time { return time.Time{} }
func (f fakeFileInfo) IsDir() bool        { return false }
func (f fakeFileInfo) Sys() any           { return nil }

func statSize(size int64) func(string) (os.FileInfo, error) {
	return func(string) (os.FileInfo, error) {
		return fakeFileInfo{size: size}, nil
	}
}

// ---------------------------------------------------------------------------
// TestProbe
// ---------------------------------------------------------------------------

func TestProbeViaFfprobe(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{
		outputs: map[string][]byte{
			"ffprobe": []byte(`{"format":{"duration":"2400.500000"}}`),
		},
	}
	tool := ffmpeg.NewTestTool("ffmpeg", "ffprobe",
		ffmpeg.WithRunner(runner), ffmpeg.WithStat(statSize(30*1024*1024)))

	info, err := tool.Probe(context.Background(), "audio.mp3")
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if want := 2400*time.Second + 500*time.Millisecond; info.Duration != want {
		t.Errorf("Duration = %v, want %v", info.Duration, want)
	}
	if want := int64(30 * 1024 * 1024); info.Size != want {
		t.Errorf("Size = %d, want %d", info.Size, want)
	}
	if len(runner.calls) != 1 || runner.calls[0].name != "ffprobe" {
		t.Errorf("calls = %v, want a single ffprobe invocation", runner.calls)
	}
}

func TestProbeFallsBackToFfmpeg(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{
		outputs: map[string][]byte{
			"ffmpeg": []byte("Input #0, mp3\n  Duration: 00:40:00.00, start: 0.0\n"),
		},
		errs: map[string]error{
			"ffprobe": errors.New("exit status 1"),
			"ffmpeg":  errors.New("exit status 1"), // ffmpeg exits non-zero with -f null
		},
	}
	tool := ffmpeg.NewTestTool("ffmpeg", "ffprobe",
		ffmpeg.WithRunner(runner), ffmpeg.WithStat(statSize(100)))

	info, err := tool.Probe(context.Background(), "audio.mp3")
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if want := 40 * time.Minute; info.Duration != want {
		t.Errorf("Duration = %v, want %v", info.Duration, want)
	}
	if len(runner.calls) != 2 {
		t.Errorf("calls = %d, want 2 (ffprobe then ffmpeg fallback)", len(runner.calls))
	}
}

func TestProbeWithoutFfprobe(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{
		outputs: map[string][]byte{
			"ffmpeg": []byte("  Duration: 01:02:03.45, bitrate: 128 kb/s\n"),
		},
	}
	tool := ffmpeg.NewTestTool("ffmpeg", "",
		ffmpeg.WithRunner(runner), ffmpeg.WithStat(statSize(1)))

	info, err := tool.Probe(context.Background(), "audio.mp3")
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	want := time.Hour + 2*time.Minute + 3*time.Second + 450*time.Millisecond
	if info.Duration != want {
		t.Errorf("Duration = %v, want %v", info.Duration, want)
	}
}

func TestProbeStatFailure(t *testing.T) {
	t.Parallel()

	tool := ffmpeg.NewTestTool("ffmpeg", "",
		ffmpeg.WithRunner(&fakeRunner{}),
		ffmpeg.WithStat(func(string) (os.FileInfo, error) {
			return nil, os.ErrNotExist
		}))

	_, err := tool.Probe(context.Background(), "missing.mp3")
	if !errors.Is(err, ffmpeg.ErrProbeFailed) {
		t.Errorf("Probe() error = %v, want ErrProbeFailed", err)
	}
}

func TestParseDurationOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		output  string
		want    time.Duration
		wantErr bool
	}{
		{
			name:   "two-digit fraction",
			output: "Duration: 00:05:30.25, start",
			want:   5*time.Minute + 30*time.Second + 250*time.Millisecond,
		},
		{
			name:   "single-digit fraction",
			output: "Duration: 00:00:01.5",
			want:   time.Second + 500*time.Millisecond,
		},
		{
			name:   "long fraction truncated to ms",
			output: "Duration: 00:00:02.123456",
			want:   2*time.Second + 123*time.Millisecond,
		},
		{
			name:    "no duration line",
			output:  "some unrelated output",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ffmpeg.ParseDurationOutput(tt.output)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDurationOutput() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseDurationOutput() = %v, want %v", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestExtractAudio
// ---------------------------------------------------------------------------

func TestExtractAudioSuccess(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	tool := ffmpeg.NewTestTool("ffmpeg", "", ffmpeg.WithRunner(runner))

	ok, err := tool.ExtractAudio(context.Background(), "in.mp4", "out.mp3")
	if err != nil {
		t.Fatalf("ExtractAudio() error = %v", err)
	}
	if !ok {
		t.Error("ExtractAudio() = false, want true")
	}

	args := strings.Join(runner.calls[0].args, " ")
	for _, want := range []string{"-vn", "-acodec libmp3lame", "-ar 16000", "-ac 1", "out.mp3"} {
		if !strings.Contains(args, want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}
}

func TestExtractAudioNoAudioStream(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{
		outputs: map[string][]byte{
			"ffmpeg": []byte("Output file does not contain any stream"),
		},
		errs: map[string]error{"ffmpeg": errors.New("exit status 1")},
	}
	tool := ffmpeg.NewTestTool("ffmpeg", "", ffmpeg.WithRunner(runner))

	ok, err := tool.ExtractAudio(context.Background(), "silent.mp4", "out.mp3")
	if err != nil {
		t.Fatalf("ExtractAudio() error = %v, want nil for missing audio stream", err)
	}
	if ok {
		t.Error("ExtractAudio() = true, want false for missing audio stream")
	}
}

func TestExtractAudioFailure(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{
		outputs: map[string][]byte{"ffmpeg": []byte("Invalid data found")},
		errs:    map[string]error{"ffmpeg": errors.New("exit status 1")},
	}
	tool := ffmpeg.NewTestTool("ffmpeg", "", ffmpeg.WithRunner(runner))

	_, err := tool.ExtractAudio(context.Background(), "broken.mp4", "out.mp3")
	if !errors.Is(err, ffmpeg.ErrExtractFailed) {
		t.Errorf("ExtractAudio() error = %v, want ErrExtractFailed", err)
	}
}

// ---------------------------------------------------------------------------
// TestCutSegment
// ---------------------------------------------------------------------------

func TestCutSegmentBounded(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	tool := ffmpeg.NewTestTool("ffmpeg", "", ffmpeg.WithRunner(runner))

	err := tool.CutSegment(context.Background(), "src.mp3", "dst.mp3",
		20*time.Minute, 10*time.Minute)
	if err != nil {
		t.Fatalf("CutSegment() error = %v", err)
	}

	args := strings.Join(runner.calls[0].args, " ")
	for _, want := range []string{"-ss 00:20:00.000", "-t 00:10:00.000", "-acodec copy", "dst.mp3"} {
		if !strings.Contains(args, want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}
}

func TestCutSegmentUnboundedRunsToEnd(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	tool := ffmpeg.NewTestTool("ffmpeg", "", ffmpeg.WithRunner(runner))

	if err := tool.CutSegment(context.Background(), "src.mp3", "dst.mp3", 0, 0); err != nil {
		t.Fatalf("CutSegment() error = %v", err)
	}

	args := strings.Join(runner.calls[0].args, " ")
	if strings.Contains(args, "-t ") {
		t.Errorf("args %q should not contain -t for unbounded segment", args)
	}
}

func TestCutSegmentFailure(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{
		errs: map[string]error{"ffmpeg": errors.New("exit status 1")},
	}
	tool := ffmpeg.NewTestTool("ffmpeg", "", ffmpeg.WithRunner(runner))

	err := tool.CutSegment(context.Background(), "src.mp3", "dst.mp3", 0, time.Minute)
	if !errors.Is(err, ffmpeg.ErrSegmentFailed) {
		t.Errorf("CutSegment() error = %v, want ErrSegmentFailed", err)
	}
}

func TestFormatTime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{"zero", 0, "00:00:00.000"},
		{"sub-second", 1500 * time.Millisecond, "00:00:01.500"},
		{"minutes", 23*time.Minute + 20*time.Second, "00:23:20.000"},
		{"hours", 2*time.Hour + 5*time.Minute + 7*time.Second, "02:05:07.000"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := ffmpeg.FormatTime(tt.d); got != tt.want {
				t.Errorf("formatTime(%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}
