// Package ffmpeg adapts the external ffmpeg/ffprobe binaries behind a small
// task-returning interface: probe a file's duration and size, extract the
// audio track from a video, and cut a time-bounded segment. The tool's
// process-level API is hidden entirely from callers.
package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"time"
)

// Tool invokes ffmpeg and ffprobe.
type Tool struct {
	ffmpegPath  string
	ffprobePath string // empty when ffprobe is unavailable; Probe falls back to ffmpeg
	run         Runner
	stat        func(string) (os.FileInfo, error)
}

// Option configures a Tool.
type Option func(*Tool)

// WithRunner sets the command runner (for testing).
func WithRunner(r Runner) Option {
	return func(t *Tool) {
		t.run = r
	}
}

// WithStat sets the file stat function (for testing).
func WithStat(fn func(string) (os.FileInfo, error)) Option {
	return func(t *Tool) {
		t.stat = fn
	}
}

// New resolves the ffmpeg and ffprobe binaries on PATH.
// ffprobe is optional: probing falls back to parsing ffmpeg output.
func New(opts ...Option) (*Tool, error) {
	t := &Tool{
		run:  osRunner{},
		stat: os.Stat,
	}
	for _, opt := range opts {
		opt(t)
	}

	if t.ffmpegPath == "" {
		path, err := exec.LookPath("ffmpeg")
		if err != nil {
			return nil, fmt.Errorf("%w: install ffmpeg and ensure it is on PATH", ErrNotFound)
		}
		t.ffmpegPath = path
	}
	if t.ffprobePath == "" {
		// Missing ffprobe is tolerated.
		if path, err := exec.LookPath("ffprobe"); err == nil {
			t.ffprobePath = path
		}
	}

	return t, nil
}

// Info is the result of probing a media file.
type Info struct {
	Duration time.Duration
	Size     int64
}

// ffprobeOutput captures the format.duration field of ffprobe JSON output.
type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe returns the byte size and playback duration of a media file.
func (t *Tool) Probe(ctx context.Context, path string) (Info, error) {
	fi, err := t.stat(path)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}

	dur, err := t.probeDuration(ctx, path)
	if err != nil {
		return Info{}, err
	}

	return Info{Duration: dur, Size: fi.Size()}, nil
}

// probeDuration prefers ffprobe JSON output, falling back to parsing the
// Duration line that ffmpeg prints on stderr.
func (t *Tool) probeDuration(ctx context.Context, path string) (time.Duration, error) {
	if t.ffprobePath != "" {
		args := []string{
			"-v", "quiet",
			"-print_format", "json",
			"-show_format",
			path,
		}
		out, err := t.run.CombinedOutput(ctx, t.ffprobePath, args)
		if err == nil {
			var probed ffprobeOutput
			if jsonErr := json.Unmarshal(out, &probed); jsonErr == nil && probed.Format.Duration != "" {
				secs, parseErr := strconv.ParseFloat(probed.Format.Duration, 64)
				if parseErr == nil {
					return time.Duration(secs * float64(time.Second)), nil
				}
			}
		}
		// Fall through to the ffmpeg path on any ffprobe failure.
	}

	args := []string{"-i", path, "-f", "null", "-"}
	out, err := t.run.CombinedOutput(ctx, t.ffmpegPath, args)
	if err != nil && len(out) == 0 {
		// ffmpeg exits non-zero even when it reads file info; only a fully
		// silent failure is terminal.
		return 0, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}
	return parseDurationOutput(string(out))
}

// durationRe matches "Duration: HH:MM:SS.ms" in ffmpeg stderr.
var durationRe = regexp.MustCompile(`Duration:\s*(\d+):(\d+):(\d+)\.(\d+)`)

// parseDurationOutput extracts the duration from ffmpeg stderr text.
func parseDurationOutput(output string) (time.Duration, error) {
	matches := durationRe.FindStringSubmatch(output)
	if matches == nil {
		return 0, fmt.Errorf("%w: could not parse duration from ffmpeg output", ErrProbeFailed)
	}

	h, _ := strconv.Atoi(matches[1])
	m, _ := strconv.Atoi(matches[2])
	s, _ := strconv.Atoi(matches[3])

	// Normalize the fractional part to milliseconds regardless of precision.
	frac, _ := strconv.Atoi(matches[4])
	ms := frac
	switch n := len(matches[4]); {
	case n == 1:
		ms = frac * 100
	case n == 2:
		ms = frac * 10
	case n > 3:
		for i := n; i > 3; i-- {
			ms /= 10
		}
	}

	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(ms)*time.Millisecond, nil
}

// noStreamRe matches ffmpeg's complaint about a video with no audio track.
var noStreamRe = regexp.MustCompile(`(?i)does not contain any stream`)

// ExtractAudio extracts the audio track of videoPath into audioPath as
// 16kHz mono mp3, the profile speech transcription works best with.
// Returns (false, nil) when the video has no audio stream; that is a
// skippable condition, not an error.
func (t *Tool) ExtractAudio(ctx context.Context, videoPath, audioPath string) (bool, error) {
	args := []string{
		"-y",
		"-i", videoPath,
		"-vn",
		"-acodec", "libmp3lame",
		"-ar", "16000",
		"-ac", "1",
		"-q:a", "4",
		audioPath,
	}

	out, err := t.run.CombinedOutput(ctx, t.ffmpegPath, args)
	if err != nil {
		if noStreamRe.Match(out) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v\noutput: %s", ErrExtractFailed, err, out)
	}
	return true, nil
}

// CutSegment copies the slice of src starting at start into dst.
// A non-positive duration leaves the slice unbounded so it runs to the end
// of the stream, absorbing rounding remainder in the final chunk.
func (t *Tool) CutSegment(ctx context.Context, src, dst string, start, duration time.Duration) error {
	args := []string{
		"-y",
		"-ss", formatTime(start),
		"-i", src,
	}
	if duration > 0 {
		args = append(args, "-t", formatTime(duration))
	}
	args = append(args, "-acodec", "copy", dst)

	out, err := t.run.CombinedOutput(ctx, t.ffmpegPath, args)
	if err != nil {
		return fmt.Errorf("%w: segment at %s: %v\noutput: %s",
			ErrSegmentFailed, formatTime(start), err, out)
	}
	return nil
}

// formatTime formats a duration for ffmpeg -ss/-t arguments.
func formatTime(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := d.Seconds() - float64(h*3600+m*60)
	return fmt.Sprintf("%02d:%02d:%06.3f", h, m, s)
}
