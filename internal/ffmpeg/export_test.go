package ffmpeg

import "os"

// Exports for testing. These allow black-box tests to build a Tool without
// PATH lookups and to exercise internal parsing helpers.

// NewTestTool creates a Tool with fixed binary paths, skipping exec.LookPath.
func NewTestTool(ffmpegPath, ffprobePath string, opts ...Option) *Tool {
	t := &Tool{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		run:         osRunner{},
		stat:        os.Stat,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Function exports for unit testing internal logic.
var (
	ParseDurationOutput = parseDurationOutput
	FormatTime          = formatTime
)
