package ffmpeg

import (
	"context"
	"os/exec"
)

// Runner executes external commands and returns their combined output.
// Injectable so tests never spawn real processes.
type Runner interface {
	CombinedOutput(ctx context.Context, name string, args []string) ([]byte, error)
}

// osRunner implements Runner using exec.CommandContext.
type osRunner struct{}

func (osRunner) CombinedOutput(ctx context.Context, name string, args []string) ([]byte, error) {
	// #nosec G204 -- name and args are controlled by this package, not user input
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}
