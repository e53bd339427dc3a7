package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/avern/wikiscribe/internal/config"
)

// supportedVideoFormats lists container formats we hand to ffmpeg.
var supportedVideoFormats = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".mkv":  true,
	".avi":  true,
	".webm": true,
}

// Extractor extracts the audio track of a video file.
type Extractor interface {
	// ExtractAudio returns (false, nil) when the video has no audio stream.
	ExtractAudio(ctx context.Context, videoPath, audioPath string) (bool, error)
}

// Extraction runs the video-to-audio stage over the videos directory.
type Extraction struct {
	extractor Extractor
	dirs      config.Dirs
	log       *logrus.Logger
}

// NewExtraction wires the extraction stage.
func NewExtraction(extractor Extractor, cfg config.Config, log *logrus.Logger) *Extraction {
	return &Extraction{extractor: extractor, dirs: cfg.Dirs, log: log}
}

// Run extracts audio for every video in videos/ into audios/ as mp3.
// Videos whose audio already exists are skipped, making the stage
// idempotent. Per-file failures are recorded and the batch continues.
func (e *Extraction) Run(ctx context.Context) (Summary, error) {
	entries, err := os.ReadDir(e.dirs.Videos)
	if err != nil {
		return Summary{}, fmt.Errorf("cannot read video directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !supportedVideoFormats[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var sum Summary
	for _, name := range names {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}

		audioPath := filepath.Join(e.dirs.Audios, trimExt(name)+".mp3")
		if _, err := os.Stat(audioPath); err == nil {
			e.log.WithField("file", name).Debug("audio already extracted, skipping")
			continue
		}

		sum.Processed++
		videoPath := filepath.Join(e.dirs.Videos, name)
		hasAudio, err := e.extractor.ExtractAudio(ctx, videoPath, audioPath)
		if err != nil {
			sum.Failed++
			sum.Errors = append(sum.Errors, fmt.Sprintf("%s: %v", name, err))
			e.log.WithField("file", name).Errorf("extraction failed: %v", err)
			continue
		}
		if !hasAudio {
			e.log.WithField("file", name).Warn("video has no audio stream, skipping")
			continue
		}

		sum.Succeeded++
		e.log.WithFields(logrus.Fields{"file": name, "audio": audioPath}).Info("audio extracted")
	}

	return sum, nil
}
