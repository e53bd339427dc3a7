package ffmpeg

import "errors"

// ErrNotFound indicates the ffmpeg binary is not on PATH.
var ErrNotFound = errors.New("ffmpeg binary not found")

// ErrProbeFailed indicates duration/size introspection failed.
var ErrProbeFailed = errors.New("media probe failed")

// ErrExtractFailed indicates audio extraction from a video failed.
var ErrExtractFailed = errors.New("audio extraction failed")

// ErrSegmentFailed indicates cutting an audio segment failed.
var ErrSegmentFailed = errors.New("audio segmentation failed")
