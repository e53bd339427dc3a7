package audio

import "errors"

// ErrNoValidChunks indicates segmentation produced no usable chunk files.
var ErrNoValidChunks = errors.New("no valid chunks produced")
