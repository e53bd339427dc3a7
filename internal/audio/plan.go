package audio

import "time"

// Plan describes whether and how a source file must be segmented before
// transcription.
type Plan struct {
	NeedsSegmentation bool
	ChunkCount        int
}

// PlanSegmentation decides segmentation for a file of the given size and
// duration against the service limits. A file needs segmentation when either
// limit is exceeded; the chunk count then satisfies both limits at once:
//
//	count = max(ceil(duration/maxChunkDuration), ceil(size/maxChunkBytes))
func PlanSegmentation(size int64, duration time.Duration, maxChunkBytes int64, maxChunkDuration time.Duration) Plan {
	if size <= maxChunkBytes && duration <= maxChunkDuration {
		return Plan{NeedsSegmentation: false, ChunkCount: 1}
	}

	byDuration := ceilDiv(int64(duration), int64(maxChunkDuration))
	bySize := ceilDiv(size, maxChunkBytes)

	return Plan{NeedsSegmentation: true, ChunkCount: int(max(byDuration, bySize))}
}

// ceilDiv returns ceil(a/b) for positive b.
func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}
