package narration

import "time"

// Aggregate combines the chunk index and the position within it into an
// overall completion fraction in [0, 1].
func Aggregate(currentIndex, totalChunks int, position, duration time.Duration) float64 {
	if totalChunks <= 0 {
		return 0
	}
	overall := (float64(currentIndex) + chunkFraction(position, duration)) / float64(totalChunks)
	return clamp01(overall)
}

func chunkFraction(position, duration time.Duration) float64 {
	if duration <= 0 {
		return 0
	}
	return clamp01(float64(position) / float64(duration))
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
