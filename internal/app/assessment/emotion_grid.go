package assessment

import (
	"math"

	"github.com/PabloGalante/farum-therapy/internal/domain"
)

type band struct {
	lo, hi float64
}

func (b band) contains(v float64) bool {
	return v >= b.lo && v <= b.hi
}

// Bands are inclusive on both ends and scanned in declaration order, so a value
// sitting on a shared boundary resolves to the earlier (more negative / less subjective) band.
var (
	polarityBands = [5]band{
		{-1.0, -0.6}, // very negative
		{-0.6, -0.2}, // negative
		{-0.2, 0.2},  // neutral
		{0.2, 0.6},   // positive
		{0.6, 1.0},   // very positive
	}
	subjectivityBands = [3]band{
		{0.0, 0.4}, // low
		{0.4, 0.7}, // medium
		{0.7, 1.0}, // high
	}
	emotionGrid = [5][3]domain.Emotion{
		{domain.EmotionDetached, domain.EmotionSad, domain.EmotionDistressed},
		{domain.EmotionTired, domain.EmotionAnxious, domain.EmotionFrustrated},
		{domain.EmotionNeutral, domain.EmotionFocused, domain.EmotionEngaged},
		{domain.EmotionCalm, domain.EmotionPleased, domain.EmotionHappy},
		{domain.EmotionContent, domain.EmotionExcited, domain.EmotionElated},
	}
)

// LookupEmotion maps a (polarity, subjectivity) pair onto the grid.
func LookupEmotion(polarity, subjectivity float64) domain.Emotion {
	for i, pb := range polarityBands {
		if !pb.contains(polarity) {
			continue
		}
		for j, sb := range subjectivityBands {
			if sb.contains(subjectivity) {
				return emotionGrid[i][j]
			}
		}
		break
	}
	return domain.EmotionNeutral
}

// Arousal combines the strength of the feeling with how personal the text is.
func Arousal(polarity, subjectivity float64) float64 {
	return math.Min(1, (math.Abs(polarity)+subjectivity)/2)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
