// Package scoring computes the deterministic presentation score from face
// metrics, question quality, transcript size and the audience trend.
package scoring

import (
	"math"
	"strings"
	"unicode/utf8"
)

// Component weights. They sum to 1.0.
const (
	WeightFace       = 0.40
	WeightQuestion   = 0.30
	WeightTranscript = 0.20
	WeightTrend      = 0.10
)

const (
	// Offset is added to the weighted sum before clamping.
	Offset = 10.0

	// MinScore and MaxScore bound the final score.
	MinScore = 0.0
	MaxScore = 100.0

	charsPerLengthPoint  = 20.0
	wordsPerDensityPoint = 2.0
)

// Trend describes how audience engagement moved during the talk.
type Trend string

// Trend values.
const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
)

// ParseTrend maps a client-supplied trend to a Trend. Unknown or empty
// values fall back to TrendStable.
func ParseTrend(s string) Trend {
	switch Trend(strings.ToLower(strings.TrimSpace(s))) {
	case TrendImproving:
		return TrendImproving
	case TrendDeclining:
		return TrendDeclining
	default:
		return TrendStable
	}
}

// Points returns the trend's contribution before weighting.
func (t Trend) Points() float64 {
	switch t {
	case TrendImproving:
		return 80
	case TrendDeclining:
		return 30
	default:
		return 50
	}
}

// FaceMetrics are audience averages computed on the client, each in [0,100].
type FaceMetrics struct {
	AvgCuriosity float64 `json:"avgCuriosity"`
	AvgAttention float64 `json:"avgAttention"`
	AvgVibe      float64 `json:"avgVibe"`
}

// Mean returns the average of the three metrics.
func (m FaceMetrics) Mean() float64 {
	return (m.AvgCuriosity + m.AvgAttention + m.AvgVibe) / 3
}

// Inputs are everything Compute needs. A nil Face counts as all zeros.
type Inputs struct {
	Transcript      string
	Face            *FaceMetrics
	Trend           Trend
	QuestionQuality float64
}

// Breakdown holds each weighted component alongside the raw and final score.
type Breakdown struct {
	Face       float64 `json:"face"`
	Question   float64 `json:"question"`
	Transcript float64 `json:"transcript"`
	Trend      float64 `json:"trend"`
	Raw        float64 `json:"raw"`
	Final      float64 `json:"final"`
	Rounded    int     `json:"rounded"`

	CharCount int `json:"charCount"`
	WordCount int `json:"wordCount"`
}

// Compute applies the fixed weighted formula:
//
//	face       = mean(curiosity, attention, vibe) * 0.40
//	question   = quality * 0.30
//	transcript = mean(min(100, chars/20), min(100, words/2)) * 0.20
//	trend      = {improving: 80, stable: 50, declining: 30} * 0.10
//	final      = clamp(face + question + transcript + trend + 10, 0, 100)
func Compute(in Inputs) Breakdown {
	face := FaceMetrics{}
	if in.Face != nil {
		face = *in.Face
	}
	trend := in.Trend
	if trend == "" {
		trend = TrendStable
	}

	chars := utf8.RuneCountInString(in.Transcript)
	words := len(strings.Fields(in.Transcript))

	lengthScore := math.Min(MaxScore, float64(chars)/charsPerLengthPoint)
	densityScore := math.Min(MaxScore, float64(words)/wordsPerDensityPoint)

	b := Breakdown{
		Face:       face.Mean() * WeightFace,
		Question:   in.QuestionQuality * WeightQuestion,
		Transcript: (lengthScore + densityScore) / 2 * WeightTranscript,
		Trend:      trend.Points() * WeightTrend,
		CharCount:  chars,
		WordCount:  words,
	}
	b.Raw = b.Face + b.Question + b.Transcript + b.Trend
	b.Final = Clamp(b.Raw + Offset)
	b.Rounded = int(math.Round(b.Final))
	return b
}

// Clamp bounds v to [MinScore, MaxScore].
func Clamp(v float64) float64 {
	return math.Max(MinScore, math.Min(MaxScore, v))
}
