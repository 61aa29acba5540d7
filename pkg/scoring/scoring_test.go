package scoring

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	testDelta        = 1e-9
	testLongChars    = 2000
	testLongWords    = 200
	testExpectedHigh = 88
)

// transcriptOf builds a transcript with exactly words words and chars runes.
func transcriptOf(words, chars int) string {
	parts := make([]string, words)
	for i := range parts {
		parts[i] = "w"
	}
	s := strings.Join(parts, " ")
	if pad := chars - len(s); pad > 0 {
		s += strings.Repeat("x", pad)
	}
	return s
}

func TestCompute_ReferenceCase(t *testing.T) {
	transcript := transcriptOf(testLongWords, testLongChars)
	assert.Len(t, transcript, testLongChars)

	b := Compute(Inputs{
		Transcript:      transcript,
		Face:            &FaceMetrics{AvgCuriosity: 80, AvgAttention: 80, AvgVibe: 80},
		Trend:           TrendStable,
		QuestionQuality: 70,
	})

	assert.InDelta(t, 32.0, b.Face, testDelta)
	assert.InDelta(t, 21.0, b.Question, testDelta)
	assert.InDelta(t, 20.0, b.Transcript, testDelta)
	assert.InDelta(t, 5.0, b.Trend, testDelta)
	assert.InDelta(t, 78.0, b.Raw, testDelta)
	assert.InDelta(t, 88.0, b.Final, testDelta)
	assert.Equal(t, testExpectedHigh, b.Rounded)
	assert.Equal(t, testLongChars, b.CharCount)
	assert.Equal(t, testLongWords, b.WordCount)
}

func TestCompute_Defaults(t *testing.T) {
	b := Compute(Inputs{})

	assert.InDelta(t, 0.0, b.Face, testDelta)
	assert.InDelta(t, 0.0, b.Question, testDelta)
	assert.InDelta(t, 0.0, b.Transcript, testDelta)
	assert.InDelta(t, 5.0, b.Trend, testDelta, "empty trend counts as stable")
	assert.InDelta(t, 15.0, b.Final, testDelta)
}

func TestCompute_Trend(t *testing.T) {
	tests := []struct {
		trend Trend
		want  float64
	}{
		{TrendImproving, 8},
		{TrendStable, 5},
		{TrendDeclining, 3},
	}
	for _, tt := range tests {
		t.Run(string(tt.trend), func(t *testing.T) {
			b := Compute(Inputs{Trend: tt.trend})
			assert.InDelta(t, tt.want, b.Trend, testDelta)
		})
	}
}

func TestCompute_ClampsToBounds(t *testing.T) {
	high := Compute(Inputs{
		Transcript:      transcriptOf(1000, 10000),
		Face:            &FaceMetrics{AvgCuriosity: 100, AvgAttention: 100, AvgVibe: 100},
		Trend:           TrendImproving,
		QuestionQuality: 100,
	})
	assert.InDelta(t, MaxScore, high.Final, testDelta)
	assert.Greater(t, high.Raw+Offset, MaxScore)

	low := Compute(Inputs{
		Face:            &FaceMetrics{AvgCuriosity: -200, AvgAttention: -200, AvgVibe: -200},
		QuestionQuality: -100,
	})
	assert.InDelta(t, MinScore, low.Final, testDelta)
}

func TestCompute_TranscriptSaturates(t *testing.T) {
	b := Compute(Inputs{Transcript: transcriptOf(5000, 50000)})
	assert.InDelta(t, MaxScore*WeightTranscript, b.Transcript, testDelta)
}

func TestCompute_CountsRunes(t *testing.T) {
	b := Compute(Inputs{Transcript: "héllo wörld"})
	assert.Equal(t, 11, b.CharCount)
	assert.Equal(t, 2, b.WordCount)
}

func TestCompute_Deterministic(t *testing.T) {
	in := Inputs{
		Transcript:      "the quick brown fox jumps over the lazy dog",
		Face:            &FaceMetrics{AvgCuriosity: 61.5, AvgAttention: 47.25, AvgVibe: 88},
		Trend:           TrendDeclining,
		QuestionQuality: 64,
	}
	assert.Equal(t, Compute(in), Compute(in))
}

func TestParseTrend(t *testing.T) {
	tests := []struct {
		in   string
		want Trend
	}{
		{"improving", TrendImproving},
		{"DECLINING", TrendDeclining},
		{" stable ", TrendStable},
		{"", TrendStable},
		{"sideways", TrendStable},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTrend(tt.in))
		})
	}
}
