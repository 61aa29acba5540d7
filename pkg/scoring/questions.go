package scoring

import (
	"bufio"
	"strconv"
	"strings"
)

// Defaults used when question analysis is unavailable or malformed.
const (
	DefaultQuestionQuality  = 50.0
	DefaultQuestionInsights = "Analyzing questions..."
)

// Line keys the question analyzer is asked to emit.
const (
	keyQuestionCount = "QUESTION_COUNT"
	keyQualityScore  = "QUALITY_SCORE"
	keyInsights      = "INSIGHTS"
)

// QuestionAnalysis is the parsed result of a question-scoring call.
type QuestionAnalysis struct {
	Count    int     `json:"count"`
	Quality  float64 `json:"quality"`
	Insights string  `json:"insights"`
}

// DefaultQuestionAnalysis returns the neutral analysis used on failure.
func DefaultQuestionAnalysis() QuestionAnalysis {
	return QuestionAnalysis{
		Count:    0,
		Quality:  DefaultQuestionQuality,
		Insights: DefaultQuestionInsights,
	}
}

// ParseQuestionAnalysis reads the three-line KEY: value grammar:
//
//	QUESTION_COUNT: <int>
//	QUALITY_SCORE: <0-100>
//	INSIGHTS: <text>
//
// Keys are case-insensitive and may appear in any order. Missing or
// unparseable fields keep their defaults. ok is false when no usable
// QUALITY_SCORE line was found.
func ParseQuestionAnalysis(text string) (QuestionAnalysis, bool) {
	qa := DefaultQuestionAnalysis()
	ok := false

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		key, value, found := strings.Cut(scanner.Text(), ":")
		if !found {
			continue
		}
		key = strings.ToUpper(strings.Trim(strings.TrimSpace(key), "*-# "))
		value = strings.TrimSpace(value)

		switch key {
		case keyQuestionCount:
			if n, err := strconv.Atoi(leadingNumber(value)); err == nil && n >= 0 {
				qa.Count = n
			}
		case keyQualityScore:
			if f, err := strconv.ParseFloat(leadingNumber(value), 64); err == nil {
				qa.Quality = Clamp(f)
				ok = true
			}
		case keyInsights:
			if value != "" {
				qa.Insights = value
			}
		}
	}
	return qa, ok
}

// leadingNumber returns the numeric prefix of s so values like "72/100" or
// "3 questions" still parse.
func leadingNumber(s string) string {
	end := 0
	for end < len(s) {
		c := s[end]
		if (c >= '0' && c <= '9') || c == '.' || (end == 0 && c == '-') {
			end++
			continue
		}
		break
	}
	return s[:end]
}
