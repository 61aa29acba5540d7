// Package feedback fuses a finished session's transcript, model analyses
// and audience metrics into one scored report.
package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/txn2/talkback/pkg/analysis"
	"github.com/txn2/talkback/pkg/audit"
	"github.com/txn2/talkback/pkg/scoring"
	"github.com/txn2/talkback/pkg/transcript"
)

// Stage names reported in Report.Degraded.
const (
	StageCritique  = "critique"
	StageQuestions = "questions"
	StageTagging   = "tagging"
	StageJudge     = "judge"
)

// FallbackFeedback replaces the critique when the model call fails.
const FallbackFeedback = "Feedback is unavailable for this session. The score below was computed from the remaining signals."

// DefaultJudgeScore is used when the holistic score cannot be obtained.
const DefaultJudgeScore = 50

// Critic produces a free-text critique of a transcript.
type Critic interface {
	Critique(ctx context.Context, transcript string) (string, error)
}

// QuestionScorer returns raw QUESTION_COUNT/QUALITY_SCORE/INSIGHTS text.
type QuestionScorer interface {
	ScoreQuestions(ctx context.Context, transcript string) (string, error)
}

// SpeakerTagger prefixes each line with [PRESENTER] or [JUDGE].
type SpeakerTagger interface {
	Tag(ctx context.Context, transcript string) (string, error)
}

// JudgeScorer returns a single holistic 0-100 score.
type JudgeScorer interface {
	JudgeScore(ctx context.Context, transcript string) (int, error)
}

// Analyzer bundles every external analysis the pipeline calls.
type Analyzer interface {
	Critic
	QuestionScorer
	SpeakerTagger
	JudgeScorer
}

// Request asks for a session to be finalized.
type Request struct {
	SessionID string               `json:"sessionId"`
	Face      *scoring.FaceMetrics `json:"faceMetrics,omitempty"`
	Trend     string               `json:"trend,omitempty"`
}

// Report is the fused result of one finalize call.
type Report struct {
	SessionID        string               `json:"sessionId"`
	Score            int                  `json:"score"`
	Breakdown        scoring.Breakdown    `json:"breakdown"`
	Feedback         string               `json:"feedback"`
	Transcript       string               `json:"transcript"`
	TaggedTranscript string               `json:"taggedTranscript"`
	Segments         []transcript.Segment `json:"segments"`
	QuestionCount    int                  `json:"questionCount"`
	QuestionQuality  float64              `json:"questionQuality"`
	Insights         []string             `json:"insights"`
	Trend            scoring.Trend        `json:"trend"`
	JudgeScore       int                  `json:"judgeScore"`
	ChunkCount       int                  `json:"chunkCount"`
	Degraded         []string             `json:"degraded,omitempty"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithAuditLogger records finalize outcomes.
func WithAuditLogger(logger audit.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.auditLogger = logger
		}
	}
}

// WithStageTimeout bounds each external analysis call. Zero means no bound
// beyond the caller's context.
func WithStageTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.stageTimeout = d }
}

// Pipeline finalizes sessions.
type Pipeline struct {
	store        transcript.Store
	analyzer     Analyzer
	auditLogger  audit.Logger
	stageTimeout time.Duration
}

// Verify interface compliance.
var _ Analyzer = (*analysis.Analyzer)(nil)

// New creates a Pipeline reading from store and analyzing with a.
func New(store transcript.Store, a Analyzer, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:       store,
		analyzer:    a,
		auditLogger: audit.NoopLogger{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type stageResults struct {
	feedback string
	tagged   string
	qa       scoring.QuestionAnalysis
	judge    int

	critiqueFailed  bool
	questionsFailed bool
	taggingFailed   bool
	judgeFailed     bool
}

// Finalize takes the session's transcript, clearing it, and fuses it with
// the external analyses and the supplied audience metrics. Only an empty
// session is an error. Analysis failures fall back to defaults and are
// listed in Report.Degraded.
func (p *Pipeline) Finalize(ctx context.Context, req Request) (*Report, error) {
	start := time.Now()

	asm, err := p.store.Take(ctx, req.SessionID)
	if err != nil {
		p.record(req.SessionID, nil, err, start)
		return nil, fmt.Errorf("finalizing session %s: %w", req.SessionID, err)
	}

	slog.Info("finalizing session",
		"session_id", req.SessionID,
		"chunks", asm.ChunkCount,
		"chars", len(asm.Text))

	res := p.analyze(ctx, req.SessionID, asm.Text)

	trend := scoring.ParseTrend(req.Trend)
	breakdown := scoring.Compute(scoring.Inputs{
		Transcript:      asm.Text,
		Face:            req.Face,
		Trend:           trend,
		QuestionQuality: res.qa.Quality,
	})

	slog.Info("session scored",
		"session_id", req.SessionID,
		"face", breakdown.Face,
		"question", breakdown.Question,
		"transcript", breakdown.Transcript,
		"trend", breakdown.Trend,
		"raw", breakdown.Raw,
		"final", breakdown.Final)

	report := &Report{
		SessionID:        req.SessionID,
		Score:            breakdown.Rounded,
		Breakdown:        breakdown,
		Feedback:         res.feedback,
		Transcript:       asm.Text,
		TaggedTranscript: res.tagged,
		Segments:         asm.Segments,
		QuestionCount:    res.qa.Count,
		QuestionQuality:  res.qa.Quality,
		Insights:         []string{res.qa.Insights},
		Trend:            trend,
		JudgeScore:       res.judge,
		ChunkCount:       asm.ChunkCount,
		Degraded:         res.degraded(),
	}

	p.record(req.SessionID, report, nil, start)
	return report, nil
}

// analyze runs the four external calls concurrently. None of them can fail
// the group: each converts its own failure into a default.
func (p *Pipeline) analyze(ctx context.Context, sessionID, text string) stageResults {
	res := stageResults{
		feedback: FallbackFeedback,
		tagged:   text,
		qa:       scoring.DefaultQuestionAnalysis(),
		judge:    DefaultJudgeScore,
	}

	var g errgroup.Group

	g.Go(func() error {
		sctx, cancel := p.stageContext(ctx)
		defer cancel()
		out, err := p.analyzer.Critique(sctx, text)
		if err != nil {
			p.degrade(sessionID, StageCritique, err)
			res.critiqueFailed = true
			return nil
		}
		res.feedback = out
		return nil
	})

	g.Go(func() error {
		sctx, cancel := p.stageContext(ctx)
		defer cancel()
		out, err := p.analyzer.ScoreQuestions(sctx, text)
		if err != nil {
			p.degrade(sessionID, StageQuestions, err)
			res.questionsFailed = true
			return nil
		}
		qa, ok := scoring.ParseQuestionAnalysis(out)
		if !ok {
			p.degrade(sessionID, StageQuestions, fmt.Errorf("malformed question analysis: %q", out))
			res.questionsFailed = true
		}
		res.qa = qa
		return nil
	})

	g.Go(func() error {
		sctx, cancel := p.stageContext(ctx)
		defer cancel()
		out, err := p.analyzer.Tag(sctx, text)
		if err != nil {
			p.degrade(sessionID, StageTagging, err)
			res.taggingFailed = true
			return nil
		}
		if !analysis.ValidTagged(out) {
			p.degrade(sessionID, StageTagging, fmt.Errorf("untagged speaker output: %q", out))
			res.taggingFailed = true
			return nil
		}
		res.tagged = out
		return nil
	})

	g.Go(func() error {
		sctx, cancel := p.stageContext(ctx)
		defer cancel()
		score, err := p.analyzer.JudgeScore(sctx, text)
		if err != nil {
			p.degrade(sessionID, StageJudge, err)
			res.judgeFailed = true
			return nil
		}
		res.judge = score
		return nil
	})

	_ = g.Wait()
	return res
}

func (r stageResults) degraded() []string {
	var out []string
	if r.critiqueFailed {
		out = append(out, StageCritique)
	}
	if r.questionsFailed {
		out = append(out, StageQuestions)
	}
	if r.taggingFailed {
		out = append(out, StageTagging)
	}
	if r.judgeFailed {
		out = append(out, StageJudge)
	}
	return out
}

func (p *Pipeline) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.stageTimeout > 0 {
		return context.WithTimeout(ctx, p.stageTimeout)
	}
	return context.WithCancel(ctx)
}

func (*Pipeline) degrade(sessionID, stage string, err error) {
	slog.Warn("analysis degraded", "session_id", sessionID, "stage", stage, "error", err)
}

func (p *Pipeline) record(sessionID string, report *Report, err error, start time.Time) {
	ev := audit.NewEvent(audit.KindSessionFinalized).WithSession(sessionID)
	if err != nil {
		audit.LogAsync(p.auditLogger, ev.WithResult(false, err.Error(), time.Since(start).Milliseconds()))
		return
	}
	audit.LogAsync(p.auditLogger, ev.
		WithDetails(map[string]any{
			"score":       report.Score,
			"judge_score": report.JudgeScore,
			"chunks":      report.ChunkCount,
			"degraded":    report.Degraded,
		}).
		WithResult(true, "", time.Since(start).Milliseconds()))
}
