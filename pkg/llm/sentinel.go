package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/assemblage-lab/governor/pkg/contracts"
	"github.com/assemblage-lab/governor/pkg/governance"
)

// Binding policy thresholds.
const (
	UncertaintyThreshold = 0.6 // overall confidence below this needs a human
	DetectionThreshold   = 0.7 // a detection counts only above this
	MinInsightLength     = 10  // shorter insights are not worth auditing
)

// Detection is the model's finding for one pattern.
type Detection struct {
	Detected   bool     `json:"detected"`
	Confidence float64  `json:"confidence"`
	Evidence   []string `json:"evidence"`
	Mechanism  string   `json:"mechanism,omitempty"`
}

// PatternReport is the model's raw answer.
type PatternReport struct {
	SubtleDeterminism    Detection `json:"subtle_determinism"`
	HiddenNormativity    Detection `json:"hidden_normativity"`
	ScopeCreep           Detection `json:"scope_creep"`
	OverallConfidence    float64   `json:"overall_confidence"`
	EpistemicUncertainty bool      `json:"epistemic_uncertainty"`
}

type pattern struct {
	title     string // rationale line label
	short     string // ambiguity fragment label
	code      contracts.ReasonCode
	mechanism string // used when the model gives none
	pick      func(*PatternReport) Detection
}

var patterns = []pattern{
	{
		title:     "Subtle Determinism",
		short:     "Determinism",
		code:      contracts.ReasonRecurrentPattern,
		mechanism: "Phrasing that presents contingent outcomes as inevitable.",
		pick:      func(r *PatternReport) Detection { return r.SubtleDeterminism },
	},
	{
		title:     "Hidden Normativity",
		short:     "Normativity",
		code:      contracts.ReasonHighColoniality,
		mechanism: "Prescriptive statements disguised as descriptive facts.",
		pick:      func(r *PatternReport) Detection { return r.HiddenNormativity },
	},
	{
		title:     "Scope Creep",
		short:     "Scope Creep",
		code:      contracts.ReasonHighAbsence,
		mechanism: "Claims of global validity based on local evidence.",
		pick:      func(r *PatternReport) Detection { return r.ScopeCreep },
	},
}

const (
	uncertaintyRationale = "Pattern Sentinel reported high epistemic uncertainty. Human review required to verify analysis validity."
	failureRationale     = "Pattern Sentinel failed to execute. System defaulting to scrutiny (MEDIUM)."
	clearRationale       = "No discursive risks detected by Pattern Sentinel."
	ambiguityHeader      = "Ambiguity Context:"
)

// Bind maps a pattern report onto an opinion. The model only detects; the
// consequences are decided here.
func Bind(r PatternReport) governance.OracleOpinion {
	if r.EpistemicUncertainty || r.OverallConfidence < UncertaintyThreshold {
		return scrutiny(uncertaintyRationale + ambiguityContext(&r))
	}

	var (
		codes []contracts.ReasonCode
		lines []string
	)
	for _, p := range patterns {
		d := p.pick(&r)
		if !d.Detected || d.Confidence <= DetectionThreshold {
			continue
		}
		codes = append(codes, p.code)
		lines = append(lines, fmt.Sprintf("%s: %s | Evidence: %s", p.title, mechanismOr(d, p), strings.Join(d.Evidence, "; ")))
	}

	op := governance.OracleOpinion{Level: contracts.LevelNone, Reasons: []contracts.ReasonCode{}, Rationale: clearRationale}
	switch {
	case len(codes) >= 2:
		op.Level = contracts.LevelMedium
	case len(codes) == 1:
		op.Level = contracts.LevelSoft
	}
	if len(codes) > 0 {
		op.Reasons = codes
		op.Rationale = strings.Join(lines, "\n")
	}
	return op
}

func scrutiny(rationale string) governance.OracleOpinion {
	return governance.OracleOpinion{
		Level:     contracts.LevelMedium,
		Reasons:   []contracts.ReasonCode{contracts.ReasonManualTrigger},
		Rationale: rationale,
	}
}

// ambiguityContext lists partial detections, whatever their confidence.
func ambiguityContext(r *PatternReport) string {
	var fragments []string
	for _, p := range patterns {
		d := p.pick(r)
		if len(d.Evidence) == 0 {
			continue
		}
		fragments = append(fragments, fmt.Sprintf("Possible %s: %s\nEvidence: \"%s\"", p.short, mechanismOr(d, p), strings.Join(d.Evidence, `", "`)))
	}
	if len(fragments) == 0 {
		return ""
	}
	return "\n\n" + ambiguityHeader + "\n" + strings.Join(fragments, "\n\n")
}

func mechanismOr(d Detection, p pattern) string {
	if m := strings.TrimSpace(d.Mechanism); m != "" {
		return m
	}
	return p.mechanism
}

// Sentinel is an EscalationOracle backed by a chat model.
type Sentinel struct {
	client     Client
	limiter    *rate.Limiter
	failClosed bool
	logger     *slog.Logger
}

// SentinelOption configures a Sentinel.
type SentinelOption func(*Sentinel)

// WithRateLimit bounds model calls. The default is 2 per second, burst 4.
func WithRateLimit(r rate.Limit, burst int) SentinelOption {
	return func(s *Sentinel) {
		s.limiter = rate.NewLimiter(r, burst)
	}
}

// WithFailClosed makes client and parse failures return a MEDIUM
// scrutiny opinion, marked Degraded, instead of an error.
func WithFailClosed() SentinelOption {
	return func(s *Sentinel) {
		s.failClosed = true
	}
}

// WithSentinelLogger sets the logger.
func WithSentinelLogger(l *slog.Logger) SentinelOption {
	return func(s *Sentinel) {
		if l != nil {
			s.logger = l.With("component", "sentinel")
		}
	}
}

func NewSentinel(client Client, opts ...SentinelOption) *Sentinel {
	s := &Sentinel{
		client:  client,
		limiter: rate.NewLimiter(2, 4),
		logger:  slog.Default().With("component", "sentinel"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Evaluate audits doc. Trivial documents get no opinion.
func (s *Sentinel) Evaluate(ctx context.Context, doc *contracts.AnalysisResult, cfg contracts.EscalationConfiguration) (*governance.OracleOpinion, error) {
	if doc == nil || utf8.RuneCountInString(doc.KeyInsight) < MinInsightLength {
		return nil, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return s.fail(ctx, fmt.Errorf("rate limit: %w", err))
	}

	resp, err := s.client.Chat(ctx, []Message{
		{Role: "system", Content: SentinelPrompt},
		{Role: "user", Content: auditContext(doc, cfg)},
	}, &SamplingOptions{Temperature: 0.2, JSONMode: true})
	if err != nil {
		return s.fail(ctx, err)
	}

	report, err := ParseReport(resp.Content)
	if err != nil {
		return s.fail(ctx, err)
	}

	op := Bind(report)
	s.logger.DebugContext(ctx, "pattern audit complete",
		"level", op.Level,
		"reasons", len(op.Reasons),
		"overall_confidence", report.OverallConfidence,
	)
	return &op, nil
}

func (s *Sentinel) fail(ctx context.Context, err error) (*governance.OracleOpinion, error) {
	if !s.failClosed {
		return nil, fmt.Errorf("pattern sentinel: %w", err)
	}
	s.logger.WarnContext(ctx, "pattern sentinel failed, defaulting to scrutiny", "error", err)
	op := scrutiny(failureRationale)
	op.Degraded = true
	return &op, nil
}

// ParseReport decodes a model answer, tolerating a markdown code fence.
func ParseReport(content string) (PatternReport, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	}
	if content == "" {
		content = "{}"
	}

	var r PatternReport
	if err := json.Unmarshal([]byte(content), &r); err != nil {
		return PatternReport{}, fmt.Errorf("decode pattern report: %w", err)
	}
	return r, nil
}
