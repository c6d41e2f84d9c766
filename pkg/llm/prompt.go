package llm

import (
	"fmt"
	"strings"

	"github.com/assemblage-lab/governor/pkg/contracts"
)

// SentinelPrompt is the system prompt for the pattern audit. The model is a
// detector only; the binding policy in Bind decides consequences.
const SentinelPrompt = `You audit the text of an analysis for three discursive patterns.
You do not judge quality, ethics or correctness, and you do not evaluate the
source material the analysis describes. Report only what the analysis text
itself says.

1. subtle_determinism: outcomes framed as inevitable or natural, removing
   human choice ("inevitable", "there is no alternative", "will necessarily").
   Conditional or probabilistic reasoning is not determinism.
2. hidden_normativity: value judgments presented as neutral description
   ("obviously", "the correct way is", "naturally, systems should").
   Attributed or argued recommendations are not hidden normativity.
3. scope_creep: universal claims drawn from local or single-case evidence.
   Explicitly bounded claims and labelled speculation are not scope creep.

Be conservative: if unsure, do not flag. Quote the minimal triggering phrase
as evidence. The mechanism explains in one or two sentences how the quoted
language functions, without new interpretation. Confidence measures the
strength of textual evidence from 0.0 to 1.0. Set epistemic_uncertainty to
true when context needed to decide is missing.

Respond with one JSON object:
{
  "subtle_determinism": {"detected": bool, "confidence": number, "evidence": [string], "mechanism": string},
  "hidden_normativity": {"detected": bool, "confidence": number, "evidence": [string], "mechanism": string},
  "scope_creep":        {"detected": bool, "confidence": number, "evidence": [string], "mechanism": string},
  "overall_confidence": number,
  "epistemic_uncertainty": bool
}`

// maxNarrative caps how much raw response text is sent for audit.
const maxNarrative = 6000

// auditContext renders the parts of the document the model audits.
func auditContext(doc *contracts.AnalysisResult, cfg contracts.EscalationConfiguration) string {
	var b strings.Builder
	b.WriteString("CONTEXT TO AUDIT:\n")
	fmt.Fprintf(&b, "Key Insight: %s\n", orNA(doc.KeyInsight))
	fmt.Fprintf(&b, "Dominant Logic: %s\n", orNA(doc.DominantLogic()))
	fmt.Fprintf(&b, "Blindspot Intensity: %s\n", orNA(string(doc.BlindspotIntensity())))

	flights := doc.LinesOfFlight()
	if len(flights) > 0 {
		parts := make([]string, 0, len(flights))
		for _, l := range flights {
			parts = append(parts, fmt.Sprintf("%s (%s)", orNA(l.Name), orNA(string(l.RiskLevel))))
		}
		fmt.Fprintf(&b, "Lines of Flight: %s\n", strings.Join(parts, "; "))
	}
	fmt.Fprintf(&b, "Recurrence Count: %d\n", cfg.RecurrenceCount)

	if narrative := strings.TrimSpace(doc.RawResponse); narrative != "" {
		if r := []rune(narrative); len(r) > maxNarrative {
			narrative = string(r[:maxNarrative])
		}
		fmt.Fprintf(&b, "Narrative:\n%s\n", narrative)
	}
	return b.String()
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
