package governance

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/assemblage-lab/governor/pkg/contracts"
)

var (
	medicalTerms = []string{"medical", "patient", "health"}
	legalTerms   = []string{"law", "regulation", "rights"}
)

// InferConfiguration derives the feature vector for one evaluation.
// Recurrence is copied from rc when it is at least 1, otherwise it defaults to 1.
//
// The domain is classified from the document's free text. Medical and legal
// terms are checked independently and the legal check runs last, so a
// document matching both is LEGAL.
func InferConfiguration(doc *contracts.AnalysisResult, rc *contracts.RecurrenceContext) contracts.EscalationConfiguration {
	severity := contracts.DomainGeneral
	text := documentText(doc)

	if containsAny(text, medicalTerms) {
		severity = contracts.DomainMedical
	}
	if containsAny(text, legalTerms) {
		severity = contracts.DomainLegal
	}

	recurrence := 1
	if rc != nil && rc.RecurrenceCount >= 1 {
		recurrence = rc.RecurrenceCount
	}

	return contracts.EscalationConfiguration{
		RecurrenceCount:           recurrence,
		RiskDomainSeverity:        severity,
		EvaluatorVariance:         0,
		EnforcementSignalStrength: contracts.SignalLow,
	}
}

// documentText joins the primary insight and raw narrative, NFKC-normalized
// and lower-cased.
func documentText(doc *contracts.AnalysisResult) string {
	if doc == nil {
		return ""
	}
	text := strings.TrimSpace(doc.KeyInsight + " " + doc.RawResponse)
	return strings.ToLower(norm.NFKC.String(text))
}

func containsAny(text string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}
