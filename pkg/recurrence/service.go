// Package recurrence tracks how durable a high-risk logic pattern is across
// a corpus of analyzed documents.
//
// Only documents already flagged with High blindspot intensity are tracked.
// Isolated instances stay advisory; a pattern recurring across three or more
// documents is what the rule engine treats as blocking.
package recurrence

import (
	"strings"

	"github.com/assemblage-lab/governor/pkg/contracts"
)

// Calculate scans corpus for documents sharing the current document's High
// blindspot and a fuzzy-matching dominant logic. Sources whose ID equals
// excludeID are skipped; an empty excludeID skips nothing.
//
// The returned count includes the current document, so K matches yield K+1.
// Documents that are not High or lack a dominant logic are not tracked and
// get a count of 0.
func Calculate(current *contracts.AnalysisResult, corpus []contracts.Source, excludeID string) contracts.RecurrenceContext {
	logic := current.DominantLogic()
	if current.BlindspotIntensity() != contracts.IntensityHigh || logic == "" {
		return contracts.RecurrenceContext{
			RecurrenceCount:   0,
			SimilarProcessIDs: []string{},
			CorpusSize:        len(corpus),
		}
	}

	similar := make([]string, 0)
	for _, src := range corpus {
		if excludeID != "" && src.ID == excludeID {
			continue
		}
		if isSimilar(logic, src.Analysis) {
			similar = append(similar, src.ID)
		}
	}

	return contracts.RecurrenceContext{
		RecurrenceCount:   len(similar) + 1,
		SimilarProcessIDs: similar,
		CorpusSize:        len(corpus),
	}
}

// isSimilar treats malformed entries (no analysis, no assemblage) as non-matching.
func isSimilar(logic string, other *contracts.AnalysisResult) bool {
	if other == nil || other.AssemblageAnalysis == nil {
		return false
	}
	if other.AssemblageAnalysis.BlindspotIntensity != contracts.IntensityHigh {
		return false
	}
	return LogicMatches(logic, other.AssemblageAnalysis.DominantLogic)
}

// LogicMatches reports whether two dominant logic labels match by
// case-insensitive containment in either direction. An empty label is
// contained in every string, so it matches anything.
func LogicMatches(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	return strings.Contains(la, lb) || strings.Contains(lb, la)
}
