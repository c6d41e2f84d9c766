package recurrence

import (
	"sort"

	"github.com/assemblage-lab/governor/pkg/contracts"
)

// RiskStats classifies a corpus by the escalation status persisted on each source.
type RiskStats struct {
	Total          int `json:"total"`
	High           int `json:"high"`
	Medium         int `json:"medium"`
	Low            int `json:"low"`
	RequiresAction int `json:"requires_action"`
}

// Pattern is a dominant logic label that recurs across the corpus.
type Pattern struct {
	Logic   string   `json:"logic"`
	Count   int      `json:"count"`
	Sources []string `json:"sources"`
}

// Summarize counts persisted statuses. HARD is high, MEDIUM is medium, and
// SOFT or a missing status counts as low. DETECTED and DEFERRED statuses
// still require action.
func Summarize(corpus []contracts.Source) RiskStats {
	stats := RiskStats{Total: len(corpus)}
	for _, src := range corpus {
		var status *contracts.EscalationStatus
		if src.Analysis != nil {
			status = src.Analysis.EscalationStatus
		}
		if status == nil {
			stats.Low++
			continue
		}
		switch status.Level {
		case contracts.LevelHard:
			stats.High++
		case contracts.LevelMedium:
			stats.Medium++
		case contracts.LevelSoft:
			stats.Low++
		}
		if status.Status == contracts.StateDetected || status.Status == contracts.StateDeferred {
			stats.RequiresAction++
		}
	}
	return stats
}

// TopPatterns returns up to n dominant logics that occur more than once,
// most frequent first. Labels are grouped exactly, not fuzzily.
func TopPatterns(corpus []contracts.Source, n int) []Pattern {
	byLogic := make(map[string]*Pattern)
	for _, src := range corpus {
		logic := src.Analysis.DominantLogic()
		if logic == "" {
			continue
		}
		p, ok := byLogic[logic]
		if !ok {
			p = &Pattern{Logic: logic}
			byLogic[logic] = p
		}
		p.Count++
		label := src.Title
		if label == "" {
			label = src.ID
		}
		p.Sources = append(p.Sources, label)
	}

	patterns := make([]Pattern, 0, len(byLogic))
	for _, p := range byLogic {
		if p.Count > 1 {
			patterns = append(patterns, *p)
		}
	}
	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].Count != patterns[j].Count {
			return patterns[i].Count > patterns[j].Count
		}
		return patterns[i].Logic < patterns[j].Logic
	})
	if n >= 0 && len(patterns) > n {
		patterns = patterns[:n]
	}
	return patterns
}
