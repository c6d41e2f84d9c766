package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/assemblage-lab/governor/pkg/contracts"
	"github.com/assemblage-lab/governor/pkg/llm"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printStatus(w io.Writer, s contracts.EscalationStatus) {
	_, _ = fmt.Fprintf(w, "Level:   %s\n", s.Level)
	_, _ = fmt.Fprintf(w, "Status:  %s\n", s.Status)
	_, _ = fmt.Fprintf(w, "Context: recurrence=%d domain=%s variance=%.2f signal=%s\n",
		s.Configuration.RecurrenceCount,
		s.Configuration.RiskDomainSeverity,
		s.Configuration.EvaluatorVariance,
		s.Configuration.EnforcementSignalStrength,
	)

	if len(s.Reasons) > 0 {
		_, _ = fmt.Fprintln(w, "Reasons:")
		for _, r := range s.Reasons {
			_, _ = fmt.Fprintf(w, "  - %s: %s\n", r.Code, r.Message)
		}
	}

	if s.Rationale != "" {
		_, _ = fmt.Fprintln(w, "Rationale:")
		for _, line := range strings.Split(s.Rationale, "\n") {
			_, _ = fmt.Fprintf(w, "  %s\n", line)
		}
		for _, f := range llm.ExtractUncertaintyFragments(s.Rationale) {
			_, _ = fmt.Fprintf(w, "  ? %s (%s)\n", f.Label, f.Evidence)
		}
	}

	if len(s.Actions) > 0 {
		_, _ = fmt.Fprintf(w, "Actions: %d\n", len(s.Actions))
		for _, a := range s.Actions {
			_, _ = fmt.Fprintf(w, "  - %s\n", describeAction(a))
		}
	}
	if len(s.PrintedLimitations) > 0 {
		_, _ = fmt.Fprintln(w, "Printed limitations:")
		for _, l := range s.PrintedLimitations {
			_, _ = fmt.Fprintf(w, "  - %s\n", l)
		}
	}
}

func describeAction(a contracts.ReassemblyAction) string {
	at := a.RecordedAt().UTC().Format("2006-01-02T15:04:05Z")
	switch a.Type {
	case contracts.ActionMitigation:
		return fmt.Sprintf("%s %s %s: %s", at, a.Type, a.StrategyID, a.Rationale)
	case contracts.ActionDeferral:
		return fmt.Sprintf("%s %s %s: %s", at, a.Type, a.Reason, a.Rationale)
	case contracts.ActionReEvaluation:
		var prev, next float64
		if a.PreviousScore != nil {
			prev = *a.PreviousScore
		}
		if a.NewScore != nil {
			next = *a.NewScore
		}
		return fmt.Sprintf("%s %s %.2f -> %.2f %s", at, a.Type, prev, next, a.Rationale)
	default:
		return fmt.Sprintf("%s %s", at, a.Type)
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
