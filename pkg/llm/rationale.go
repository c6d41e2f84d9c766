package llm

import (
	"strings"
)

// RiskRationale is a structured view of a "Type: ... | Evidence: ..." line.
type RiskRationale struct {
	Type     string
	Evidence string
}

// UncertaintyFragment is one "Possible X" entry from an ambiguity context.
type UncertaintyFragment struct {
	Label     string
	Mechanism string
	Evidence  string
}

// ParseRiskRationale finds the first line starting with "Type:" and splits
// it on "| Evidence:". Reports false when no such line exists.
func ParseRiskRationale(rationale string) (RiskRationale, bool) {
	for _, line := range strings.Split(rationale, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "[AI Signal]: "))
		if !strings.HasPrefix(line, "Type:") {
			continue
		}
		body := strings.TrimSpace(strings.TrimPrefix(line, "Type:"))
		typ, evidence, _ := strings.Cut(body, "| Evidence:")
		return RiskRationale{
			Type:     strings.TrimSpace(typ),
			Evidence: strings.TrimSpace(evidence),
		}, true
	}
	return RiskRationale{}, false
}

// ExtractUncertaintyFragments reads the fragments after "Ambiguity Context:".
func ExtractUncertaintyFragments(rationale string) []UncertaintyFragment {
	_, after, ok := strings.Cut(rationale, ambiguityHeader)
	if !ok {
		return nil
	}

	var out []UncertaintyFragment
	for _, block := range strings.Split(after, "\n\n") {
		var f UncertaintyFragment
		for _, line := range strings.Split(strings.TrimSpace(block), "\n") {
			line = strings.TrimSpace(line)
			switch {
			case strings.HasPrefix(line, "Possible "):
				parts := strings.SplitN(strings.TrimPrefix(line, "Possible "), ":", 2)
				f.Label = strings.TrimSpace(parts[0])
				if len(parts) == 2 {
					f.Mechanism = strings.TrimSpace(parts[1])
				}
			case strings.HasPrefix(line, "Evidence: "):
				f.Evidence = strings.Trim(strings.TrimPrefix(line, "Evidence: "), `"`)
			}
		}
		if f.Label != "" {
			out = append(out, f)
		}
	}
	return out
}
