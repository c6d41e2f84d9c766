package governance

import (
	"github.com/assemblage-lab/governor/pkg/contracts"
)

// Predicate decides whether a rule fires. Predicates must be pure. A
// returned error (or a panic) is treated as "did not match".
type Predicate func(doc *contracts.AnalysisResult, cfg contracts.EscalationConfiguration) (bool, error)

// RuleSource records how a rule entered the constitution.
type RuleSource string

const (
	SourceConstitution  RuleSource = "CONSTITUTION"
	SourceCommunityVote RuleSource = "COMMUNITY_VOTE"
)

// RuleMeta is provenance for amendable rules.
type RuleMeta struct {
	Source  RuleSource `json:"source" yaml:"source"`
	Version int        `json:"version" yaml:"version"`
}

// Consequence is what a matching rule contributes.
type Consequence struct {
	Level  contracts.EscalationLevel `json:"level"`
	Code   contracts.ReasonCode      `json:"code"`
	Reason string                    `json:"reason"`
}

// GovernanceRule is one deterministic if-then rule.
type GovernanceRule struct {
	ID          string      `json:"id"`
	Description string      `json:"description"`
	Evaluate    Predicate   `json:"-"`
	Consequence Consequence `json:"consequence"`
	Meta        *RuleMeta   `json:"meta,omitempty"`
	Expression  string      `json:"expression,omitempty"` // CEL source, for rules loaded from storage
}

// Default rule identifiers.
const (
	RuleBlindspotIntensity = "RULE_BLINDSPOT_INTENSITY"
	RuleHighStakesDomain   = "RULE_HIGH_STAKES_DOMAIN"
	RuleHighRiskTrajectory = "RULE_HIGH_RISK_TRAJECTORY"
	RuleRecurrentPattern   = "RULE_RECURRENT_PATTERN"
)

// RecurrenceThreshold is the document count at which a High pattern blocks.
const RecurrenceThreshold = 3

func isHighBlindspot(doc *contracts.AnalysisResult) bool {
	return doc.BlindspotIntensity() == contracts.IntensityHigh
}

// DefaultRules returns the ratified rules in evaluation order.
func DefaultRules() []GovernanceRule {
	meta := &RuleMeta{Source: SourceConstitution, Version: 1}
	return []GovernanceRule{
		{
			ID:          RuleBlindspotIntensity,
			Description: "Flag High Blindspot Intensity as Advisory",
			Evaluate: func(doc *contracts.AnalysisResult, _ contracts.EscalationConfiguration) (bool, error) {
				return isHighBlindspot(doc), nil
			},
			Consequence: Consequence{
				Level:  contracts.LevelSoft,
				Code:   contracts.ReasonHighBlindspotIntensity,
				Reason: "High Blindspot Intensity detected.",
			},
			Meta: meta,
		},
		{
			ID:          RuleHighStakesDomain,
			Description: "Bind Reassembly for High Stakes Domains with High Absence",
			Evaluate: func(doc *contracts.AnalysisResult, cfg contracts.EscalationConfiguration) (bool, error) {
				return isHighBlindspot(doc) && cfg.RiskDomainSeverity.IsHighStakes(), nil
			},
			Consequence: Consequence{
				Level:  contracts.LevelMedium,
				Code:   contracts.ReasonHighStakesAbsence,
				Reason: "High Absence in High-Stakes Domain.",
			},
			Meta: meta,
		},
		{
			ID:          RuleHighRiskTrajectory,
			Description: "Bind Reassembly for High Risk Trajectories",
			Evaluate: func(doc *contracts.AnalysisResult, _ contracts.EscalationConfiguration) (bool, error) {
				for _, l := range doc.LinesOfFlight() {
					if l.RiskLevel == contracts.IntensityHigh {
						return true, nil
					}
				}
				return false, nil
			},
			Consequence: Consequence{
				Level:  contracts.LevelMedium,
				Code:   contracts.ReasonHighRiskTrajectory,
				Reason: "Detected High-Risk Line(s) of Flight.",
			},
			Meta: meta,
		},
		{
			ID:          RuleRecurrentPattern,
			Description: "Block Logic that makes frequent High-Risk appearances",
			Evaluate: func(doc *contracts.AnalysisResult, cfg contracts.EscalationConfiguration) (bool, error) {
				return isHighBlindspot(doc) && cfg.RecurrenceCount >= RecurrenceThreshold, nil
			},
			Consequence: Consequence{
				Level:  contracts.LevelHard,
				Code:   contracts.ReasonRecurrentPattern,
				Reason: "Recurrent Pattern Logic detected across 3+ documents. Durability exceeds threshold.",
			},
			Meta: meta,
		},
	}
}
