// Package contracts defines the escalation data model shared by the rule
// engine, the recurrence detector, the state store and their consumers.
//
// An EscalationStatus is the unit of output: it is embedded back into the
// caller's document record (as escalation_status) and read by the report
// exporter, which prints its rationale and printed limitations.
package contracts

import (
	"errors"
	"fmt"
	"strings"
)

// EscalationLevel is the severity of a governance finding.
type EscalationLevel string

const (
	LevelNone   EscalationLevel = "NONE"
	LevelSoft   EscalationLevel = "SOFT"   // Advisory
	LevelMedium EscalationLevel = "MEDIUM" // Binding reassembly
	LevelHard   EscalationLevel = "HARD"   // Blocking
)

// Severity maps a level onto the total order NONE(0) < SOFT(1) < MEDIUM(2) < HARD(3).
// Unknown or empty levels have severity 0.
func (l EscalationLevel) Severity() int {
	switch l {
	case LevelHard:
		return 3
	case LevelMedium:
		return 2
	case LevelSoft:
		return 1
	default:
		return 0
	}
}

// Compare returns -1, 0 or 1 depending on the severity of l relative to other.
func (l EscalationLevel) Compare(other EscalationLevel) int {
	a, b := l.Severity(), other.Severity()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Valid reports whether l is one of the four known levels.
func (l EscalationLevel) Valid() bool {
	switch l {
	case LevelNone, LevelSoft, LevelMedium, LevelHard:
		return true
	}
	return false
}

// Normalize maps unknown or empty levels to NONE.
func (l EscalationLevel) Normalize() EscalationLevel {
	if !l.Valid() {
		return LevelNone
	}
	return l
}

// MaxLevel returns the more severe of a and b. Ties return a.
func MaxLevel(a, b EscalationLevel) EscalationLevel {
	if b.Severity() > a.Severity() {
		return b
	}
	return a
}

// ParseEscalationLevel parses a level name, case-insensitively.
func ParseEscalationLevel(s string) (EscalationLevel, error) {
	l := EscalationLevel(strings.ToUpper(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("unknown escalation level %q", s)
	}
	return l, nil
}

// EscalationState is the lifecycle status of an escalation.
type EscalationState string

const (
	StateDetected   EscalationState = "DETECTED"
	StateResolved   EscalationState = "RESOLVED"
	StateOverridden EscalationState = "OVERRIDDEN"
	StateDeferred   EscalationState = "DEFERRED"
)

// StateForLevel is the status a freshly computed level starts in.
func StateForLevel(l EscalationLevel) EscalationState {
	if l.Normalize() == LevelNone {
		return StateResolved
	}
	return StateDetected
}

// RiskDomainSeverity classifies the stakes of the document's domain.
type RiskDomainSeverity string

const (
	DomainGeneral  RiskDomainSeverity = "GENERAL"
	DomainMedical  RiskDomainSeverity = "MEDICAL"
	DomainLegal    RiskDomainSeverity = "LEGAL"
	DomainCritical RiskDomainSeverity = "CRITICAL"
)

// IsHighStakes reports whether the domain warrants binding reassembly.
func (d RiskDomainSeverity) IsHighStakes() bool {
	return d == DomainMedical || d == DomainCritical
}

// SignalStrength describes how strongly enforcement signals agree.
type SignalStrength string

const (
	SignalLow    SignalStrength = "LOW"
	SignalMedium SignalStrength = "MEDIUM"
	SignalHigh   SignalStrength = "HIGH"
)

// EscalationConfiguration is the feature vector derived for one evaluation.
// It is never persisted on its own.
type EscalationConfiguration struct {
	RecurrenceCount           int                `json:"recurrence_count"`
	RiskDomainSeverity        RiskDomainSeverity `json:"risk_domain_severity"`
	EvaluatorVariance         float64            `json:"evaluator_variance"`
	EnforcementSignalStrength SignalStrength     `json:"enforcement_signal_strength"`
}

// EscalationStatus is the engine's output and the unit of persisted state.
type EscalationStatus struct {
	Level              EscalationLevel         `json:"level"`
	Status             EscalationState         `json:"status"`
	Reasons            []Reason                `json:"reasons"`
	Rationale          string                  `json:"rationale,omitempty"`
	Configuration      EscalationConfiguration `json:"configuration"`
	Actions            []ReassemblyAction      `json:"actions"`
	PrintedLimitations []string                `json:"printed_limitations"`
}

// Clone returns a deep copy so callers cannot mutate shared slices.
func (s EscalationStatus) Clone() EscalationStatus {
	out := s
	out.Reasons = append([]Reason(nil), s.Reasons...)
	out.Actions = append([]ReassemblyAction(nil), s.Actions...)
	out.PrintedLimitations = append([]string(nil), s.PrintedLimitations...)
	if out.Reasons == nil {
		out.Reasons = []Reason{}
	}
	if out.Actions == nil {
		out.Actions = []ReassemblyAction{}
	}
	if out.PrintedLimitations == nil {
		out.PrintedLimitations = []string{}
	}
	return out
}

// ReasonCodes returns the codes of all reasons, in order.
func (s EscalationStatus) ReasonCodes() []ReasonCode {
	codes := make([]ReasonCode, 0, len(s.Reasons))
	for _, r := range s.Reasons {
		codes = append(codes, r.Code)
	}
	return codes
}

// ReasonCode is the closed set of explanations an escalation can carry.
type ReasonCode string

const (
	ReasonHighBlindspotIntensity ReasonCode = "HIGH_BLINDSPOT_INTENSITY"
	ReasonHighStakesAbsence      ReasonCode = "HIGH_STAKES_ABSENCE"
	ReasonHighRiskTrajectory     ReasonCode = "HIGH_RISK_TRAJECTORY"
	ReasonRecurrentPattern       ReasonCode = "RECURRENT_PATTERN"
	ReasonHighColoniality        ReasonCode = "HIGH_COLONIALITY"
	ReasonHighAbsence            ReasonCode = "HIGH_ABSENCE"
	ReasonManualTrigger          ReasonCode = "MANUAL_TRIGGER"
	ReasonManualOverride         ReasonCode = "MANUAL_OVERRIDE"
)

// ErrUnknownReasonCode is returned when a reason code is outside the closed set.
var ErrUnknownReasonCode = errors.New("unknown reason code")

var reasonMessages = map[ReasonCode]string{
	ReasonHighBlindspotIntensity: "High Blindspot Intensity detected.",
	ReasonHighStakesAbsence:      "High Absence in High-Stakes Domain.",
	ReasonHighRiskTrajectory:     "Detected High-Risk Line(s) of Flight.",
	ReasonRecurrentPattern:       "Recurrent Pattern Logic detected.",
	ReasonHighColoniality:        "Hidden normativity in the analysis.",
	ReasonHighAbsence:            "Claims exceed the evidence base.",
	ReasonManualTrigger:          "Human review required.",
	ReasonManualOverride:         "Escalation manually overridden.",
}

// Valid reports whether c belongs to the closed set.
func (c ReasonCode) Valid() bool {
	_, ok := reasonMessages[c]
	return ok
}

// DefaultMessage is the catalog message for the code.
func (c ReasonCode) DefaultMessage() string {
	return reasonMessages[c]
}

// Reason pairs a validated code with its human-readable message.
type Reason struct {
	Code    ReasonCode `json:"code"`
	Message string     `json:"message"`
}

// NewReason validates code and builds a Reason. An empty message falls back
// to the catalog message.
func NewReason(code ReasonCode, message string) (Reason, error) {
	if !code.Valid() {
		return Reason{}, fmt.Errorf("%w: %q", ErrUnknownReasonCode, code)
	}
	if message == "" {
		message = code.DefaultMessage()
	}
	return Reason{Code: code, Message: message}, nil
}

// MustReason is NewReason for static tables; it panics on an unknown code.
func MustReason(code ReasonCode, message string) Reason {
	r, err := NewReason(code, message)
	if err != nil {
		panic(err)
	}
	return r
}
