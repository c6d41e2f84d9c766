package contracts

// Intensity is a qualitative Low/Medium/High judgment produced upstream.
type Intensity string

const (
	IntensityLow    Intensity = "Low"
	IntensityMedium Intensity = "Medium"
	IntensityHigh   Intensity = "High"
)

// AnalysisResult is the subset of an analyzed document the engine consumes.
type AnalysisResult struct {
	KeyInsight         string              `json:"key_insight,omitempty"`
	RawResponse        string              `json:"raw_response,omitempty"`
	AssemblageAnalysis *AssemblageAnalysis `json:"assemblage_analysis,omitempty"`
	EscalationStatus   *EscalationStatus   `json:"escalation_status,omitempty"`
}

// AssemblageAnalysis carries the qualitative tags the rules read.
type AssemblageAnalysis struct {
	BlindspotIntensity Intensity           `json:"blindspot_intensity,omitempty"`
	DominantLogic      string              `json:"dominant_logic,omitempty"`
	TrajectoryAnalysis *TrajectoryAnalysis `json:"trajectory_analysis,omitempty"`
}

// TrajectoryAnalysis lists the destabilizing forces found in the document.
type TrajectoryAnalysis struct {
	LinesOfFlight []LineOfFlight `json:"lines_of_flight,omitempty"`
}

// LineOfFlight is one escape force with its own risk level.
type LineOfFlight struct {
	Name        string    `json:"name,omitempty"`
	Description string    `json:"description,omitempty"`
	RiskLevel   Intensity `json:"risk_level"`
}

// Source is a previously analyzed document in the corpus.
type Source struct {
	ID       string          `json:"id"`
	Title    string          `json:"title,omitempty"`
	Analysis *AnalysisResult `json:"analysis,omitempty"`
}

// BlindspotIntensity is nil-safe access to assemblage_analysis.blindspot_intensity.
func (a *AnalysisResult) BlindspotIntensity() Intensity {
	if a == nil || a.AssemblageAnalysis == nil {
		return ""
	}
	return a.AssemblageAnalysis.BlindspotIntensity
}

// DominantLogic is nil-safe access to assemblage_analysis.dominant_logic.
func (a *AnalysisResult) DominantLogic() string {
	if a == nil || a.AssemblageAnalysis == nil {
		return ""
	}
	return a.AssemblageAnalysis.DominantLogic
}

// LinesOfFlight is nil-safe access to the trajectory analysis.
func (a *AnalysisResult) LinesOfFlight() []LineOfFlight {
	if a == nil || a.AssemblageAnalysis == nil || a.AssemblageAnalysis.TrajectoryAnalysis == nil {
		return nil
	}
	return a.AssemblageAnalysis.TrajectoryAnalysis.LinesOfFlight
}

// PersistedActions returns the actions saved on the document's prior status.
func (a *AnalysisResult) PersistedActions() []ReassemblyAction {
	if a == nil || a.EscalationStatus == nil {
		return nil
	}
	return a.EscalationStatus.Actions
}

// RecurrenceContext summarizes how often the document's pattern recurs in a
// corpus snapshot. RecurrenceCount includes the document itself.
type RecurrenceContext struct {
	RecurrenceCount   int      `json:"recurrence_count"`
	SimilarProcessIDs []string `json:"similar_process_ids"`
	CorpusSize        int      `json:"corpus_size"`
}
