package model

import "time"

// defaultTopAnomalies is how many anomalies a SimpleReport keeps.
const defaultTopAnomalies = 10

// SimpleReport is a summarized, human-readable view of an AnalysisReport.
// It keeps the verdict, per-channel status and the strongest anomalies.
type SimpleReport struct {
	// Path is the analyzed file.
	Path string `json:"path"`

	// AnalyzedAt is when the analysis finished.
	AnalyzedAt time.Time `json:"analyzed_at"`

	// Verdict is the human-readable verdict label.
	Verdict string `json:"verdict"`

	// ConfidenceScore is the combined evidence in [0,1].
	ConfidenceScore float64 `json:"confidence_score"`

	// Threshold is the verdict cut-off.
	Threshold float64 `json:"threshold"`

	// === Severity Summary ===

	CriticalCount int `json:"critical_count"`
	HighCount     int `json:"high_count"`
	MediumCount   int `json:"medium_count"`
	LowCount      int `json:"low_count"`
	InfoCount     int `json:"info_count"`

	// Channels summarizes each channel outcome.
	Channels []ChannelSummary `json:"channels"`

	// TopAnomalies holds the strongest anomalies, most severe first.
	TopAnomalies []Anomaly `json:"top_anomalies,omitempty"`
}

// ChannelSummary is the one-line view of a ChannelResult.
type ChannelSummary struct {
	Channel      Channel       `json:"channel"`
	Status       ChannelStatus `json:"status"`
	SubScore     float64       `json:"sub_score"`
	Weight       float64       `json:"weight"`
	AnomalyCount int           `json:"anomaly_count"`
	Units        int           `json:"units"`
	Reason       string        `json:"reason,omitempty"`
}

// NewSimpleReport creates a SimpleReport from a full report.
func NewSimpleReport(r *AnalysisReport) *SimpleReport {
	s := &SimpleReport{
		Path:            r.Asset.Path,
		AnalyzedAt:      r.AnalyzedAt,
		Verdict:         r.Verdict(),
		ConfidenceScore: r.ConfidenceScore,
		Threshold:       r.Threshold,
	}

	for _, c := range r.Channels {
		s.Channels = append(s.Channels, ChannelSummary{
			Channel:      c.Channel,
			Status:       c.Status,
			SubScore:     c.Score(),
			Weight:       r.EffectiveWeights[c.Channel],
			AnomalyCount: len(c.Anomalies),
			Units:        c.Units,
			Reason:       c.Reason,
		})
	}

	for _, a := range r.Anomalies {
		switch a.Level() {
		case SeverityCritical:
			s.CriticalCount++
		case SeverityHigh:
			s.HighCount++
		case SeverityMedium:
			s.MediumCount++
		case SeverityLow:
			s.LowCount++
		default:
			s.InfoCount++
		}
	}

	top := min(len(r.Anomalies), defaultTopAnomalies)
	s.TopAnomalies = append([]Anomaly(nil), r.Anomalies[:top]...)
	return s
}

// TotalAnomalies returns the number of anomalies across all levels.
func (s *SimpleReport) TotalAnomalies() int {
	return s.CriticalCount + s.HighCount + s.MediumCount + s.LowCount + s.InfoCount
}

// HasAnomalies reports whether any anomaly was recorded.
func (s *SimpleReport) HasAnomalies() bool {
	return s.TotalAnomalies() > 0
}
