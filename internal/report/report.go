// Package report assembles scan reports for API output.
package report

import (
	"sort"

	"github.com/ecomsec/scanhub/internal/engine"
)

// Document is the full report for one scan: its record, ordered
// findings, and a severity summary.
type Document struct {
	SchemaVersion string             `json:"schema_version"`
	Tool          string             `json:"tool"`
	Scan          *engine.ScanRecord `json:"scan"`
	Findings      []engine.Finding   `json:"findings"`
	Summary       Summary            `json:"summary"`
}

// Summary counts a report's findings by severity.
type Summary struct {
	TotalFindings int `json:"total_findings"`
	Critical      int `json:"critical"`
	High          int `json:"high"`
	Medium        int `json:"medium"`
	Low           int `json:"low"`
	Info          int `json:"info"`
	Resolved      int `json:"resolved"`
}

// Build assembles a report document. Findings are ordered by severity
// (critical first), then by descending CVSS score, regardless of input
// order.
func Build(scan *engine.ScanRecord, findings []engine.Finding) *Document {
	ordered := make([]engine.Finding, len(findings))
	copy(ordered, findings)
	sort.SliceStable(ordered, func(i, j int) bool {
		if a, b := ordered[i].Severity.Rank(), ordered[j].Severity.Rank(); a != b {
			return a < b
		}
		return ordered[i].CVSSScore > ordered[j].CVSSScore
	})

	var summary Summary
	summary.TotalFindings = len(ordered)
	for _, f := range ordered {
		switch f.Severity {
		case engine.SeverityCritical:
			summary.Critical++
		case engine.SeverityHigh:
			summary.High++
		case engine.SeverityMedium:
			summary.Medium++
		case engine.SeverityLow:
			summary.Low++
		case engine.SeverityInfo:
			summary.Info++
		}
		if f.IsResolved {
			summary.Resolved++
		}
	}

	return &Document{
		SchemaVersion: "1.0",
		Tool:          "scanhub",
		Scan:          scan,
		Findings:      ordered,
		Summary:       summary,
	}
}
