package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ecomsec/scanhub/internal/store"
)

func (s *Server) handleListVulnerabilities(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r.URL.Query().Get("limit"), 100)

	findings, err := s.store.ListAllFindings(r.Context(), limit)
	if err != nil {
		s.logger.Error("list vulnerabilities", "error", err)
		respondError(w, r, http.StatusInternalServerError, "Server error")
		return
	}

	respondData(w, r, http.StatusOK, findings)
}

func (s *Server) handleResolveFinding(w http.ResponseWriter, r *http.Request) {
	findingID := chi.URLParam(r, "findingID")

	err := s.store.ResolveFinding(r.Context(), findingID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, r, http.StatusNotFound, "Vulnerability not found")
		return
	}
	if err != nil {
		s.logger.Error("resolve finding", "finding_id", findingID, "error", err)
		respondError(w, r, http.StatusInternalServerError, "Server error")
		return
	}

	respondMessage(w, r, http.StatusOK, "Vulnerability marked as resolved")
}

func (s *Server) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.DashboardStats(r.Context())
	if err != nil {
		s.logger.Error("dashboard stats", "error", err)
		respondError(w, r, http.StatusInternalServerError, "Server error")
		return
	}

	bySeverity := make(map[string]int, len(stats.BySeverity))
	for sev, n := range stats.BySeverity {
		bySeverity[string(sev)] = n
	}

	respondData(w, r, http.StatusOK, map[string]any{
		"total_vulnerabilities":       stats.TotalVulnerabilities,
		"total_scans":                 stats.TotalScans,
		"critical_issues":             stats.CriticalIssues,
		"security_score":              stats.SecurityScore,
		"compliance_score":            stats.ComplianceScore,
		"vulnerabilities_by_severity": bySeverity,
		"recent_scans":                stats.RecentScans,
	})
}
