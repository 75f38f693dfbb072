package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ecomsec/scanhub/internal/engine"
	"github.com/ecomsec/scanhub/internal/report"
	"github.com/ecomsec/scanhub/internal/store"
)

type startScanRequest struct {
	ScanType  engine.ScanType `json:"scan_type"`
	TargetURL string          `json:"target_url"`
}

func (s *Server) handleStartScan(w http.ResponseWriter, r *http.Request) {
	var req startScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	actor, _ := actorFrom(r.Context())

	scanID, err := s.orch.StartScan(r.Context(), req.ScanType, req.TargetURL, actor)
	switch {
	case err == nil:
	case errors.Is(err, engine.ErrInvalidScanType), errors.Is(err, engine.ErrInvalidTarget):
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, store.ErrScanActive):
		respondError(w, r, http.StatusConflict, "Another scan is currently in progress")
		return
	case errors.Is(err, engine.ErrStopped):
		respondError(w, r, http.StatusServiceUnavailable, "Scanner is shutting down")
		return
	default:
		s.logger.Error("start scan", "error", err)
		respondError(w, r, http.StatusInternalServerError, "Server error")
		return
	}

	respondData(w, r, http.StatusCreated, map[string]string{"scan_id": scanID})
}

func (s *Server) handleScanHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ScanFilter{
		Status: engine.ScanStatus(q.Get("status")),
		Page:   intParam(q.Get("page"), 1),
		Limit:  intParam(q.Get("limit"), 10),
	}

	page, err := s.store.ListScans(r.Context(), filter)
	if err != nil {
		s.logger.Error("scan history", "error", err)
		respondError(w, r, http.StatusInternalServerError, "Server error")
		return
	}

	respondData(w, r, http.StatusOK, map[string]any{
		"scans": page.Scans,
		"pagination": map[string]int{
			"page":        page.Page,
			"limit":       page.Limit,
			"total":       page.Total,
			"total_pages": page.TotalPages,
		},
	})
}

func (s *Server) handleScanDetails(w http.ResponseWriter, r *http.Request) {
	scanID := chi.URLParam(r, "scanID")

	scan, err := s.store.GetScan(r.Context(), scanID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, r, http.StatusNotFound, "Scan not found")
		return
	}
	if err != nil {
		s.logger.Error("scan details", "scan_id", scanID, "error", err)
		respondError(w, r, http.StatusInternalServerError, "Server error")
		return
	}

	findings, err := s.store.ListFindings(r.Context(), scanID)
	if err != nil {
		s.logger.Error("scan findings", "scan_id", scanID, "error", err)
		respondError(w, r, http.StatusInternalServerError, "Server error")
		return
	}

	respondData(w, r, http.StatusOK, map[string]any{
		"scan":            scan,
		"vulnerabilities": findings,
	})
}

func (s *Server) handleCancelScan(w http.ResponseWriter, r *http.Request) {
	scanID := chi.URLParam(r, "scanID")
	actor, _ := actorFrom(r.Context())

	err := s.store.CancelScan(r.Context(), scanID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, r, http.StatusNotFound, "Scan not found or already completed")
		return
	}
	if err != nil {
		s.logger.Error("cancel scan", "scan_id", scanID, "error", err)
		respondError(w, r, http.StatusInternalServerError, "Server error")
		return
	}

	if err := s.store.AppendAudit(r.Context(), engine.AuditEntry{
		ActorID:      actor.ID,
		Action:       engine.AuditScanCancel,
		ResourceType: "scan",
		ResourceID:   scanID,
		Status:       "success",
	}); err != nil {
		s.logger.Warn("audit write failed", "scan_id", scanID, "error", err)
	}

	respondMessage(w, r, http.StatusOK, "Scan cancelled successfully")
}

func (s *Server) handleScanReport(w http.ResponseWriter, r *http.Request) {
	scanID := chi.URLParam(r, "scanID")

	scan, err := s.store.GetScan(r.Context(), scanID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, r, http.StatusNotFound, "Scan not found")
		return
	}
	if err != nil {
		s.logger.Error("scan report", "scan_id", scanID, "error", err)
		respondError(w, r, http.StatusInternalServerError, "Server error")
		return
	}

	findings, err := s.store.ListFindings(r.Context(), scanID)
	if err != nil {
		s.logger.Error("scan report findings", "scan_id", scanID, "error", err)
		respondError(w, r, http.StatusInternalServerError, "Server error")
		return
	}

	respondData(w, r, http.StatusOK, report.Build(scan, findings))
}

// intParam parses a positive integer query parameter, falling back to
// def on anything else.
func intParam(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}
