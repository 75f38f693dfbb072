// Package store provides relational persistence for scan records,
// findings, audit logs, and notifications.
package store

import (
	"context"
	"errors"

	"github.com/ecomsec/scanhub/internal/engine"
)

// Sentinel errors returned by store operations.
var (
	// ErrScanActive is returned by CreateScan when a non-terminal scan
	// already exists. At most one scan may be pending or in progress at
	// a time, system-wide.
	ErrScanActive = errors.New("store: another scan is already active")

	// ErrNotFound is returned when a record does not exist or is not in
	// a state the operation applies to.
	ErrNotFound = errors.New("store: not found")
)

// ScanFilter narrows and pages a scan listing.
type ScanFilter struct {
	Status engine.ScanStatus // empty matches all statuses
	Page   int               // 1-based; defaults to 1
	Limit  int               // defaults to 10
}

// ScanPage is one page of scan history.
type ScanPage struct {
	Scans      []*engine.ScanRecord
	Page       int
	Limit      int
	Total      int
	TotalPages int
}

// DashboardStats aggregates stored scan data for the dashboard view.
type DashboardStats struct {
	TotalVulnerabilities int
	TotalScans           int
	CriticalIssues       int
	SecurityScore        int
	ComplianceScore      int
	BySeverity           map[engine.Severity]int
	RecentScans          []*engine.ScanRecord
}

// Store persists and retrieves scan state. Findings are append-only once
// written, except for the resolved flag.
type Store interface {
	// CreateScan inserts a new pending scan. It returns ErrScanActive
	// if any non-terminal scan exists; the existence check and insert
	// happen in one transaction.
	CreateScan(ctx context.Context, scanType engine.ScanType, targetURL, initiatedBy string) (*engine.ScanRecord, error)

	// GetScan returns a scan by id, or ErrNotFound.
	GetScan(ctx context.Context, id string) (*engine.ScanRecord, error)

	// ListScans returns one page of scan history, newest first.
	ListScans(ctx context.Context, f ScanFilter) (*ScanPage, error)

	// MarkInProgress transitions a pending scan to in_progress. It
	// returns ErrNotFound if the scan is missing or not pending.
	MarkInProgress(ctx context.Context, id string) error

	// MarkCompleted transitions an in_progress scan to completed and
	// stores the derived counts and scores. It returns ErrNotFound if
	// the scan is missing or already terminal.
	MarkCompleted(ctx context.Context, id string, findingsCount, complianceScore, securityScore int) error

	// MarkFailed transitions a non-terminal scan to failed.
	MarkFailed(ctx context.Context, id string) error

	// CancelScan is MarkFailed driven by a user action; it returns
	// ErrNotFound when the scan is missing or already terminal.
	CancelScan(ctx context.Context, id string) error

	// AppendFindings persists findings for a scan, assigning ids and
	// discovery timestamps where missing.
	AppendFindings(ctx context.Context, scanID string, findings []engine.Finding) error

	// ListFindings returns a scan's findings ordered by severity
	// (critical first), then by descending CVSS score.
	ListFindings(ctx context.Context, scanID string) ([]engine.Finding, error)

	// ListAllFindings returns the most recently discovered findings
	// across all scans, up to limit.
	ListAllFindings(ctx context.Context, limit int) ([]engine.Finding, error)

	// ResolveFinding marks a finding as resolved.
	ResolveFinding(ctx context.Context, id string) error

	// AppendAudit writes one append-only audit entry.
	AppendAudit(ctx context.Context, e engine.AuditEntry) error

	// InsertNotification records a notification for a user.
	InsertNotification(ctx context.Context, n engine.Notification) error

	// DashboardStats aggregates current totals, severity counts, recent
	// scans, and the latest completed scan's scores.
	DashboardStats(ctx context.Context) (*DashboardStats, error)

	Close() error
}
