// Package engine provides the core scan orchestration pipeline: scan
// lifecycle types, checker dispatch, scoring, and the background worker
// that executes scans one at a time.
package engine

import "time"

// ScanType selects which checkers a scan runs.
type ScanType string

const (
	ScanSQLInjection ScanType = "sql_injection"
	ScanXSS          ScanType = "xss"
	ScanCSRF         ScanType = "csrf"
	ScanAuthWeakness ScanType = "auth_weakness"
	ScanFull         ScanType = "full"
)

// Valid reports whether t is one of the recognized scan types.
func (t ScanType) Valid() bool {
	switch t {
	case ScanSQLInjection, ScanXSS, ScanCSRF, ScanAuthWeakness, ScanFull:
		return true
	}
	return false
}

// ScanStatus is the lifecycle state of a scan record. Transitions are
// monotonic: pending -> in_progress -> completed|failed. A terminal
// status never changes.
type ScanStatus string

const (
	StatusPending    ScanStatus = "pending"
	StatusInProgress ScanStatus = "in_progress"
	StatusCompleted  ScanStatus = "completed"
	StatusFailed     ScanStatus = "failed"
)

// Terminal reports whether s is a final status.
func (s ScanStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Severity classifies a finding.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Rank returns the sort weight for a severity; lower sorts first.
// Unknown severities sort last.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	case SeverityInfo:
		return 4
	}
	return 5
}

// Finding is one reported potential issue produced by a checker.
type Finding struct {
	ID                string    `json:"id"`
	ScanID            string    `json:"scan_id"`
	Type              string    `json:"type"`
	Severity          Severity  `json:"severity"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	AffectedComponent string    `json:"affected_component,omitempty"`
	AffectedURL       string    `json:"affected_url,omitempty"`
	Remediation       string    `json:"remediation,omitempty"`
	CWEID             string    `json:"cwe_id,omitempty"`
	OWASPCategory     string    `json:"owasp_category,omitempty"`
	CVSSScore         float64   `json:"cvss_score"`
	IsResolved        bool      `json:"is_resolved"`
	DiscoveredAt      time.Time `json:"discovered_at"`
}

// ScanRecord is one orchestration run's metadata and lifecycle status.
// FindingsCount and the two scores are derived on completion and zero
// until then.
type ScanRecord struct {
	ID              string     `json:"id"`
	ScanType        ScanType   `json:"scan_type"`
	TargetURL       string     `json:"target_url,omitempty"`
	Status          ScanStatus `json:"status"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	FindingsCount   int        `json:"findings_count"`
	ComplianceScore int        `json:"compliance_score"`
	SecurityScore   int        `json:"security_score"`
	InitiatedBy     string     `json:"initiated_by"`
}

// Actor is the authenticated principal initiating an action. The engine
// trusts it as supplied by the auth layer.
type Actor struct {
	ID       string
	Username string
	Role     string
}

// Roles recognized by the authorization policy.
const (
	RoleAdmin           = "admin"
	RoleSecurityAnalyst = "security_analyst"
	RoleAuditor         = "auditor"
	RoleUser            = "user"
)

// CanManageScans reports whether the actor may start or cancel scans.
func (a Actor) CanManageScans() bool {
	return a.Role == RoleAdmin || a.Role == RoleSecurityAnalyst
}

// AuditEntry is one append-only audit log record.
type AuditEntry struct {
	ActorID      string
	Action       string
	ResourceType string
	ResourceID   string
	Status       string
	Details      string
}

// Audit actions emitted by the scan workflow.
const (
	AuditScanStart  = "SCAN_START"
	AuditScanCancel = "SCAN_CANCEL"
)

// Notification is one alert emitted to a user, e.g. when a scan finds
// critical issues.
type Notification struct {
	UserID   string
	Type     string
	Title    string
	Message  string
	Severity Severity
	SentVia  string
}
