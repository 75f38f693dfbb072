package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ecomsec/scanhub/internal/engine"
)

// SQLiteStore implements Store using SQLite via modernc.org/sqlite
// (pure Go).
type SQLiteStore struct {
	db *sql.DB
}

// Compile-time check that SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

const schema = `
	CREATE TABLE IF NOT EXISTS vulnerability_scans (
		id               TEXT PRIMARY KEY,
		scan_type        TEXT NOT NULL,
		target_url       TEXT NOT NULL DEFAULT '',
		status           TEXT NOT NULL DEFAULT 'pending',
		started_at       DATETIME NOT NULL,
		completed_at     DATETIME,
		findings_count   INTEGER NOT NULL DEFAULT 0,
		compliance_score INTEGER NOT NULL DEFAULT 0,
		security_score   INTEGER NOT NULL DEFAULT 0,
		initiated_by     TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_scans_status ON vulnerability_scans(status);
	CREATE INDEX IF NOT EXISTS idx_scans_started_at ON vulnerability_scans(started_at);

	CREATE TABLE IF NOT EXISTS vulnerabilities (
		id                 TEXT PRIMARY KEY,
		scan_id            TEXT NOT NULL REFERENCES vulnerability_scans(id),
		vulnerability_type TEXT NOT NULL,
		severity           TEXT NOT NULL,
		title              TEXT NOT NULL,
		description        TEXT NOT NULL DEFAULT '',
		affected_component TEXT NOT NULL DEFAULT '',
		affected_url       TEXT NOT NULL DEFAULT '',
		remediation        TEXT NOT NULL DEFAULT '',
		cwe_id             TEXT NOT NULL DEFAULT '',
		owasp_category     TEXT NOT NULL DEFAULT '',
		cvss_score         REAL NOT NULL DEFAULT 0,
		is_resolved        INTEGER NOT NULL DEFAULT 0,
		discovered_at      DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_vulns_scan_id ON vulnerabilities(scan_id);

	CREATE TABLE IF NOT EXISTS audit_logs (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id       TEXT NOT NULL DEFAULT '',
		action        TEXT NOT NULL,
		resource_type TEXT NOT NULL DEFAULT '',
		resource_id   TEXT NOT NULL DEFAULT '',
		status        TEXT NOT NULL DEFAULT '',
		details       TEXT NOT NULL DEFAULT '',
		created_at    DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id           TEXT NOT NULL,
		notification_type TEXT NOT NULL,
		title             TEXT NOT NULL,
		message           TEXT NOT NULL DEFAULT '',
		severity          TEXT NOT NULL DEFAULT '',
		sent_via          TEXT NOT NULL DEFAULT '',
		created_at        DATETIME NOT NULL
	);
`

// NewSQLiteStore creates a new SQLite-backed store. dbPath is the path
// to the SQLite database file; use ":memory:" for testing.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	// SQLite allows a single writer. One connection serializes the
	// check-then-insert admission in CreateScan and keeps every
	// transition ordered.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// ------------------------------------------------------------------ //
// Scans
// ------------------------------------------------------------------ //

// CreateScan inserts a new pending scan after verifying no other scan is
// active, inside one transaction.
func (s *SQLiteStore) CreateScan(ctx context.Context, scanType engine.ScanType, targetURL, initiatedBy string) (*engine.ScanRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback()

	var active int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM vulnerability_scans WHERE status IN ('pending', 'in_progress')`,
	).Scan(&active)
	if err != nil {
		return nil, fmt.Errorf("store: count active scans: %w", err)
	}
	if active > 0 {
		return nil, ErrScanActive
	}

	rec := &engine.ScanRecord{
		ID:          uuid.New().String(),
		ScanType:    scanType,
		TargetURL:   targetURL,
		Status:      engine.StatusPending,
		StartedAt:   time.Now().UTC(),
		InitiatedBy: initiatedBy,
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO vulnerability_scans (id, scan_type, target_url, status, started_at, initiated_by)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.ScanType), rec.TargetURL, string(rec.Status),
		formatTime(rec.StartedAt), rec.InitiatedBy,
	)
	if err != nil {
		return nil, fmt.Errorf("store: insert scan: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit scan insert: %w", err)
	}
	return rec, nil
}

const scanColumns = `id, scan_type, target_url, status, started_at, completed_at,
	findings_count, compliance_score, security_score, initiated_by`

// GetScan returns a scan by id.
func (s *SQLiteStore) GetScan(ctx context.Context, id string) (*engine.ScanRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+scanColumns+` FROM vulnerability_scans WHERE id = ?`, id)
	rec, err := scanScanRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get scan: %w", err)
	}
	return rec, nil
}

// ListScans returns one page of scan history, newest first.
func (s *SQLiteStore) ListScans(ctx context.Context, f ScanFilter) (*ScanPage, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 10
	}

	where := ""
	var args []any
	if f.Status != "" {
		where = " WHERE status = ?"
		args = append(args, string(f.Status))
	}

	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM vulnerability_scans`+where, args...,
	).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("store: count scans: %w", err)
	}

	query := `SELECT ` + scanColumns + ` FROM vulnerability_scans` + where +
		` ORDER BY started_at DESC, id LIMIT ? OFFSET ?`
	args = append(args, f.Limit, (f.Page-1)*f.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list scans: %w", err)
	}
	defer rows.Close()

	scans := make([]*engine.ScanRecord, 0, f.Limit)
	for rows.Next() {
		rec, err := scanScanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan row: %w", err)
		}
		scans = append(scans, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate scans: %w", err)
	}

	return &ScanPage{
		Scans:      scans,
		Page:       f.Page,
		Limit:      f.Limit,
		Total:      total,
		TotalPages: (total + f.Limit - 1) / f.Limit,
	}, nil
}

// MarkInProgress transitions a pending scan to in_progress.
func (s *SQLiteStore) MarkInProgress(ctx context.Context, id string) error {
	return s.transition(ctx,
		`UPDATE vulnerability_scans SET status = 'in_progress'
		 WHERE id = ? AND status = 'pending'`, id)
}

// MarkCompleted transitions an in_progress scan to completed with its
// derived counts and scores.
func (s *SQLiteStore) MarkCompleted(ctx context.Context, id string, findingsCount, complianceScore, securityScore int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE vulnerability_scans
		 SET status = 'completed', completed_at = ?, findings_count = ?,
		     compliance_score = ?, security_score = ?
		 WHERE id = ? AND status = 'in_progress'`,
		formatTime(time.Now().UTC()), findingsCount, complianceScore, securityScore, id,
	)
	if err != nil {
		return fmt.Errorf("store: mark completed: %w", err)
	}
	return requireRow(res)
}

// MarkFailed transitions a non-terminal scan to failed.
func (s *SQLiteStore) MarkFailed(ctx context.Context, id string) error {
	return s.transition(ctx,
		`UPDATE vulnerability_scans SET status = 'failed', completed_at = ?
		 WHERE id = ? AND status IN ('pending', 'in_progress')`,
		formatTime(time.Now().UTC()), id)
}

// CancelScan marks a non-terminal scan failed on behalf of a user.
// Terminal scans are untouched and reported as ErrNotFound.
func (s *SQLiteStore) CancelScan(ctx context.Context, id string) error {
	return s.MarkFailed(ctx, id)
}

// transition runs a conditional status update and converts "no rows
// changed" into ErrNotFound.
func (s *SQLiteStore) transition(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("store: update status: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ------------------------------------------------------------------ //
// Findings
// ------------------------------------------------------------------ //

// AppendFindings persists findings for a scan. IDs and discovery
// timestamps are assigned where missing.
func (s *SQLiteStore) AppendFindings(ctx context.Context, scanID string, findings []engine.Finding) error {
	if len(findings) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO vulnerabilities
		 (id, scan_id, vulnerability_type, severity, title, description,
		  affected_component, affected_url, remediation, cwe_id,
		  owasp_category, cvss_score, is_resolved, discovered_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range findings {
		f := &findings[i]
		if f.ID == "" {
			f.ID = uuid.New().String()
		}
		f.ScanID = scanID
		if f.DiscoveredAt.IsZero() {
			f.DiscoveredAt = time.Now().UTC()
		}

		_, err := stmt.ExecContext(ctx,
			f.ID, f.ScanID, f.Type, string(f.Severity), f.Title, f.Description,
			f.AffectedComponent, f.AffectedURL, f.Remediation, f.CWEID,
			f.OWASPCategory, f.CVSSScore, boolInt(f.IsResolved), formatTime(f.DiscoveredAt),
		)
		if err != nil {
			return fmt.Errorf("store: insert finding: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit findings: %w", err)
	}
	return nil
}

const findingColumns = `id, scan_id, vulnerability_type, severity, title, description,
	affected_component, affected_url, remediation, cwe_id, owasp_category,
	cvss_score, is_resolved, discovered_at`

// severityOrder ranks severities in SQL so critical sorts first.
const severityOrder = `CASE severity
	WHEN 'critical' THEN 0
	WHEN 'high' THEN 1
	WHEN 'medium' THEN 2
	WHEN 'low' THEN 3
	WHEN 'info' THEN 4
	ELSE 5 END`

// ListFindings returns a scan's findings ordered by severity then by
// descending CVSS score.
func (s *SQLiteStore) ListFindings(ctx context.Context, scanID string) ([]engine.Finding, error) {
	query := `SELECT ` + findingColumns + ` FROM vulnerabilities
		WHERE scan_id = ? ORDER BY ` + severityOrder + `, cvss_score DESC`
	return s.queryFindings(ctx, query, scanID)
}

// ListAllFindings returns the latest findings across all scans.
func (s *SQLiteStore) ListAllFindings(ctx context.Context, limit int) ([]engine.Finding, error) {
	if limit < 1 {
		limit = 100
	}
	query := `SELECT ` + findingColumns + ` FROM vulnerabilities
		ORDER BY discovered_at DESC, id LIMIT ?`
	return s.queryFindings(ctx, query, limit)
}

func (s *SQLiteStore) queryFindings(ctx context.Context, query string, args ...any) ([]engine.Finding, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list findings: %w", err)
	}
	defer rows.Close()

	var findings []engine.Finding
	for rows.Next() {
		var (
			f          engine.Finding
			severity   string
			resolved   int
			discovered string
		)
		err := rows.Scan(&f.ID, &f.ScanID, &f.Type, &severity, &f.Title, &f.Description,
			&f.AffectedComponent, &f.AffectedURL, &f.Remediation, &f.CWEID,
			&f.OWASPCategory, &f.CVSSScore, &resolved, &discovered)
		if err != nil {
			return nil, fmt.Errorf("store: scan finding row: %w", err)
		}
		f.Severity = engine.Severity(severity)
		f.IsResolved = resolved != 0
		f.DiscoveredAt, err = parseTime(discovered)
		if err != nil {
			return nil, fmt.Errorf("store: parse discovered_at: %w", err)
		}
		findings = append(findings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate findings: %w", err)
	}
	return findings, nil
}

// ResolveFinding marks a finding as resolved.
func (s *SQLiteStore) ResolveFinding(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE vulnerabilities SET is_resolved = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: resolve finding: %w", err)
	}
	return requireRow(res)
}

// ------------------------------------------------------------------ //
// Audit and notifications
// ------------------------------------------------------------------ //

// AppendAudit writes one append-only audit entry.
func (s *SQLiteStore) AppendAudit(ctx context.Context, e engine.AuditEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_logs (user_id, action, resource_type, resource_id, status, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ActorID, e.Action, e.ResourceType, e.ResourceID, e.Status, e.Details,
		formatTime(time.Now().UTC()),
	)
	if err != nil {
		return fmt.Errorf("store: append audit: %w", err)
	}
	return nil
}

// InsertNotification records a notification for a user.
func (s *SQLiteStore) InsertNotification(ctx context.Context, n engine.Notification) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (user_id, notification_type, title, message, severity, sent_via, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.UserID, n.Type, n.Title, n.Message, string(n.Severity), n.SentVia,
		formatTime(time.Now().UTC()),
	)
	if err != nil {
		return fmt.Errorf("store: insert notification: %w", err)
	}
	return nil
}

// ------------------------------------------------------------------ //
// Dashboard
// ------------------------------------------------------------------ //

// DashboardStats aggregates stored scan data for the dashboard view.
func (s *SQLiteStore) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	stats := &DashboardStats{
		BySeverity: make(map[engine.Severity]int),
	}

	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vulnerabilities`).Scan(&stats.TotalVulnerabilities)
	if err != nil {
		return nil, fmt.Errorf("store: count vulnerabilities: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vulnerability_scans`).Scan(&stats.TotalScans)
	if err != nil {
		return nil, fmt.Errorf("store: count scans: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT severity, COUNT(*) FROM vulnerabilities GROUP BY severity`)
	if err != nil {
		return nil, fmt.Errorf("store: count by severity: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			severity string
			count    int
		)
		if err := rows.Scan(&severity, &count); err != nil {
			return nil, fmt.Errorf("store: scan severity row: %w", err)
		}
		stats.BySeverity[engine.Severity(severity)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate severities: %w", err)
	}
	stats.CriticalIssues = stats.BySeverity[engine.SeverityCritical]

	// Current scores come from the most recently completed scan.
	row := s.db.QueryRowContext(ctx,
		`SELECT compliance_score, security_score FROM vulnerability_scans
		 WHERE status = 'completed' ORDER BY completed_at DESC LIMIT 1`)
	if err := row.Scan(&stats.ComplianceScore, &stats.SecurityScore); err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("store: latest scores: %w", err)
	}

	page, err := s.ListScans(ctx, ScanFilter{Page: 1, Limit: 5})
	if err != nil {
		return nil, err
	}
	stats.RecentScans = page.Scans

	return stats, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// ------------------------------------------------------------------ //
// Row helpers
// ------------------------------------------------------------------ //

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanScanRow(row rowScanner) (*engine.ScanRecord, error) {
	var (
		rec         engine.ScanRecord
		scanType    string
		status      string
		startedAt   string
		completedAt sql.NullString
	)
	err := row.Scan(&rec.ID, &scanType, &rec.TargetURL, &status, &startedAt, &completedAt,
		&rec.FindingsCount, &rec.ComplianceScore, &rec.SecurityScore, &rec.InitiatedBy)
	if err != nil {
		return nil, err
	}
	rec.ScanType = engine.ScanType(scanType)
	rec.Status = engine.ScanStatus(status)
	rec.StartedAt, err = parseTime(startedAt)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t, err := parseTime(completedAt.String)
		if err != nil {
			return nil, err
		}
		rec.CompletedAt = &t
	}
	return &rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime accepts the formats this store writes plus the SQLite
// default, for databases touched by other tooling.
func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
