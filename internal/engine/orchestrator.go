package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"
)

// Validation errors returned by StartScan before any record is created.
var (
	ErrInvalidScanType = errors.New("engine: invalid scan type")
	ErrInvalidTarget   = errors.New("engine: invalid target URL")
	ErrStopped         = errors.New("engine: orchestrator is stopped")
)

// RecordStore is the persistence the orchestrator needs. The store
// package's Store satisfies it.
type RecordStore interface {
	CreateScan(ctx context.Context, scanType ScanType, targetURL, initiatedBy string) (*ScanRecord, error)
	MarkInProgress(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id string, findingsCount, complianceScore, securityScore int) error
	MarkFailed(ctx context.Context, id string) error
	AppendFindings(ctx context.Context, scanID string, findings []Finding) error
	AppendAudit(ctx context.Context, e AuditEntry) error
	InsertNotification(ctx context.Context, n Notification) error
}

// Observer receives scan lifecycle events, e.g. for metrics.
type Observer interface {
	ScanStarted(scanType ScanType)
	ScanCompleted(scanType ScanType, findings int, duration time.Duration)
	ScanFailed(scanType ScanType)
	FindingRecorded(severity Severity)
}

// scanJob is one queued scan execution.
type scanJob struct {
	scanID      string
	scanType    ScanType
	targetURL   string
	initiatedBy string
}

// Orchestrator runs scans. StartScan admits at most one non-terminal
// scan, creates the pending record, and hands execution to a single
// background worker; callers observe completion by polling the store.
type Orchestrator struct {
	store    RecordStore
	registry *Registry
	logger   *slog.Logger
	observer Observer
	timeout  time.Duration

	queue chan scanJob
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithObserver sets the lifecycle observer.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

// WithScanTimeout bounds the execution of a single scan. Defaults to
// 5 minutes.
func WithScanTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// NewOrchestrator creates an orchestrator. Call Start before StartScan
// and Close on shutdown.
func NewOrchestrator(store RecordStore, registry *Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		registry: registry,
		logger:   slog.New(slog.DiscardHandler),
		timeout:  5 * time.Minute,
		// The admission rule allows one active scan, so the queue
		// never holds more than one job in practice.
		queue: make(chan scanJob, 8),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start launches the background worker.
func (o *Orchestrator) Start() {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		for job := range o.queue {
			o.run(job)
		}
	}()
}

// Close stops accepting scans, waits for any in-flight scan to finish,
// and returns.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	close(o.queue)
	o.mu.Unlock()

	o.wg.Wait()
}

// StartScan validates the request, creates a pending scan record, and
// queues it for background execution. The scan id is returned
// immediately; execution is observed by polling.
//
// It returns ErrInvalidScanType or ErrInvalidTarget on bad input with
// no record created, and passes through the store's conflict error when
// another scan is active.
func (o *Orchestrator) StartScan(ctx context.Context, scanType ScanType, targetURL string, actor Actor) (string, error) {
	if !scanType.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidScanType, scanType)
	}
	if targetURL != "" {
		u, err := url.Parse(targetURL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return "", fmt.Errorf("%w: %q", ErrInvalidTarget, targetURL)
		}
	}

	rec, err := o.store.CreateScan(ctx, scanType, targetURL, actor.ID)
	if err != nil {
		return "", err
	}

	details, _ := json.Marshal(map[string]string{
		"scan_type":  string(scanType),
		"target_url": targetURL,
	})
	if err := o.store.AppendAudit(ctx, AuditEntry{
		ActorID:      actor.ID,
		Action:       AuditScanStart,
		ResourceType: "scan",
		ResourceID:   rec.ID,
		Status:       "success",
		Details:      string(details),
	}); err != nil {
		o.logger.Warn("audit write failed", "scan_id", rec.ID, "error", err)
	}

	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		// Shutdown raced the admission check; leave an honest record.
		if ferr := o.store.MarkFailed(context.Background(), rec.ID); ferr != nil {
			o.logger.Warn("failed to mark orphaned scan", "scan_id", rec.ID, "error", ferr)
		}
		return "", ErrStopped
	}
	o.queue <- scanJob{scanID: rec.ID, scanType: scanType, targetURL: targetURL, initiatedBy: actor.ID}

	o.logger.Info("scan queued",
		"scan_id", rec.ID,
		"scan_type", scanType,
		"target_url", targetURL,
		"initiated_by", actor.Username,
	)
	return rec.ID, nil
}

// run executes one scan to a terminal status. Checker failures are
// isolated as findings; anything else marks the scan failed, keeping
// whatever findings were already persisted.
func (o *Orchestrator) run(job scanJob) {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	start := time.Now()

	if err := o.store.MarkInProgress(ctx, job.scanID); err != nil {
		// A pending record must not outlive its job: it would block
		// admission forever. If a cancel raced the pickup the scan is
		// already terminal and MarkFailed is a logged no-op.
		o.fail(job, fmt.Errorf("start scan: %w", err))
		return
	}
	if o.observer != nil {
		o.observer.ScanStarted(job.scanType)
	}

	var all []Finding
	for _, c := range o.registry.ForType(job.scanType) {
		findings, err := c.Check(ctx, job.targetURL)
		if err != nil {
			// Failure isolation per checker: a broken checker becomes
			// one low-severity finding, and its siblings still run.
			o.logger.Warn("checker failed", "scan_id", job.scanID, "checker", c.Name(), "error", err)
			findings = []Finding{{
				Type:        "SCAN_ERROR",
				Severity:    SeverityLow,
				Title:       "Scan Incomplete",
				Description: fmt.Sprintf("Checker %s did not complete: %v", c.Name(), err),
				AffectedURL: job.targetURL,
			}}
		}

		if err := o.store.AppendFindings(ctx, job.scanID, findings); err != nil {
			o.fail(job, fmt.Errorf("persist findings: %w", err))
			return
		}
		all = append(all, findings...)

		o.logger.Debug("checker finished",
			"scan_id", job.scanID, "checker", c.Name(), "findings", len(findings))
	}

	scores := Score(all)
	if err := o.store.MarkCompleted(ctx, job.scanID, len(all), scores.Compliance, scores.Security); err != nil {
		// A concurrent cancel wins; findings written so far remain.
		o.logger.Info("scan not completed", "scan_id", job.scanID, "error", err)
		return
	}

	if o.observer != nil {
		o.observer.ScanCompleted(job.scanType, len(all), time.Since(start))
		for _, f := range all {
			o.observer.FindingRecorded(f.Severity)
		}
	}

	o.notifyCritical(ctx, job, all)

	o.logger.Info("scan completed",
		"scan_id", job.scanID,
		"findings", len(all),
		"compliance_score", scores.Compliance,
		"security_score", scores.Security,
		"duration", time.Since(start),
	)
}

// fail transitions the scan to failed after an orchestration fault.
func (o *Orchestrator) fail(job scanJob, err error) {
	o.logger.Error("scan failed", "scan_id", job.scanID, "error", err)

	// The run context may already be the fault's cause; use a fresh one
	// so the terminal status is always recorded.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if ferr := o.store.MarkFailed(ctx, job.scanID); ferr != nil {
		o.logger.Error("failed to mark scan failed", "scan_id", job.scanID, "error", ferr)
	}
	if o.observer != nil {
		o.observer.ScanFailed(job.scanType)
	}
}

// notifyCritical emits one notification to the initiating user when a
// completed scan produced critical findings.
func (o *Orchestrator) notifyCritical(ctx context.Context, job scanJob, findings []Finding) {
	critical := 0
	for _, f := range findings {
		if f.Severity == SeverityCritical {
			critical++
		}
	}
	if critical == 0 || job.initiatedBy == "" {
		return
	}

	err := o.store.InsertNotification(ctx, Notification{
		UserID:   job.initiatedBy,
		Type:     "vulnerability_alert",
		Title:    "Critical Vulnerabilities Detected",
		Message:  fmt.Sprintf("Scan %s found %d critical vulnerabilities requiring immediate attention.", job.scanID, critical),
		Severity: SeverityCritical,
		SentVia:  "both",
	})
	if err != nil {
		o.logger.Warn("notification write failed", "scan_id", job.scanID, "error", err)
	}
}
