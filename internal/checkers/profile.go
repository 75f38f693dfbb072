package checkers

import (
	"context"

	"github.com/ecomsec/scanhub/internal/engine"
)

// profileChecker evaluates a fixed rule list against a ControlProfile.
// It performs no I/O and never fails except on context cancellation.
type profileChecker struct {
	name    string
	kind    engine.ScanType
	profile ControlProfile
	rules   []controlRule
}

func (c *profileChecker) Name() string          { return c.name }
func (c *profileChecker) Kind() engine.ScanType { return c.kind }

func (c *profileChecker) Check(ctx context.Context, targetURL string) ([]engine.Finding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var findings []engine.Finding
	for _, r := range c.rules {
		if c.profile.Attested(r.control) {
			continue
		}
		f := r.finding
		if targetURL != "" {
			f.AffectedURL = targetURL
			if r.useTarget {
				f.AffectedComponent = targetURL
			}
		}
		findings = append(findings, f)
	}
	return findings, nil
}

// NewSQLInjectionChecker covers injection risks in the data access layer.
func NewSQLInjectionChecker(profile ControlProfile) engine.Checker {
	return &profileChecker{
		name:    "sql-injection",
		kind:    engine.ScanSQLInjection,
		profile: profile,
		rules:   sqlInjectionRules,
	}
}

// NewXSSChecker covers cross-site scripting risks.
func NewXSSChecker(profile ControlProfile) engine.Checker {
	return &profileChecker{
		name:    "xss",
		kind:    engine.ScanXSS,
		profile: profile,
		rules:   xssRules,
	}
}

// NewAuthWeaknessChecker covers authentication and authorization
// weaknesses.
func NewAuthWeaknessChecker(profile ControlProfile) engine.Checker {
	return &profileChecker{
		name:    "auth-weakness",
		kind:    engine.ScanAuthWeakness,
		profile: profile,
		rules:   authWeaknessRules,
	}
}

// csrfChecker extends the rule list with a compound check that fires
// only when no CSRF defense mechanism at all is attested.
type csrfChecker struct {
	profileChecker
}

// NewCSRFChecker covers cross-site request forgery risks.
func NewCSRFChecker(profile ControlProfile) engine.Checker {
	return &csrfChecker{profileChecker{
		name:    "csrf",
		kind:    engine.ScanCSRF,
		profile: profile,
		rules:   csrfRules,
	}}
}

func (c *csrfChecker) Check(ctx context.Context, targetURL string) ([]engine.Finding, error) {
	findings, err := c.profileChecker.Check(ctx, targetURL)
	if err != nil {
		return nil, err
	}

	if !c.profile.Attested(ControlCSRFTokens) && !c.profile.Attested(ControlDoubleSubmitCookies) {
		f := csrfNoDefenseFinding
		if targetURL != "" {
			f.AffectedURL = targetURL
		}
		findings = append(findings, f)
	}
	return findings, nil
}
