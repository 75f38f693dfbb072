// Package checkers provides the detection routines a scan runs. Each
// checker covers one vulnerability class and returns findings; an empty
// result is the "pass" signal. Checkers never fail a scan: errors are
// converted into a single low-severity finding further up.
package checkers

import (
	"github.com/ecomsec/scanhub/internal/engine"
	"github.com/ecomsec/scanhub/internal/transport"
)

// KindPosture is the checker kind for the HTTP header/posture checker.
// It is not a standalone scan type; posture runs only as part of a full
// scan.
const KindPosture engine.ScanType = "posture"

// ControlProfile is the injectable evidence source for the profile-driven
// checkers. It holds the set of security controls attested as implemented
// for the environment under review; a check fires exactly when its
// control is not attested. An empty profile treats every control as
// unverified.
type ControlProfile map[string]struct{}

// NewControlProfile builds a profile from a list of attested control
// names.
func NewControlProfile(controls ...string) ControlProfile {
	p := make(ControlProfile, len(controls))
	for _, c := range controls {
		p[c] = struct{}{}
	}
	return p
}

// Attested reports whether the named control is attested as implemented.
func (p ControlProfile) Attested(control string) bool {
	_, ok := p[control]
	return ok
}

// DefaultRegistry wires the five standard checkers in their canonical
// run order. The profile feeds the four control-review checkers; the
// client is used by the posture checker for its single outbound GET.
func DefaultRegistry(profile ControlProfile, client transport.Client) *engine.Registry {
	return engine.NewRegistry(
		NewSQLInjectionChecker(profile),
		NewXSSChecker(profile),
		NewCSRFChecker(profile),
		NewAuthWeaknessChecker(profile),
		NewPostureChecker(client),
	)
}
