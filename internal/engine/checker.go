package engine

import "context"

// Checker is a single detection routine for one vulnerability class.
// Implementations live in the checkers package; the orchestrator only
// depends on this interface.
type Checker interface {
	// Name returns a short identifier used in logs.
	Name() string

	// Kind returns the scan type that selects this checker. Kinds
	// outside the public scan type enum (e.g. the posture checker) run
	// only as part of a full scan.
	Kind() ScanType

	// Check inspects the target and returns zero or more findings. An
	// empty result is the "pass" signal; errors are converted into a
	// single low-severity finding by the orchestrator rather than
	// aborting the scan.
	Check(ctx context.Context, targetURL string) ([]Finding, error)
}

// Registry holds the configured checkers and selects the subset a scan
// type implies.
type Registry struct {
	checkers []Checker
}

// NewRegistry creates a registry from the given checkers, preserving
// order. Registration order is run order within a scan.
func NewRegistry(cs ...Checker) *Registry {
	return &Registry{checkers: cs}
}

// ForType returns the checkers a scan type selects: all of them for a
// full scan, otherwise exactly the matching checkers.
func (r *Registry) ForType(t ScanType) []Checker {
	if t == ScanFull {
		out := make([]Checker, len(r.checkers))
		copy(out, r.checkers)
		return out
	}
	var out []Checker
	for _, c := range r.checkers {
		if c.Kind() == t {
			out = append(out, c)
		}
	}
	return out
}

// Names returns the names of all registered checkers in run order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.checkers))
	for i, c := range r.checkers {
		names[i] = c.Name()
	}
	return names
}
