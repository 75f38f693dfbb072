package engine

// Scores summarizes a scan's findings as two 0-100 integers.
type Scores struct {
	Compliance int
	Security   int
}

// Score computes the canonical compliance and security scores for a set
// of findings. Both values are derived from the same finding list so the
// numbers stored on a scan record never disagree with its findings.
//
// Compliance is a step function of the total finding count; it never
// drops below 50. Security is weighted by severity and clamped to
// [0, 100]: each critical costs 10 points, each high 5, and every other
// unresolved finding 1.
func Score(findings []Finding) Scores {
	var critical, high, other int
	for _, f := range findings {
		switch f.Severity {
		case SeverityCritical:
			critical++
		case SeverityHigh:
			high++
		default:
			if !f.IsResolved {
				other++
			}
		}
	}

	return Scores{
		Compliance: complianceScore(len(findings)),
		Security:   clamp(100-10*critical-5*high-other, 0, 100),
	}
}

// complianceScore maps a finding count to a 0-100 compliance value.
func complianceScore(n int) int {
	switch {
	case n == 0:
		return 100
	case n <= 2:
		return 95
	case n <= 5:
		return 85
	case n <= 10:
		return 75
	default:
		return clamp(100-5*n, 50, 100)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
