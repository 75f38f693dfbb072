package checkers

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ecomsec/scanhub/internal/engine"
	"github.com/ecomsec/scanhub/internal/transport"
)

// securityHeaders are the response headers whose absence is flagged.
var securityHeaders = []struct {
	name     string
	severity engine.Severity
	title    string
	cvss     float64
}{
	{"Strict-Transport-Security", engine.SeverityHigh, "Missing HSTS Header", 7.5},
	{"X-Frame-Options", engine.SeverityMedium, "Missing X-Frame-Options Header", 5.3},
	{"X-Content-Type-Options", engine.SeverityMedium, "Missing X-Content-Type-Options Header", 5.3},
	{"Content-Security-Policy", engine.SeverityHigh, "Missing Content Security Policy", 7.5},
	{"X-XSS-Protection", engine.SeverityMedium, "Missing XSS Protection Header", 5.3},
}

// ecommerceHints are hostname substrings that mark a target as an
// e-commerce site, which triggers the PCI/payment review rules.
var ecommerceHints = []string{"amazon", "google", "mercari", "shop", "store", "cart"}

// postureChecker performs one HTTP GET against the target and inspects
// response headers, cookie flags, and the first few kilobytes of the
// body for security posture weaknesses.
type postureChecker struct {
	client transport.Client
}

// NewPostureChecker creates the header/posture checker. It runs only as
// part of a full scan and does nothing when the scan has no target URL.
func NewPostureChecker(client transport.Client) engine.Checker {
	return &postureChecker{client: client}
}

func (c *postureChecker) Name() string          { return "http-posture" }
func (c *postureChecker) Kind() engine.ScanType { return KindPosture }

func (c *postureChecker) Check(ctx context.Context, targetURL string) ([]engine.Finding, error) {
	if targetURL == "" {
		return nil, nil
	}

	u, err := url.Parse(targetURL)
	if err != nil || u.Host == "" {
		return []engine.Finding{scanIncompleteFinding(targetURL, fmt.Errorf("invalid target URL: %q", targetURL))}, nil
	}

	var findings []engine.Finding

	if u.Scheme != "https" {
		findings = append(findings, engine.Finding{
			Type:          "INSECURE_TRANSPORT",
			Severity:      engine.SeverityCritical,
			Title:         "Insecure HTTP Protocol",
			Description:   "The website uses HTTP instead of HTTPS, exposing data to man-in-the-middle attacks.",
			Remediation:   "Serve all traffic over HTTPS and redirect HTTP to HTTPS.",
			CWEID:         "CWE-319",
			OWASPCategory: "A02:2021 - Cryptographic Failures",
			CVSSScore:     9.1,
			AffectedURL:   targetURL,
		})
	}

	resp, err := c.client.Get(ctx, targetURL)
	if err != nil {
		// Transport failures do not abort the scan; they become a
		// single low-severity finding.
		return append(findings, scanIncompleteFinding(targetURL, err)), nil
	}

	for _, h := range securityHeaders {
		if resp.Headers.Get(h.name) != "" {
			continue
		}
		findings = append(findings, engine.Finding{
			Type:          "SECURITY_HEADER",
			Severity:      h.severity,
			Title:         h.title,
			Description:   fmt.Sprintf("The %s security header is not set. This could expose the application to various attacks.", h.name),
			Remediation:   fmt.Sprintf("Configure the web server or application to send the %s header.", h.name),
			CWEID:         "CWE-693",
			OWASPCategory: "A05:2021 - Security Misconfiguration",
			CVSSScore:     h.cvss,
			AffectedURL:   targetURL,
		})
	}

	body := strings.ToLower(string(resp.Body))

	if strings.Contains(body, "<script>") || strings.Contains(body, "javascript:") {
		findings = append(findings, engine.Finding{
			Type:          "XSS",
			Severity:      engine.SeverityHigh,
			Title:         "Potential Cross-Site Scripting (XSS)",
			Description:   "Inline scripts detected in page content which may indicate XSS vulnerabilities.",
			Remediation:   "Move scripts to external files, apply CSP, and encode user-controlled output.",
			CWEID:         "CWE-79",
			OWASPCategory: "A03:2021 - Injection",
			CVSSScore:     7.4,
			AffectedURL:   targetURL,
		})
	}

	if cookies := resp.Headers.Values("Set-Cookie"); len(cookies) > 0 {
		joined := strings.Join(cookies, ";")
		if !strings.Contains(joined, "Secure") || !strings.Contains(joined, "HttpOnly") {
			findings = append(findings, engine.Finding{
				Type:          "INSECURE_COOKIE",
				Severity:      engine.SeverityMedium,
				Title:         "Insecure Cookie Configuration",
				Description:   "Cookies do not have Secure and HttpOnly flags set, making them vulnerable to theft.",
				Remediation:   "Set the Secure and HttpOnly flags on all cookies carrying session state.",
				CWEID:         "CWE-614",
				OWASPCategory: "A05:2021 - Security Misconfiguration",
				CVSSScore:     5.9,
				AffectedURL:   targetURL,
			})
		}
	}

	if isEcommerceHost(u.Hostname()) {
		if resp.Headers.Get("Content-Security-Policy") == "" {
			findings = append(findings, engine.Finding{
				Type:          "PCI_COMPLIANCE",
				Severity:      engine.SeverityHigh,
				Title:         "PCI-DSS Compliance Issue",
				Description:   "E-commerce site missing critical security headers required for PCI-DSS compliance.",
				Remediation:   "Deploy the full set of recommended security headers and review against the PCI-DSS requirements.",
				CWEID:         "CWE-693",
				OWASPCategory: "A05:2021 - Security Misconfiguration",
				CVSSScore:     7.8,
				AffectedURL:   targetURL,
			})
		}
		if strings.Contains(body, "payment") || strings.Contains(body, "checkout") {
			findings = append(findings, engine.Finding{
				Type:          "PAYMENT_SECURITY",
				Severity:      engine.SeverityCritical,
				Title:         "Payment Page Security Review Required",
				Description:   "Payment processing page detected. Manual security review recommended for PCI compliance.",
				Remediation:   "Review the payment flow against PCI-DSS; ensure card data never touches non-compliant systems.",
				CWEID:         "CWE-311",
				OWASPCategory: "A02:2021 - Cryptographic Failures",
				CVSSScore:     9.2,
				AffectedURL:   targetURL,
			})
		}
	}

	return findings, nil
}

func isEcommerceHost(hostname string) bool {
	hostname = strings.ToLower(hostname)
	for _, hint := range ecommerceHints {
		if strings.Contains(hostname, hint) {
			return true
		}
	}
	return false
}

// scanIncompleteFinding converts a checker transport failure into the
// low-severity finding that stands in for an aborted inspection.
func scanIncompleteFinding(targetURL string, err error) engine.Finding {
	return engine.Finding{
		Type:        "SCAN_ERROR",
		Severity:    engine.SeverityLow,
		Title:       "Scan Incomplete",
		Description: fmt.Sprintf("Could not complete full scan: %v", err),
		AffectedURL: targetURL,
	}
}
