package checkers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/ecomsec/scanhub/internal/engine"
	"github.com/ecomsec/scanhub/internal/transport"
)

// fakeClient returns a canned response or error for every Get.
type fakeClient struct {
	resp *transport.Response
	err  error
}

func (c *fakeClient) Get(ctx context.Context, url string) (*transport.Response, error) {
	if c.err != nil {
		return nil, c.err
	}
	resp := *c.resp
	resp.URL = url
	return &resp, nil
}

func (c *fakeClient) Stats() *transport.Stats { return &transport.Stats{} }

func hardenedHeaders() http.Header {
	h := http.Header{}
	h.Set("Strict-Transport-Security", "max-age=63072000")
	h.Set("X-Frame-Options", "DENY")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Content-Security-Policy", "default-src 'self'")
	h.Set("X-XSS-Protection", "1; mode=block")
	return h
}

func hasType(findings []engine.Finding, typ string) bool {
	for _, f := range findings {
		if f.Type == typ {
			return true
		}
	}
	return false
}

func TestPostureSkipsEmptyTarget(t *testing.T) {
	c := NewPostureChecker(&fakeClient{err: errors.New("should not be called")})
	findings, err := c.Check(context.Background(), "")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(findings) != 0 {
		t.Errorf("got %d findings for empty target, want 0", len(findings))
	}
}

func TestPostureHardenedTarget(t *testing.T) {
	client := &fakeClient{resp: &transport.Response{
		StatusCode: 200,
		Headers:    hardenedHeaders(),
		Body:       []byte("<html><body>hello</body></html>"),
	}}

	findings := checkOK(t, NewPostureChecker(client), "https://example.com")
	if len(findings) != 0 {
		t.Errorf("hardened HTTPS target produced findings: %v", findingTypes(findings))
	}
}

func TestPosturePlainHTTPMissingHeaders(t *testing.T) {
	client := &fakeClient{resp: &transport.Response{
		StatusCode: 200,
		Headers:    http.Header{},
		Body:       []byte("<html></html>"),
	}}

	findings := checkOK(t, NewPostureChecker(client), "http://example.com")

	// Insecure transport plus one finding per missing security header.
	if len(findings) != 6 {
		t.Fatalf("got %d findings, want 6: %v", len(findings), findingTypes(findings))
	}
	first := findings[0]
	if first.Type != "INSECURE_TRANSPORT" || first.Severity != engine.SeverityCritical {
		t.Errorf("first finding = %s/%s, want INSECURE_TRANSPORT/critical", first.Type, first.Severity)
	}
	if first.CWEID != "CWE-319" || first.CVSSScore != 9.1 {
		t.Errorf("transport finding = %s/%.1f, want CWE-319/9.1", first.CWEID, first.CVSSScore)
	}
	for _, f := range findings[1:] {
		if f.Type != "SECURITY_HEADER" {
			t.Errorf("unexpected finding type %s", f.Type)
		}
	}
}

func TestPostureInlineScriptBody(t *testing.T) {
	headers := hardenedHeaders()
	client := &fakeClient{resp: &transport.Response{
		StatusCode: 200,
		Headers:    headers,
		Body:       []byte(`<html><script>alert(1)</script></html>`),
	}}

	findings := checkOK(t, NewPostureChecker(client), "https://example.com")
	if !hasType(findings, "XSS") {
		t.Errorf("inline script not flagged, got %v", findingTypes(findings))
	}
}

func TestPostureInsecureCookies(t *testing.T) {
	headers := hardenedHeaders()
	headers.Add("Set-Cookie", "session=abc; Path=/")
	client := &fakeClient{resp: &transport.Response{
		StatusCode: 200,
		Headers:    headers,
		Body:       []byte("ok"),
	}}

	findings := checkOK(t, NewPostureChecker(client), "https://example.com")
	if !hasType(findings, "INSECURE_COOKIE") {
		t.Errorf("unflagged cookie without Secure/HttpOnly, got %v", findingTypes(findings))
	}

	headers = hardenedHeaders()
	headers.Add("Set-Cookie", "session=abc; Path=/; Secure; HttpOnly")
	client.resp.Headers = headers
	findings = checkOK(t, NewPostureChecker(client), "https://example.com")
	if hasType(findings, "INSECURE_COOKIE") {
		t.Error("cookie with Secure and HttpOnly flags was flagged")
	}
}

func TestPostureEcommerceRules(t *testing.T) {
	client := &fakeClient{resp: &transport.Response{
		StatusCode: 200,
		Headers:    http.Header{},
		Body:       []byte(`<html>Proceed to checkout</html>`),
	}}

	findings := checkOK(t, NewPostureChecker(client), "https://shop.example.com")
	if !hasType(findings, "PCI_COMPLIANCE") {
		t.Errorf("e-commerce host without CSP not flagged for PCI, got %v", findingTypes(findings))
	}
	if !hasType(findings, "PAYMENT_SECURITY") {
		t.Errorf("checkout page not flagged for payment review, got %v", findingTypes(findings))
	}

	// Non-commerce hosts never trigger the PCI rules.
	findings = checkOK(t, NewPostureChecker(client), "https://blog.example.com")
	if hasType(findings, "PCI_COMPLIANCE") || hasType(findings, "PAYMENT_SECURITY") {
		t.Errorf("PCI rules fired for non-commerce host, got %v", findingTypes(findings))
	}
}

func TestPostureUnreachableTarget(t *testing.T) {
	client := &fakeClient{err: errors.New("dial tcp: connection refused")}

	findings := checkOK(t, NewPostureChecker(client), "https://example.com")
	if len(findings) != 1 {
		t.Fatalf("got %d findings, want 1: %v", len(findings), findingTypes(findings))
	}
	f := findings[0]
	if f.Type != "SCAN_ERROR" || f.Severity != engine.SeverityLow {
		t.Errorf("finding = %s/%s, want SCAN_ERROR/low", f.Type, f.Severity)
	}
}

func TestPostureInvalidTargetURL(t *testing.T) {
	c := NewPostureChecker(&fakeClient{err: errors.New("should not be called")})
	findings, err := c.Check(context.Background(), "://bad")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(findings) != 1 || findings[0].Type != "SCAN_ERROR" {
		t.Errorf("findings = %v, want a single SCAN_ERROR", findingTypes(findings))
	}
}

func TestIsEcommerceHost(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"shop.example.com", true},
		{"www.amazon.com", true},
		{"MERCARI.jp", true},
		{"cart-service.internal", true},
		{"blog.example.com", false},
		{"example.com", false},
	}
	for _, tt := range tests {
		if got := isEcommerceHost(tt.host); got != tt.want {
			t.Errorf("isEcommerceHost(%q) = %v, want %v", tt.host, got, tt.want)
		}
	}
}
