package checkers

import "github.com/ecomsec/scanhub/internal/engine"

// Control names the profile-driven checkers consult. Each maps to one
// check rule; the rule fires when the control is not attested.
const (
	ControlParameterizedQueries = "parameterized_queries"
	ControlInputValidation      = "input_validation"
	ControlSecureErrorHandling  = "secure_error_handling"

	ControlOutputEncoding        = "output_encoding"
	ControlContentSecurityPolicy = "content_security_policy"
	ControlDOMSanitization       = "dom_sanitization"
	ControlReflectedEncoding     = "reflected_input_encoding"

	ControlCSRFTokens          = "csrf_tokens"
	ControlSameSiteCookies     = "samesite_cookies"
	ControlDoubleSubmitCookies = "double_submit_cookies"

	ControlStrongPasswordPolicy = "strong_password_policy"
	ControlMFA                  = "multi_factor_auth"
	ControlSessionManagement    = "secure_session_management"
	ControlBruteForceProtection = "brute_force_protection"
	ControlSecureJWTConfig      = "secure_jwt_config"
	ControlObjectAuthorization  = "object_level_authorization"
	ControlCredentialStorage    = "hashed_credential_storage"
)

// controlRule ties an attestable control to the finding emitted when the
// control is not attested. The CWE id, OWASP category, and CVSS score per
// rule are a fixed lookup table, not computed.
type controlRule struct {
	control string
	// useTarget substitutes the scan target URL as the affected
	// component when one is supplied.
	useTarget bool
	finding   engine.Finding
}

var sqlInjectionRules = []controlRule{
	{
		control:   ControlParameterizedQueries,
		useTarget: true,
		finding: engine.Finding{
			Type:              "SQL_INJECTION",
			Severity:          engine.SeverityCritical,
			Title:             "SQL Injection Vulnerability Detected",
			Description:       "The application appears to concatenate user input directly into SQL queries without proper parameterization or sanitization, allowing attackers to inject malicious SQL code.",
			AffectedComponent: "Database query handlers",
			Remediation:       "Use parameterized queries (prepared statements) for all database interactions. Never concatenate user input into SQL. Validate inputs and prefer an ORM that parameterizes automatically.",
			CWEID:             "CWE-89",
			OWASPCategory:     "A03:2021 - Injection",
			CVSSScore:         9.8,
		},
	},
	{
		control: ControlInputValidation,
		finding: engine.Finding{
			Type:              "SQL_INJECTION",
			Severity:          engine.SeverityHigh,
			Title:             "Insufficient Input Validation",
			Description:       "User inputs are not properly validated before being used in database queries, increasing the risk of SQL injection attacks.",
			AffectedComponent: "Input validation layer",
			Remediation:       "Implement strict allowlist input validation. Validate data types, lengths, formats, and ranges.",
			CWEID:             "CWE-20",
			OWASPCategory:     "A03:2021 - Injection",
			CVSSScore:         8.6,
		},
	},
	{
		control: ControlSecureErrorHandling,
		finding: engine.Finding{
			Type:              "INFORMATION_DISCLOSURE",
			Severity:          engine.SeverityMedium,
			Title:             "Verbose SQL Error Messages",
			Description:       "Detailed database error messages are exposed to users, potentially revealing database structure and query logic that could aid SQL injection attacks.",
			AffectedComponent: "Error handling middleware",
			Remediation:       "Serve generic error pages, log detailed errors server-side only.",
			CWEID:             "CWE-209",
			OWASPCategory:     "A04:2021 - Insecure Design",
			CVSSScore:         5.3,
		},
	},
}

var xssRules = []controlRule{
	{
		control:   ControlOutputEncoding,
		useTarget: true,
		finding: engine.Finding{
			Type:              "XSS",
			Severity:          engine.SeverityHigh,
			Title:             "Cross-Site Scripting (XSS) Vulnerability",
			Description:       "User-supplied data is rendered without proper encoding or sanitization, letting attackers inject JavaScript that executes in victims' browsers.",
			AffectedComponent: "Web application views/templates",
			Remediation:       "Apply context-aware output encoding (HTML, JavaScript, URL, CSS). Use Content Security Policy headers and trusted sanitization libraries. Avoid innerHTML with user data.",
			CWEID:             "CWE-79",
			OWASPCategory:     "A03:2021 - Injection",
			CVSSScore:         7.2,
		},
	},
	{
		control: ControlContentSecurityPolicy,
		finding: engine.Finding{
			Type:              "SECURITY_MISCONFIGURATION",
			Severity:          engine.SeverityMedium,
			Title:             "Missing Content Security Policy",
			Description:       "The application does not implement Content Security Policy headers, forgoing a defense layer that restricts where scripts may be loaded from.",
			AffectedComponent: "HTTP security headers",
			Remediation:       "Implement a strict Content Security Policy. Use nonce or hash based CSP for inline scripts and monitor violations.",
			CWEID:             "CWE-693",
			OWASPCategory:     "A05:2021 - Security Misconfiguration",
			CVSSScore:         5.9,
		},
	},
	{
		control: ControlDOMSanitization,
		finding: engine.Finding{
			Type:              "DOM_XSS",
			Severity:          engine.SeverityHigh,
			Title:             "Potential DOM-based XSS",
			Description:       "Client-side JavaScript may manipulate the DOM with untrusted data from sources like document.location without sanitization.",
			AffectedComponent: "Client-side JavaScript",
			Remediation:       "Avoid dangerous DOM sinks with untrusted data. Use textContent instead of innerHTML and sanitize URL parameters before use.",
			CWEID:             "CWE-79",
			OWASPCategory:     "A03:2021 - Injection",
			CVSSScore:         7.4,
		},
	},
	{
		control: ControlReflectedEncoding,
		finding: engine.Finding{
			Type:              "REFLECTED_XSS",
			Severity:          engine.SeverityHigh,
			Title:             "Reflected XSS in User Input",
			Description:       "Search queries, form inputs, or URL parameters are reflected back without sanitization, allowing crafted URLs that execute scripts when visited.",
			AffectedComponent: "Search functionality and form handlers",
			Remediation:       "Encode all reflected input before display. Use auto-escaping template engines and context-aware output encoding.",
			CWEID:             "CWE-79",
			OWASPCategory:     "A03:2021 - Injection",
			CVSSScore:         7.1,
		},
	},
}

var csrfRules = []controlRule{
	{
		control:   ControlCSRFTokens,
		useTarget: true,
		finding: engine.Finding{
			Type:              "CSRF",
			Severity:          engine.SeverityHigh,
			Title:             "Missing CSRF Protection",
			Description:       "State-changing operations do not validate CSRF tokens. Attackers can trick authenticated users into performing unwanted actions from external sites.",
			AffectedComponent: "Form submissions and API endpoints",
			Remediation:       "Implement anti-CSRF tokens for all state-changing operations. Use the SameSite cookie attribute and verify Origin/Referer headers.",
			CWEID:             "CWE-352",
			OWASPCategory:     "A01:2021 - Broken Access Control",
			CVSSScore:         8.1,
		},
	},
	{
		control: ControlSameSiteCookies,
		finding: engine.Finding{
			Type:              "SECURITY_MISCONFIGURATION",
			Severity:          engine.SeverityMedium,
			Title:             "Missing SameSite Cookie Attribute",
			Description:       "Session cookies do not use the SameSite attribute, making them vulnerable to cross-site request attacks.",
			AffectedComponent: "Cookie configuration",
			Remediation:       "Set SameSite=Strict or SameSite=Lax for all cookies, along with Secure and HttpOnly flags.",
			CWEID:             "CWE-1275",
			OWASPCategory:     "A05:2021 - Security Misconfiguration",
			CVSSScore:         6.5,
		},
	},
}

// csrfNoDefenseFinding fires only when neither the synchronizer token nor
// the double-submit cookie pattern is attested.
var csrfNoDefenseFinding = engine.Finding{
	Type:              "CSRF",
	Severity:          engine.SeverityMedium,
	Title:             "No CSRF Defense Mechanism",
	Description:       "Neither the synchronizer token pattern nor the double-submit cookie pattern is implemented for CSRF protection.",
	AffectedComponent: "Authentication and session management",
	Remediation:       "Implement either synchronizer tokens or the double-submit cookie pattern, or adopt a framework with built-in CSRF protection.",
	CWEID:             "CWE-352",
	OWASPCategory:     "A01:2021 - Broken Access Control",
	CVSSScore:         6.8,
}

var authWeaknessRules = []controlRule{
	{
		control: ControlStrongPasswordPolicy,
		finding: engine.Finding{
			Type:              "WEAK_PASSWORD_POLICY",
			Severity:          engine.SeverityHigh,
			Title:             "Weak Password Policy",
			Description:       "The application does not enforce strong password requirements; users can create easily guessable or brute-forceable passwords.",
			AffectedComponent: "User registration and password change functionality",
			Remediation:       "Enforce minimum length (12+), complexity requirements, common-password denial, and breach-database checks.",
			CWEID:             "CWE-521",
			OWASPCategory:     "A07:2021 - Identification and Authentication Failures",
			CVSSScore:         7.5,
		},
	},
	{
		control: ControlMFA,
		finding: engine.Finding{
			Type:              "MISSING_MFA",
			Severity:          engine.SeverityHigh,
			Title:             "Multi-Factor Authentication Not Implemented",
			Description:       "The application relies solely on passwords. Without MFA, compromised credentials lead directly to account takeover.",
			AffectedComponent: "Authentication system",
			Remediation:       "Implement MFA using TOTP, SMS, or hardware tokens. Make MFA mandatory for administrative accounts.",
			CWEID:             "CWE-308",
			OWASPCategory:     "A07:2021 - Identification and Authentication Failures",
			CVSSScore:         7.3,
		},
	},
	{
		control: ControlSessionManagement,
		finding: engine.Finding{
			Type:              "INSECURE_SESSION_MANAGEMENT",
			Severity:          engine.SeverityHigh,
			Title:             "Insecure Session Management",
			Description:       "Session tokens may not be properly secured, rotated, or invalidated, enabling session hijacking or fixation attacks.",
			AffectedComponent: "Session management",
			Remediation:       "Use cryptographically secure session IDs, rotate after authentication, invalidate on logout, and set Secure/HttpOnly cookie flags with idle and absolute timeouts.",
			CWEID:             "CWE-384",
			OWASPCategory:     "A07:2021 - Identification and Authentication Failures",
			CVSSScore:         8.1,
		},
	},
	{
		control: ControlBruteForceProtection,
		finding: engine.Finding{
			Type:              "NO_RATE_LIMITING",
			Severity:          engine.SeverityMedium,
			Title:             "Missing Brute Force Protection",
			Description:       "Login endpoints lack rate limiting or account lockout, allowing unlimited authentication attempts.",
			AffectedComponent: "Login and authentication endpoints",
			Remediation:       "Add progressive delays after failed attempts, temporary lockout past a threshold, and CAPTCHA after repeated failures.",
			CWEID:             "CWE-307",
			OWASPCategory:     "A07:2021 - Identification and Authentication Failures",
			CVSSScore:         6.5,
		},
	},
	{
		control: ControlSecureJWTConfig,
		finding: engine.Finding{
			Type:              "WEAK_JWT_CONFIGURATION",
			Severity:          engine.SeverityHigh,
			Title:             "Insecure JWT Configuration",
			Description:       "JWT tokens may use weak signing algorithms, excessive expiration times, or lack proper claim validation.",
			AffectedComponent: "JWT authentication",
			Remediation:       "Use strong signing algorithms with strong secrets, short expirations with refresh tokens, full claim validation, and a revocation mechanism.",
			CWEID:             "CWE-347",
			OWASPCategory:     "A02:2021 - Cryptographic Failures",
			CVSSScore:         7.7,
		},
	},
	{
		control: ControlObjectAuthorization,
		finding: engine.Finding{
			Type:              "BROKEN_ACCESS_CONTROL",
			Severity:          engine.SeverityCritical,
			Title:             "Inadequate Authorization Checks",
			Description:       "Authorization checks may be missing or improperly implemented, allowing access to resources beyond a user's privilege level (IDOR).",
			AffectedComponent: "Authorization middleware and API endpoints",
			Remediation:       "Implement role-based access control with object-level checks on every request. Deny by default and apply least privilege.",
			CWEID:             "CWE-639",
			OWASPCategory:     "A01:2021 - Broken Access Control",
			CVSSScore:         9.1,
		},
	},
	{
		control: ControlCredentialStorage,
		finding: engine.Finding{
			Type:              "WEAK_CREDENTIAL_STORAGE",
			Severity:          engine.SeverityCritical,
			Title:             "Passwords Not Properly Hashed",
			Description:       "Passwords are not hashed with industry-standard algorithms like bcrypt, scrypt, or Argon2; a database compromise exposes them directly.",
			AffectedComponent: "Password storage mechanism",
			Remediation:       "Use bcrypt, scrypt, or Argon2 with appropriate work factors. Never use MD5, SHA1, or unsalted SHA256 for passwords.",
			CWEID:             "CWE-916",
			OWASPCategory:     "A02:2021 - Cryptographic Failures",
			CVSSScore:         9.4,
		},
	},
}
