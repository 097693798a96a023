package forward

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrRedirectMismatch means the URI is not addressed to the configured
	// redirect target.
	ErrRedirectMismatch = errors.New("forward: redirect does not match redirect_uri")
	// ErrAuthorizationDenied means the provider redirected back with an error.
	ErrAuthorizationDenied = errors.New("forward: authorization failed")
	// ErrMissingCode means the redirect carried neither a code nor an error.
	ErrMissingCode = errors.New("forward: redirect has no authorization code")
)

// ParseRedirect extracts the authorization code and state from an OAuth
// redirect URI. The scheme and host must match redirectURI. An error
// parameter takes precedence over a code.
func ParseRedirect(raw, redirectURI string) (code, state string, err error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", fmt.Errorf("parsing redirect: %w", err)
	}
	if redirectURI != "" {
		want, err := url.Parse(redirectURI)
		if err != nil {
			return "", "", fmt.Errorf("parsing redirect_uri: %w", err)
		}
		if !strings.EqualFold(u.Scheme, want.Scheme) || !strings.EqualFold(u.Host, want.Host) {
			return "", "", fmt.Errorf("%w: got %s://%s", ErrRedirectMismatch, u.Scheme, u.Host)
		}
	}
	q := u.Query()
	code, err = CodeFromQuery(q.Get("code"), q.Get("error"))
	if err != nil {
		return "", "", err
	}
	return code, q.Get("state"), nil
}

// CodeFromQuery applies the redirect rules to already-decoded query values.
func CodeFromQuery(code, errParam string) (string, error) {
	if errParam != "" {
		return "", fmt.Errorf("%w: %s", ErrAuthorizationDenied, errParam)
	}
	if code == "" {
		return "", ErrMissingCode
	}
	return code, nil
}
