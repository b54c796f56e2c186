package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
)

// ErrorKind classifies authentication failures.
type ErrorKind string

const (
	// AuthDenied covers user rejection, a disabled interactive flow and
	// client misconfiguration. Retrying does not help.
	AuthDenied ErrorKind = "denied"
	// AuthInvalidGrant means the refresh token was rejected and a full
	// authentication is required.
	AuthInvalidGrant ErrorKind = "invalid_grant"
	// AuthNetwork covers transport failures and authorization server
	// outages. It may be retried.
	AuthNetwork ErrorKind = "network"
)

// AuthError is returned by Authenticator implementations.
type AuthError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *AuthError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// ErrInteractionRequired is wrapped into a AuthDenied error when a grant
// needs a user but interactive login is disabled.
var ErrInteractionRequired = errors.New("interactive login required but disabled")

func denied(op string, err error) *AuthError {
	return &AuthError{Kind: AuthDenied, Op: op, Err: err}
}

// classifyTokenError maps an error from the token endpoint to an *AuthError.
// fallback is used for OAuth error codes that are not recognised.
func classifyTokenError(op string, err error, fallback ErrorKind) error {
	if err == nil {
		return nil
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &AuthError{Kind: AuthNetwork, Op: op, Err: err}
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		switch retrieveErr.ErrorCode {
		case "invalid_grant":
			return &AuthError{Kind: AuthInvalidGrant, Op: op, Err: err}
		case "access_denied", "expired_token", "invalid_client", "unauthorized_client", "invalid_scope", "unsupported_grant_type":
			return denied(op, err)
		case "temporarily_unavailable", "server_error":
			return &AuthError{Kind: AuthNetwork, Op: op, Err: err}
		}
		if retrieveErr.Response != nil && (retrieveErr.Response.StatusCode >= http.StatusInternalServerError ||
			retrieveErr.Response.StatusCode == http.StatusTooManyRequests) {
			return &AuthError{Kind: AuthNetwork, Op: op, Err: err}
		}
		return &AuthError{Kind: fallback, Op: op, Err: err}
	}

	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return &AuthError{Kind: AuthNetwork, Op: op, Err: err}
	}
	return &AuthError{Kind: fallback, Op: op, Err: err}
}
