package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// authorizationCode runs the PKCE flow with a loopback redirect listener.
func (a *OAuth2Authenticator) authorizationCode(ctx context.Context, req LoginRequest) (Credential, error) {
	if !a.interactive {
		return Credential{}, denied("authorization code", ErrInteractionRequired)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return Credential{}, &AuthError{Kind: AuthNetwork, Op: "authorization code", Err: fmt.Errorf("failed to start callback listener: %w", err)}
	}
	defer func() {
		_ = listener.Close()
	}()

	redirectURL := fmt.Sprintf("http://%s/callback", listener.Addr().String())
	cfg, err := a.oauthConfig(ctx, req, redirectURL)
	if err != nil {
		return Credential{}, err
	}
	if cfg.Endpoint.AuthURL == "" {
		return Credential{}, denied("authorization code", errors.New("authorization endpoint not configured"))
	}

	verifier := oauth2.GenerateVerifier()
	state := uuid.NewString()
	authOpts := append([]oauth2.AuthCodeOption{oauth2.S256ChallengeOption(verifier)}, a.extraAuthOptions()...)
	authURL := cfg.AuthCodeURL(state, authOpts...)

	tokenCtx := a.tokenContext(ctx)
	resultCh := make(chan Credential, 1)
	errCh := make(chan error, 1)
	fail := func(err error) {
		select {
		case errCh <- err:
		default:
		}
	}

	server := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/callback" {
				http.NotFound(w, r)
				return
			}
			query := r.URL.Query()
			if query.Get("state") != state {
				fail(denied("authorization code", errors.New("invalid state in callback")))
				http.Error(w, "invalid state", http.StatusBadRequest)
				return
			}
			if oauthErr := query.Get("error"); oauthErr != "" {
				fail(denied("authorization code", fmt.Errorf("authorization failed: %s %s", oauthErr, query.Get("error_description"))))
				http.Error(w, "authorization failed", http.StatusForbidden)
				return
			}
			code := query.Get("code")
			if code == "" {
				fail(denied("authorization code", errors.New("missing code in callback")))
				http.Error(w, "missing code", http.StatusBadRequest)
				return
			}
			token, err := cfg.Exchange(tokenCtx, code, oauth2.VerifierOption(verifier))
			if err != nil {
				fail(classifyTokenError("token exchange", err, AuthDenied))
				http.Error(w, "token exchange failed", http.StatusInternalServerError)
				return
			}
			_, _ = fmt.Fprintln(w, "Authentication complete. You can close this window.")
			select {
			case resultCh <- credentialFromToken(token, req.Scopes):
			default:
			}
		}),
	}

	go func() {
		_ = server.Serve(listener)
	}()
	defer func() {
		_ = server.Close()
	}()

	_, _ = fmt.Fprintf(a.prompt, "Open the following URL in your browser:\n%s\n", authURL)
	a.showURL(authURL)

	select {
	case <-ctx.Done():
		return Credential{}, &AuthError{Kind: AuthNetwork, Op: "authorization code", Err: ctx.Err()}
	case err := <-errCh:
		return Credential{}, err
	case cred := <-resultCh:
		return cred, nil
	}
}
