package auth

import (
	"context"
	"errors"
	"fmt"
)

// deviceCode runs the device authorization grant, polling at the interval
// the server asks for.
func (a *OAuth2Authenticator) deviceCode(ctx context.Context, req LoginRequest) (Credential, error) {
	if !a.interactive {
		return Credential{}, denied("device code", ErrInteractionRequired)
	}
	cfg, err := a.oauthConfig(ctx, req, "")
	if err != nil {
		return Credential{}, err
	}
	if cfg.Endpoint.DeviceAuthURL == "" {
		return Credential{}, denied("device code", errors.New("device authorization endpoint not advertised"))
	}

	tokenCtx := a.tokenContext(ctx)
	resp, err := cfg.DeviceAuth(tokenCtx, a.extraAuthOptions()...)
	if err != nil {
		return Credential{}, classifyTokenError("device authorization", err, AuthDenied)
	}

	_, _ = fmt.Fprintf(a.prompt, "Visit %s and enter code: %s\n", resp.VerificationURI, resp.UserCode)
	verificationURL := resp.VerificationURIComplete
	if verificationURL == "" {
		verificationURL = resp.VerificationURI
	}
	a.showURL(verificationURL)

	token, err := cfg.DeviceAccessToken(tokenCtx, resp)
	if err != nil {
		return Credential{}, classifyTokenError("device code", err, AuthDenied)
	}
	return credentialFromToken(token, req.Scopes), nil
}
