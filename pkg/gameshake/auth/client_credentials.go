package auth

import (
	"context"
	"net/url"

	"golang.org/x/oauth2/clientcredentials"
)

func (a *OAuth2Authenticator) clientCredentials(ctx context.Context, req LoginRequest) (Credential, error) {
	endpoint, err := a.resolveEndpoint(ctx)
	if err != nil {
		return Credential{}, err
	}
	params := url.Values{}
	for k, v := range a.cfg.ExtraAuthParams {
		params.Set(k, v)
	}
	cfg := clientcredentials.Config{
		ClientID:       req.ClientID,
		ClientSecret:   req.ClientSecret,
		TokenURL:       endpoint.TokenURL,
		Scopes:         req.Scopes,
		EndpointParams: params,
		AuthStyle:      endpoint.AuthStyle,
	}
	token, err := cfg.Token(a.tokenContext(ctx))
	if err != nil {
		return Credential{}, classifyTokenError("client credentials", err, AuthDenied)
	}
	return credentialFromToken(token, req.Scopes), nil
}
