package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/gameshake/gameshake/pkg/system"
)

// Grant types accepted in provider configuration.
const (
	GrantAuthorizationCode = "authorization-code"
	GrantDeviceCode        = "device-code"
	GrantClientCredentials = "client-credentials"
)

// LoginRequest identifies the client and the scopes to request. Empty
// fields fall back to the provider configuration.
type LoginRequest struct {
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// Authenticator obtains and renews credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, req LoginRequest) (Credential, error)
	Refresh(ctx context.Context, cred Credential) (Credential, error)
}

// ProviderConfig describes an OAuth2 authorization server. Endpoints are
// discovered from Issuer when set; explicit URLs take precedence.
type ProviderConfig struct {
	Issuer          string
	AuthURL         string
	TokenURL        string
	DeviceAuthURL   string
	ClientID        string
	ClientSecret    string
	Scopes          []string
	GrantType       string
	CAFile          string
	InsecureSkipTLS bool
	ExtraAuthParams map[string]string
}

// OAuth2Authenticator implements Authenticator with golang.org/x/oauth2.
type OAuth2Authenticator struct {
	cfg         ProviderConfig
	httpClient  *http.Client
	interactive bool
	useBrowser  bool
	prompt      io.Writer
	openURL     func(string) error
	log         *zap.SugaredLogger

	mu       sync.Mutex
	endpoint *oauth2.Endpoint
}

type AuthenticatorOption func(*OAuth2Authenticator)

// WithInteractive allows (the default) or forbids grants that need a user.
func WithInteractive(interactive bool) AuthenticatorOption {
	return func(a *OAuth2Authenticator) { a.interactive = interactive }
}

// WithBrowser controls whether verification URLs are opened automatically.
func WithBrowser(enabled bool) AuthenticatorOption {
	return func(a *OAuth2Authenticator) { a.useBrowser = enabled }
}

// WithPrompt sets where login instructions are written.
func WithPrompt(w io.Writer) AuthenticatorOption {
	return func(a *OAuth2Authenticator) { a.prompt = w }
}

func WithHTTPClient(c *http.Client) AuthenticatorOption {
	return func(a *OAuth2Authenticator) { a.httpClient = c }
}

func WithAuthLogger(log *zap.SugaredLogger) AuthenticatorOption {
	return func(a *OAuth2Authenticator) { a.log = log }
}

// withURLOpener replaces the browser launcher.
func withURLOpener(fn func(string) error) AuthenticatorOption {
	return func(a *OAuth2Authenticator) { a.openURL = fn }
}

func NewOAuth2Authenticator(cfg ProviderConfig, opts ...AuthenticatorOption) (*OAuth2Authenticator, error) {
	if cfg.Issuer == "" && cfg.TokenURL == "" {
		return nil, errors.New("issuer or token-url is required")
	}
	if cfg.GrantType == "" {
		cfg.GrantType = GrantAuthorizationCode
	}
	switch cfg.GrantType {
	case GrantAuthorizationCode, GrantDeviceCode, GrantClientCredentials:
	default:
		return nil, fmt.Errorf("unsupported grant type: %s", cfg.GrantType)
	}
	a := &OAuth2Authenticator{
		cfg:         cfg,
		interactive: true,
		useBrowser:  true,
		prompt:      os.Stderr,
		openURL:     openBrowser,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = system.OrNop(a.log)
	if a.httpClient == nil {
		client, err := NewHTTPClient(cfg.CAFile, cfg.InsecureSkipTLS)
		if err != nil {
			return nil, err
		}
		a.httpClient = client
	}
	return a, nil
}

// GrantType returns the configured grant.
func (a *OAuth2Authenticator) GrantType() string {
	return a.cfg.GrantType
}

func (a *OAuth2Authenticator) Authenticate(ctx context.Context, req LoginRequest) (Credential, error) {
	req = a.withDefaults(req)
	if req.ClientID == "" {
		return Credential{}, denied("authenticate", errors.New("client-id is required"))
	}
	a.log.Debugw("Authenticating", "grant", a.cfg.GrantType, "scopes", req.Scopes)
	switch a.cfg.GrantType {
	case GrantDeviceCode:
		return a.deviceCode(ctx, req)
	case GrantClientCredentials:
		return a.clientCredentials(ctx, req)
	default:
		return a.authorizationCode(ctx, req)
	}
}

func (a *OAuth2Authenticator) Refresh(ctx context.Context, cred Credential) (Credential, error) {
	if !cred.CanRefresh() {
		return Credential{}, &AuthError{Kind: AuthInvalidGrant, Op: "refresh", Err: errors.New("no refresh token")}
	}
	req := a.withDefaults(LoginRequest{Scopes: cred.Scopes})
	cfg, err := a.oauthConfig(ctx, req, "")
	if err != nil {
		return Credential{}, err
	}
	token, err := cfg.TokenSource(a.tokenContext(ctx), &oauth2.Token{RefreshToken: cred.RefreshToken}).Token()
	if err != nil {
		return Credential{}, classifyTokenError("refresh", err, AuthInvalidGrant)
	}
	out := credentialFromToken(token, cred.Scopes)
	if out.RefreshToken == "" {
		out.RefreshToken = cred.RefreshToken
	}
	if out.IDToken == "" {
		out.IDToken = cred.IDToken
	}
	out.RequestedScopes = cred.RequestedScopes
	a.log.Debugw("Refreshed credential", "expiry", out.Expiry)
	return out, nil
}

func (a *OAuth2Authenticator) withDefaults(req LoginRequest) LoginRequest {
	if req.ClientID == "" {
		req.ClientID = a.cfg.ClientID
	}
	if req.ClientSecret == "" {
		req.ClientSecret = a.cfg.ClientSecret
	}
	if len(req.Scopes) == 0 {
		req.Scopes = a.cfg.Scopes
	}
	return req
}

func (a *OAuth2Authenticator) tokenContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
}

func (a *OAuth2Authenticator) oauthConfig(ctx context.Context, req LoginRequest, redirectURL string) (*oauth2.Config, error) {
	endpoint, err := a.resolveEndpoint(ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Config{
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
		Endpoint:     endpoint,
		RedirectURL:  redirectURL,
		Scopes:       req.Scopes,
	}, nil
}

// resolveEndpoint discovers the provider once per authenticator.
func (a *OAuth2Authenticator) resolveEndpoint(ctx context.Context) (oauth2.Endpoint, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.endpoint != nil {
		return *a.endpoint, nil
	}

	var endpoint oauth2.Endpoint
	if a.cfg.Issuer != "" {
		provider, err := oidc.NewProvider(oidc.ClientContext(ctx, a.httpClient), a.cfg.Issuer)
		if err != nil {
			return oauth2.Endpoint{}, &AuthError{Kind: AuthNetwork, Op: "discovery", Err: fmt.Errorf("failed to discover OIDC provider: %w", err)}
		}
		endpoint = provider.Endpoint()
		var claims struct {
			DeviceAuthorizationEndpoint string `json:"device_authorization_endpoint"`
		}
		if err := provider.Claims(&claims); err == nil && endpoint.DeviceAuthURL == "" {
			endpoint.DeviceAuthURL = claims.DeviceAuthorizationEndpoint
		}
	}
	if a.cfg.AuthURL != "" {
		endpoint.AuthURL = a.cfg.AuthURL
	}
	if a.cfg.TokenURL != "" {
		endpoint.TokenURL = a.cfg.TokenURL
	}
	if a.cfg.DeviceAuthURL != "" {
		endpoint.DeviceAuthURL = a.cfg.DeviceAuthURL
	}
	if endpoint.TokenURL == "" {
		return oauth2.Endpoint{}, denied("discovery", errors.New("token endpoint not configured"))
	}
	a.endpoint = &endpoint
	return endpoint, nil
}

func (a *OAuth2Authenticator) extraAuthOptions() []oauth2.AuthCodeOption {
	opts := make([]oauth2.AuthCodeOption, 0, len(a.cfg.ExtraAuthParams))
	for k, v := range a.cfg.ExtraAuthParams {
		opts = append(opts, oauth2.SetAuthURLParam(k, v))
	}
	return opts
}

func (a *OAuth2Authenticator) showURL(url string) {
	if url == "" || !a.useBrowser {
		return
	}
	if err := a.openURL(url); err != nil {
		a.log.Debugw("Failed to open browser", "error", err)
	}
}

// StaticAuthenticator refuses to authenticate or refresh. It pairs with a
// MemoryStore holding a token supplied on the command line.
type StaticAuthenticator struct{}

// ErrStaticCredential is wrapped by every StaticAuthenticator error.
var ErrStaticCredential = errors.New("a static access token cannot be renewed")

func (StaticAuthenticator) Authenticate(context.Context, LoginRequest) (Credential, error) {
	return Credential{}, denied("authenticate", ErrStaticCredential)
}

func (StaticAuthenticator) Refresh(context.Context, Credential) (Credential, error) {
	return Credential{}, denied("refresh", ErrStaticCredential)
}

// NoBrowserFromEnv reports whether GAMESHAKE_NO_BROWSER disables the
// browser launcher.
func NoBrowserFromEnv() bool {
	v := strings.TrimSpace(os.Getenv("GAMESHAKE_NO_BROWSER"))
	return strings.EqualFold(v, "true") || v == "1"
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
