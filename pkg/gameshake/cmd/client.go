package cmd

import (
	"errors"
	"fmt"

	"github.com/gameshake/gameshake/pkg/gameshake/auth"
	"github.com/gameshake/gameshake/pkg/gameshake/client"
	"github.com/gameshake/gameshake/pkg/gameshake/config"
	"github.com/gameshake/gameshake/pkg/gameshake/fetch"
	"github.com/gameshake/gameshake/pkg/system"
	"github.com/gameshake/gameshake/pkg/version"
)

// connection is everything needed to talk to the server of one context.
type connection struct {
	contextName string
	profile     string
	store       auth.Store
	authn       auth.Authenticator
	client      *client.Client
	login       auth.LoginRequest
	retry       client.RetryConfig
	static      bool
}

func buildConnection(rt *runtimeState) (*connection, error) {
	// --server together with --token needs no context at all.
	if rt.serverOverride != "" && rt.tokenOverride != "" {
		return rt.staticConnection(nil)
	}

	if err := rt.EnsureConfigLoaded(); err != nil {
		return nil, err
	}
	if err := rt.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", rt.configPathValue(), err)
	}
	ctxCfg, err := rt.ResolveContext()
	if err != nil {
		return nil, err
	}
	if rt.tokenOverride != "" {
		return rt.staticConnection(ctxCfg)
	}

	resolved, err := rt.cfg.ResolveOAuth(ctxCfg)
	if err != nil {
		return nil, fmt.Errorf("context %s: %w", ctxCfg.Name, err)
	}
	secret, err := auth.ResolveClientSecret(resolved.ClientSecret, resolved.ClientSecretEnv, resolved.ClientSecretFile)
	if err != nil {
		return nil, err
	}
	log := rt.Logger().With(system.ProfileFields(ctxCfg.Name, resolved.ProviderName)...)

	authn, err := auth.NewOAuth2Authenticator(auth.ProviderConfig{
		Issuer:          resolved.Issuer,
		AuthURL:         resolved.AuthURL,
		TokenURL:        resolved.TokenURL,
		DeviceAuthURL:   resolved.DeviceAuthURL,
		ClientID:        resolved.ClientID,
		ClientSecret:    secret,
		Scopes:          resolved.Scopes,
		GrantType:       resolved.GrantType,
		CAFile:          resolved.CAFile,
		InsecureSkipTLS: resolved.InsecureSkipTLS,
		ExtraAuthParams: resolved.ExtraAuthParams,
	},
		auth.WithInteractive(!rt.nonInteractive),
		auth.WithBrowser(!auth.NoBrowserFromEnv()),
		auth.WithPrompt(rt.ErrWriter()),
		auth.WithAuthLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("context %s: %w", ctxCfg.Name, err)
	}

	profile := resolved.Profile(ctxCfg.Name)
	store, err := auth.NewStore(rt.TokenStorage(), rt.credentialsPath, profile, log)
	if err != nil {
		return nil, err
	}

	conn := &connection{
		contextName: ctxCfg.Name,
		profile:     profile,
		store:       store,
		authn:       authn,
		login: auth.LoginRequest{
			ClientID:     resolved.ClientID,
			ClientSecret: secret,
			Scopes:       resolved.Scopes,
		},
	}
	caFile := ctxCfg.CAFile
	if caFile == "" {
		caFile = resolved.CAFile
	}
	if err := rt.attachClient(conn, rt.resolveServer(ctxCfg), caFile, ctxCfg.InsecureSkipTLSVerify); err != nil {
		return nil, err
	}
	return conn, nil
}

// staticConnection serves --token. The token is held in memory only and can
// be neither refreshed nor replaced.
func (rt *runtimeState) staticConnection(ctxCfg *config.Context) (*connection, error) {
	conn := &connection{
		contextName: "static",
		profile:     "static",
		store: auth.NewMemoryStore(&auth.Credential{
			AccessToken: rt.tokenOverride,
			TokenType:   "Bearer",
		}),
		authn:  auth.StaticAuthenticator{},
		static: true,
	}
	var (
		caFile   string
		insecure bool
	)
	if ctxCfg != nil {
		conn.contextName = ctxCfg.Name
		caFile = ctxCfg.CAFile
		insecure = ctxCfg.InsecureSkipTLSVerify
	}
	if err := rt.attachClient(conn, rt.resolveServer(ctxCfg), caFile, insecure); err != nil {
		return nil, err
	}
	return conn, nil
}

func (rt *runtimeState) attachClient(conn *connection, server, caFile string, insecure bool) error {
	if server == "" {
		return errors.New("server is required")
	}
	retry, rateLimit, rateBurst, err := rt.clientSettings()
	if err != nil {
		return err
	}
	options := []client.Option{
		client.WithServer(server),
		client.WithUserAgent(version.UserAgent()),
		client.WithTLSConfig(caFile, insecure),
		client.WithRetry(retry),
		client.WithRateLimit(rateLimit, rateBurst),
		client.WithLogger(rt.Logger().With("context", conn.contextName)),
	}
	if rt.cfg != nil {
		timeout, err := rt.cfg.Settings.TimeoutDuration()
		if err != nil {
			return err
		}
		options = append(options, client.WithTimeout(timeout))
	}
	c, err := client.New(options...)
	if err != nil {
		return err
	}
	conn.client = c
	conn.retry = c.RetryConfig()
	return nil
}

func (rt *runtimeState) clientSettings() (client.RetryConfig, float64, int, error) {
	retry := client.DefaultRetryConfig()
	if rt.cfg == nil {
		return retry, 0, 0, nil
	}
	s := rt.cfg.Settings
	base, maxDelay, err := s.Retry.Delays()
	if err != nil {
		return retry, 0, 0, err
	}
	retry = client.RetryConfig{
		MaxAttempts: s.Retry.MaxAttempts,
		BaseDelay:   base,
		MaxDelay:    maxDelay,
	}.WithDefaults()
	return retry, s.RateLimit, s.RateBurst, nil
}

func (rt *runtimeState) newOrchestrator(conn *connection) *fetch.Orchestrator {
	authAttempts := 0
	if rt.cfg != nil {
		authAttempts = rt.cfg.Settings.Retry.AuthAttempts
	}
	return fetch.New(conn.store, conn.authn, client.NewPaginator(conn.client),
		fetch.WithClock(rt.Clock()),
		fetch.WithAuthRetry(authAttempts, conn.retry),
		fetch.WithLogger(rt.Logger().With("context", conn.contextName)),
	)
}
