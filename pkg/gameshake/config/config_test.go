package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.CurrentContext = "prod"
	cfg.Contexts = []Context{{
		Name:          "prod",
		Server:        "https://api.gameshake.example",
		OAuthProvider: "platform",
	}}
	cfg.OAuthProviders = []OAuthProvider{{
		Name:     "platform",
		Issuer:   "https://id.gameshake.example",
		ClientID: "gameshake-cli",
		Scopes:   []string{"openid", "games.read"},
	}}
	return cfg
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gameshake", "config.yaml")

	cfg := validConfig()
	cfg.Settings.Retry = Retry{MaxAttempts: 4, BaseDelay: "250ms", MaxDelay: "10s"}
	cfg.Settings.RateLimit = 5
	cfg.Settings.Tracing = Tracing{Exporter: "otlp", Endpoint: "collector:4317", Insecure: true, SamplingRate: 0.25}

	require.NoError(t, Save(path, &cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.CurrentContext, loaded.CurrentContext)
	require.Len(t, loaded.Contexts, 1)
	require.Len(t, loaded.OAuthProviders, 1)
	assert.Equal(t, cfg.Contexts[0].Server, loaded.Contexts[0].Server)
	assert.Equal(t, cfg.Settings.Retry, loaded.Settings.Retry)
	assert.Equal(t, 5.0, loaded.Settings.RateLimit)
	assert.Equal(t, cfg.Settings.Tracing, loaded.Settings.Tracing)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadDefaultsVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("current-context: dev\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, VersionV1, cfg.Version)
	assert.Equal(t, "dev", cfg.CurrentContext)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("contexts: [unclosed"), 0o600))
	_, err = Load(path)
	require.Error(t, err)

	require.Error(t, Save(path, nil))
}

func TestResolveOAuthInline(t *testing.T) {
	cfg := DefaultConfig()
	ctx := Context{
		Name:   "local",
		Server: "http://localhost:8080",
		OAuth: &InlineOAuth{
			TokenURL:  "http://localhost:9000/token",
			ClientID:  "ci-bot",
			GrantType: "client-credentials",
		},
	}
	cfg.Contexts = []Context{ctx}

	resolved, err := cfg.ResolveOAuth(&ctx)
	require.NoError(t, err)
	assert.Equal(t, ctx.OAuth.TokenURL, resolved.TokenURL)
	assert.Equal(t, "ci-bot", resolved.ClientID)
	assert.Equal(t, "client-credentials", resolved.GrantType)
	assert.Equal(t, "local", resolved.Profile("local"))
}

func TestResolveOAuthProvider(t *testing.T) {
	cfg := validConfig()
	resolved, err := cfg.ResolveOAuth(&cfg.Contexts[0])
	require.NoError(t, err)
	assert.Equal(t, "platform", resolved.ProviderName)
	assert.Equal(t, "https://id.gameshake.example", resolved.Issuer)
	assert.Equal(t, "prod/platform", resolved.Profile("prod"))

	_, err = cfg.ResolveOAuth(&Context{Name: "x", OAuthProvider: "missing"})
	require.Error(t, err)
	_, err = cfg.ResolveOAuth(&Context{Name: "x"})
	require.Error(t, err)
	_, err = cfg.ResolveOAuth(nil)
	require.Error(t, err)
}

func TestCurrentContextOrDefault(t *testing.T) {
	cfg := DefaultConfig()
	assert.Empty(t, cfg.CurrentContextOrDefault())

	cfg.Contexts = []Context{{Name: "first"}, {Name: "second"}}
	assert.Equal(t, "first", cfg.CurrentContextOrDefault())

	cfg.CurrentContext = "second"
	assert.Equal(t, "second", cfg.CurrentContextOrDefault())
}

func TestValidate(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "missing server", mutate: func(c *Config) { c.Contexts[0].Server = "" }},
		{name: "relative server", mutate: func(c *Config) { c.Contexts[0].Server = "api.example" }},
		{name: "unknown provider", mutate: func(c *Config) { c.Contexts[0].OAuthProvider = "nope" }},
		{name: "provider without endpoints", mutate: func(c *Config) { c.OAuthProviders[0].Issuer = "" }},
		{name: "provider without client", mutate: func(c *Config) { c.OAuthProviders[0].ClientID = "" }},
		{name: "bad grant", mutate: func(c *Config) { c.OAuthProviders[0].GrantType = "password" }},
		{name: "missing current context", mutate: func(c *Config) { c.CurrentContext = "staging" }},
		{name: "bad storage", mutate: func(c *Config) { c.Settings.TokenStorage = "vault" }},
		{name: "bad progress", mutate: func(c *Config) { c.Settings.Progress = "sometimes" }},
		{name: "bad timeout", mutate: func(c *Config) { c.Settings.Timeout = "soon" }},
		{name: "base above max", mutate: func(c *Config) { c.Settings.Retry = Retry{BaseDelay: "1m", MaxDelay: "1s"} }},
		{name: "bad trace exporter", mutate: func(c *Config) { c.Settings.Tracing.Exporter = "jaeger" }},
		{name: "bad sampling rate", mutate: func(c *Config) { c.Settings.Tracing.SamplingRate = 1.5 }},
		{name: "duplicate context", mutate: func(c *Config) { c.Contexts = append(c.Contexts, c.Contexts[0]) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Contexts[0].Server = ""
	cfg.Settings.PageSize = -1
	cfg.Settings.RateLimit = -2

	err := cfg.Validate()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 3)
}

func TestSettingsDurations(t *testing.T) {
	s := Settings{}
	d, err := s.TimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, d)
	assert.Equal(t, DefaultPageSize, s.EffectivePageSize())

	s.Timeout = "5s"
	s.PageSize = 10
	d, err = s.TimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, d)
	assert.Equal(t, 10, s.EffectivePageSize())

	base, maxDelay, err := Retry{BaseDelay: "100ms", MaxDelay: "2s"}.Delays()
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, base)
	assert.Equal(t, 2*time.Second, maxDelay)

	_, _, err = Retry{BaseDelay: "-1s"}.Delays()
	require.Error(t, err)
}
