package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v2"
)

const (
	VersionV1 = "v1"

	DefaultPageSize = 50
	DefaultTimeout  = 30 * time.Second
)

// Progress modes.
const (
	ProgressAuto   = "auto"
	ProgressAlways = "always"
	ProgressNever  = "never"
)

type Config struct {
	Version        string          `yaml:"version"`
	CurrentContext string          `yaml:"current-context,omitempty"`
	OAuthProviders []OAuthProvider `yaml:"oauth-providers,omitempty"`
	Contexts       []Context       `yaml:"contexts,omitempty"`
	Settings       Settings        `yaml:"settings,omitempty"`
}

type Settings struct {
	OutputFormat string  `yaml:"output-format,omitempty"`
	PageSize     int     `yaml:"page-size,omitempty"`
	Timeout      string  `yaml:"timeout,omitempty"`
	TokenStorage string  `yaml:"token-storage,omitempty"`
	RateLimit    float64 `yaml:"rate-limit,omitempty"`
	RateBurst    int     `yaml:"rate-burst,omitempty"`
	Progress     string  `yaml:"progress,omitempty"`
	Retry        Retry   `yaml:"retry,omitempty"`
	Tracing      Tracing `yaml:"tracing,omitempty"`
}

// Retry tunes API and authentication retries. Durations use
// time.ParseDuration syntax.
type Retry struct {
	MaxAttempts  int    `yaml:"max-attempts,omitempty"`
	BaseDelay    string `yaml:"base-delay,omitempty"`
	MaxDelay     string `yaml:"max-delay,omitempty"`
	AuthAttempts int    `yaml:"auth-attempts,omitempty"`
}

// Tracing configures span export. An empty exporter disables tracing.
type Tracing struct {
	Exporter     string  `yaml:"exporter,omitempty"`
	Endpoint     string  `yaml:"endpoint,omitempty"`
	Insecure     bool    `yaml:"insecure,omitempty"`
	SamplingRate float64 `yaml:"sampling-rate,omitempty"`
}

type OAuthProvider struct {
	Name             string            `yaml:"name"`
	Issuer           string            `yaml:"issuer,omitempty"`
	AuthURL          string            `yaml:"auth-url,omitempty"`
	TokenURL         string            `yaml:"token-url,omitempty"`
	DeviceAuthURL    string            `yaml:"device-auth-url,omitempty"`
	ClientID         string            `yaml:"client-id"`
	ClientSecret     string            `yaml:"client-secret,omitempty"`
	ClientSecretEnv  string            `yaml:"client-secret-env,omitempty"`
	ClientSecretFile string            `yaml:"client-secret-file,omitempty"`
	GrantType        string            `yaml:"grant-type,omitempty"`
	CAFile           string            `yaml:"ca-file,omitempty"`
	Scopes           []string          `yaml:"scopes,omitempty"`
	InsecureSkipTLS  bool              `yaml:"insecure-skip-tls-verify,omitempty"`
	ExtraAuthParams  map[string]string `yaml:"extra-auth-params,omitempty"`
}

type Context struct {
	Name                  string       `yaml:"name"`
	Server                string       `yaml:"server"`
	OAuthProvider         string       `yaml:"oauth-provider,omitempty"`
	CAFile                string       `yaml:"ca-file,omitempty"`
	InsecureSkipTLSVerify bool         `yaml:"insecure-skip-tls-verify,omitempty"`
	OAuth                 *InlineOAuth `yaml:"oauth,omitempty"`
}

// InlineOAuth configures a provider for a single context.
type InlineOAuth struct {
	Issuer          string   `yaml:"issuer,omitempty"`
	AuthURL         string   `yaml:"auth-url,omitempty"`
	TokenURL        string   `yaml:"token-url,omitempty"`
	DeviceAuthURL   string   `yaml:"device-auth-url,omitempty"`
	ClientID        string   `yaml:"client-id"`
	ClientSecret    string   `yaml:"client-secret,omitempty"`
	GrantType       string   `yaml:"grant-type,omitempty"`
	Scopes          []string `yaml:"scopes,omitempty"`
	CAFile          string   `yaml:"ca-file,omitempty"`
	InsecureSkipTLS bool     `yaml:"insecure-skip-tls-verify,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Version: VersionV1,
		Settings: Settings{
			OutputFormat: "table",
			PageSize:     DefaultPageSize,
			Timeout:      DefaultTimeout.String(),
			TokenStorage: "file",
			Progress:     ProgressAuto,
		},
	}
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Version == "" {
		cfg.Version = VersionV1
	}
	return &cfg, nil
}

func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if cfg.Version == "" {
		cfg.Version = VersionV1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	content, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, content, 0o600)
}

func (c *Config) FindContext(name string) (*Context, error) {
	for i := range c.Contexts {
		if c.Contexts[i].Name == name {
			return &c.Contexts[i], nil
		}
	}
	return nil, fmt.Errorf("context not found: %s", name)
}

func (c *Config) FindOAuthProvider(name string) (*OAuthProvider, error) {
	for i := range c.OAuthProviders {
		if c.OAuthProviders[i].Name == name {
			return &c.OAuthProviders[i], nil
		}
	}
	return nil, fmt.Errorf("oauth provider not found: %s", name)
}

func (c *Config) CurrentContextOrDefault() string {
	if c.CurrentContext != "" {
		return c.CurrentContext
	}
	if len(c.Contexts) > 0 {
		return c.Contexts[0].Name
	}
	return ""
}

// ResolvedOAuth is the effective provider configuration of a context.
type ResolvedOAuth struct {
	ProviderName     string
	Issuer           string
	AuthURL          string
	TokenURL         string
	DeviceAuthURL    string
	ClientID         string
	ClientSecret     string
	ClientSecretEnv  string
	ClientSecretFile string
	GrantType        string
	Scopes           []string
	CAFile           string
	InsecureSkipTLS  bool
	ExtraAuthParams  map[string]string
}

// Profile names the credential slot of this provider within ctx.
func (r *ResolvedOAuth) Profile(ctxName string) string {
	if r.ProviderName == "" {
		return ctxName
	}
	return ctxName + "/" + r.ProviderName
}

func (c *Config) ResolveOAuth(ctx *Context) (*ResolvedOAuth, error) {
	if ctx == nil {
		return nil, errors.New("context is nil")
	}
	if ctx.OAuth != nil {
		return &ResolvedOAuth{
			Issuer:          ctx.OAuth.Issuer,
			AuthURL:         ctx.OAuth.AuthURL,
			TokenURL:        ctx.OAuth.TokenURL,
			DeviceAuthURL:   ctx.OAuth.DeviceAuthURL,
			ClientID:        ctx.OAuth.ClientID,
			ClientSecret:    ctx.OAuth.ClientSecret,
			GrantType:       ctx.OAuth.GrantType,
			Scopes:          ctx.OAuth.Scopes,
			CAFile:          ctx.OAuth.CAFile,
			InsecureSkipTLS: ctx.OAuth.InsecureSkipTLS,
		}, nil
	}
	if ctx.OAuthProvider == "" {
		return nil, errors.New("no oauth provider configured")
	}
	provider, err := c.FindOAuthProvider(ctx.OAuthProvider)
	if err != nil {
		return nil, err
	}
	return &ResolvedOAuth{
		ProviderName:     provider.Name,
		Issuer:           provider.Issuer,
		AuthURL:          provider.AuthURL,
		TokenURL:         provider.TokenURL,
		DeviceAuthURL:    provider.DeviceAuthURL,
		ClientID:         provider.ClientID,
		ClientSecret:     provider.ClientSecret,
		ClientSecretEnv:  provider.ClientSecretEnv,
		ClientSecretFile: provider.ClientSecretFile,
		GrantType:        provider.GrantType,
		Scopes:           provider.Scopes,
		CAFile:           provider.CAFile,
		InsecureSkipTLS:  provider.InsecureSkipTLS,
		ExtraAuthParams:  provider.ExtraAuthParams,
	}, nil
}

// TimeoutDuration returns the per-request timeout.
func (s Settings) TimeoutDuration() (time.Duration, error) {
	return parseDuration("timeout", s.Timeout, DefaultTimeout)
}

// EffectivePageSize returns the page size, defaulting when unset.
func (s Settings) EffectivePageSize() int {
	if s.PageSize <= 0 {
		return DefaultPageSize
	}
	return s.PageSize
}

// Delays returns the parsed base and max delay; zero means "use the
// client default".
func (r Retry) Delays() (time.Duration, time.Duration, error) {
	base, err := parseDuration("retry.base-delay", r.BaseDelay, 0)
	if err != nil {
		return 0, 0, err
	}
	maxDelay, err := parseDuration("retry.max-delay", r.MaxDelay, 0)
	if err != nil {
		return 0, 0, err
	}
	return base, maxDelay, nil
}

func parseDuration(field, value string, fallback time.Duration) (time.Duration, error) {
	if strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", field, value)
	}
	return d, nil
}

var validGrantTypes = map[string]bool{
	"":                   true,
	"authorization-code": true,
	"device-code":        true,
	"client-credentials": true,
}

// Validate reports every problem found, not just the first.
func (c *Config) Validate() error {
	var errs error
	if c.Version == "" {
		errs = multierr.Append(errs, errors.New("config version missing"))
	}

	providers := map[string]bool{}
	for _, p := range c.OAuthProviders {
		if strings.TrimSpace(p.Name) == "" {
			errs = multierr.Append(errs, errors.New("oauth provider name cannot be empty"))
			continue
		}
		if providers[p.Name] {
			errs = multierr.Append(errs, fmt.Errorf("duplicate oauth provider %s", p.Name))
		}
		providers[p.Name] = true
		if p.ClientID == "" {
			errs = multierr.Append(errs, fmt.Errorf("oauth provider %s client-id is required", p.Name))
		}
		if p.Issuer == "" && p.TokenURL == "" {
			errs = multierr.Append(errs, fmt.Errorf("oauth provider %s needs an issuer or token-url", p.Name))
		}
		if !validGrantTypes[p.GrantType] {
			errs = multierr.Append(errs, fmt.Errorf("oauth provider %s has unsupported grant-type %q", p.Name, p.GrantType))
		}
	}

	contexts := map[string]bool{}
	for _, ctx := range c.Contexts {
		if strings.TrimSpace(ctx.Name) == "" {
			errs = multierr.Append(errs, errors.New("context name cannot be empty"))
			continue
		}
		if contexts[ctx.Name] {
			errs = multierr.Append(errs, fmt.Errorf("duplicate context %s", ctx.Name))
		}
		contexts[ctx.Name] = true
		if strings.TrimSpace(ctx.Server) == "" {
			errs = multierr.Append(errs, fmt.Errorf("context %s server is required", ctx.Name))
		} else if u, err := url.Parse(ctx.Server); err != nil || u.Scheme == "" || u.Host == "" {
			errs = multierr.Append(errs, fmt.Errorf("context %s server %q is not an absolute URL", ctx.Name, ctx.Server))
		}
		if ctx.OAuthProvider != "" && !providers[ctx.OAuthProvider] {
			errs = multierr.Append(errs, fmt.Errorf("context %s references unknown oauth provider %s", ctx.Name, ctx.OAuthProvider))
		}
		if ctx.OAuth != nil && !validGrantTypes[ctx.OAuth.GrantType] {
			errs = multierr.Append(errs, fmt.Errorf("context %s has unsupported grant-type %q", ctx.Name, ctx.OAuth.GrantType))
		}
	}
	if c.CurrentContext != "" && !contexts[c.CurrentContext] {
		errs = multierr.Append(errs, fmt.Errorf("current-context %s does not exist", c.CurrentContext))
	}

	s := c.Settings
	if s.PageSize < 0 {
		errs = multierr.Append(errs, errors.New("settings.page-size must not be negative"))
	}
	if s.RateLimit < 0 {
		errs = multierr.Append(errs, errors.New("settings.rate-limit must not be negative"))
	}
	switch s.TokenStorage {
	case "", "file", "keychain":
	default:
		errs = multierr.Append(errs, fmt.Errorf("settings.token-storage %q must be file or keychain", s.TokenStorage))
	}
	switch s.Progress {
	case "", ProgressAuto, ProgressAlways, ProgressNever:
	default:
		errs = multierr.Append(errs, fmt.Errorf("settings.progress %q must be auto, always or never", s.Progress))
	}
	switch s.Tracing.Exporter {
	case "", "none", "stdout", "otlp":
	default:
		errs = multierr.Append(errs, fmt.Errorf("settings.tracing.exporter %q must be otlp, stdout or none", s.Tracing.Exporter))
	}
	if s.Tracing.SamplingRate < 0 || s.Tracing.SamplingRate > 1 {
		errs = multierr.Append(errs, errors.New("settings.tracing.sampling-rate must be between 0 and 1"))
	}
	if _, err := s.TimeoutDuration(); err != nil {
		errs = multierr.Append(errs, err)
	}
	if s.Retry.MaxAttempts < 0 || s.Retry.AuthAttempts < 0 {
		errs = multierr.Append(errs, errors.New("settings.retry attempts must not be negative"))
	}
	base, maxDelay, err := s.Retry.Delays()
	if err != nil {
		errs = multierr.Append(errs, err)
	} else if base > 0 && maxDelay > 0 && base > maxDelay {
		errs = multierr.Append(errs, errors.New("settings.retry.base-delay exceeds max-delay"))
	}
	return errs
}
