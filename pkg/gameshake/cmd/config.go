package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/gameshake/gameshake/pkg/gameshake/auth"
	"github.com/gameshake/gameshake/pkg/gameshake/config"
	"github.com/gameshake/gameshake/pkg/gameshake/output"
)

const redacted = "REDACTED"

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage gameshake configuration",
	}

	cmd.AddCommand(
		newConfigInitCommand(),
		newConfigViewCommand(),
		newConfigContextsCommand(),
		newConfigCurrentContextCommand(),
		newConfigUseContextCommand(),
		newConfigSetValueCommand(),
		newConfigValidateCommand(),
	)

	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var (
		contextName   string
		server        string
		issuer        string
		tokenURL      string
		clientID      string
		grantType     string
		oauthProvider string
		scopes        []string
		insecure      bool
		force         bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a gameshake config file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			path := rt.configPathValue()
			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("config already exists: %s", path)
				}
			}
			if contextName == "" {
				contextName = "default"
			}
			cfg := config.DefaultConfig()
			cfg.CurrentContext = contextName
			ctx := config.Context{
				Name:                  contextName,
				Server:                server,
				InsecureSkipTLSVerify: insecure,
			}
			if oauthProvider == "" {
				if (issuer == "" && tokenURL == "") || clientID == "" {
					return errors.New("--client-id and one of --issuer or --token-url are required when --oauth-provider is not set")
				}
				ctx.OAuth = &config.InlineOAuth{
					Issuer:    issuer,
					TokenURL:  tokenURL,
					ClientID:  clientID,
					GrantType: grantType,
					Scopes:    scopes,
				}
			} else {
				ctx.OAuthProvider = oauthProvider
				cfg.OAuthProviders = append(cfg.OAuthProviders, config.OAuthProvider{
					Name:      oauthProvider,
					Issuer:    issuer,
					TokenURL:  tokenURL,
					ClientID:  clientID,
					GrantType: grantType,
					Scopes:    scopes,
				})
			}
			cfg.Contexts = append(cfg.Contexts, ctx)
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(path, &cfg); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Initialized config at %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&contextName, "context", "default", "Context name")
	cmd.Flags().StringVar(&server, "server", "", "gameshake API URL")
	cmd.Flags().StringVar(&issuer, "issuer", "", "OIDC issuer used for endpoint discovery")
	cmd.Flags().StringVar(&tokenURL, "token-url", "", "OAuth2 token endpoint (when the issuer has no discovery document)")
	cmd.Flags().StringVar(&clientID, "client-id", "", "OAuth2 client ID")
	cmd.Flags().StringVar(&grantType, "grant-type", "", "OAuth2 grant: authorization-code, device-code or client-credentials")
	cmd.Flags().StringSliceVar(&scopes, "scopes", nil, "OAuth2 scopes to request")
	cmd.Flags().StringVar(&oauthProvider, "oauth-provider", "", "Name for a shared oauth provider entry")
	cmd.Flags().BoolVar(&insecure, "insecure-skip-tls-verify", false, "Skip TLS verification")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing config")

	_ = cmd.MarkFlagRequired("server")
	return cmd
}

func newConfigViewCommand() *cobra.Command {
	var showSecrets bool
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Show the current configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			view := *rt.cfg
			if !showSecrets {
				view = redactSecrets(view)
			}
			return output.WriteObject(rt.Writer(), output.FormatYAML, view)
		},
	}
	cmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "Print client secrets instead of masking them")
	return cmd
}

func redactSecrets(cfg config.Config) config.Config {
	providers := make([]config.OAuthProvider, len(cfg.OAuthProviders))
	for i, p := range cfg.OAuthProviders {
		if p.ClientSecret != "" {
			p.ClientSecret = redacted
		}
		providers[i] = p
	}
	cfg.OAuthProviders = providers

	contexts := make([]config.Context, len(cfg.Contexts))
	for i, c := range cfg.Contexts {
		if c.OAuth != nil && c.OAuth.ClientSecret != "" {
			inline := *c.OAuth
			inline.ClientSecret = redacted
			c.OAuth = &inline
		}
		contexts[i] = c
	}
	cfg.Contexts = contexts
	return cfg
}

func newConfigContextsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get-contexts",
		Short: "List configured contexts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			current := rt.cfg.CurrentContextOrDefault()
			for _, ctx := range rt.cfg.Contexts {
				marker := " "
				if ctx.Name == current {
					marker = "*"
				}
				_, _ = fmt.Fprintf(rt.Writer(), "%s %s\t%s\n", marker, ctx.Name, ctx.Server)
			}
			return nil
		},
	}
}

func newConfigUseContextCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "use-context NAME",
		Aliases: []string{"use", "set-context"},
		Short:   "Set the default context",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			name := args[0]
			if _, err := rt.cfg.FindContext(name); err != nil {
				return err
			}
			rt.cfg.CurrentContext = name
			if err := config.Save(rt.configPathValue(), rt.cfg); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "%s\n", name)
			return nil
		},
	}
}

func newConfigCurrentContextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "current-context",
		Short: "Show the current context",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(rt.Writer(), rt.cfg.CurrentContextOrDefault())
			return nil
		},
	}
}

func newConfigSetValueCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a settings value, e.g. settings.page-size 100",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			if err := setValue(&rt.cfg.Settings, args[0], args[1]); err != nil {
				return err
			}
			if err := rt.cfg.Validate(); err != nil {
				return err
			}
			return config.Save(rt.configPathValue(), rt.cfg)
		},
	}
}

func setValue(s *config.Settings, key, value string) error {
	var err error
	switch key {
	case "settings.output-format":
		if _, _, err := output.ParseFormat(value); err != nil {
			return err
		}
		s.OutputFormat = value
	case "settings.page-size":
		s.PageSize, err = strconv.Atoi(value)
	case "settings.timeout":
		s.Timeout = value
	case "settings.token-storage":
		if value == "keyring" {
			value = auth.StorageKeychain
		}
		s.TokenStorage = value
	case "settings.progress":
		s.Progress = value
	case "settings.rate-limit":
		s.RateLimit, err = strconv.ParseFloat(value, 64)
	case "settings.rate-burst":
		s.RateBurst, err = strconv.Atoi(value)
	case "settings.retry.max-attempts":
		s.Retry.MaxAttempts, err = strconv.Atoi(value)
	case "settings.retry.auth-attempts":
		s.Retry.AuthAttempts, err = strconv.Atoi(value)
	case "settings.retry.base-delay":
		s.Retry.BaseDelay = value
	case "settings.retry.max-delay":
		s.Retry.MaxDelay = value
	case "settings.tracing.exporter":
		s.Tracing.Exporter = value
	case "settings.tracing.endpoint":
		s.Tracing.Endpoint = value
	case "settings.tracing.insecure":
		s.Tracing.Insecure, err = strconv.ParseBool(value)
	case "settings.tracing.sampling-rate":
		s.Tracing.SamplingRate, err = strconv.ParseFloat(value, 64)
	default:
		return fmt.Errorf("unsupported key: %s", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %s", key, value)
	}
	return nil
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration file for problems",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			if err := rt.cfg.Validate(); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "%s is valid\n", rt.configPathValue())
			return nil
		},
	}
}
