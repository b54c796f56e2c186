/*
SPDX-FileCopyrightText: 2025 Deutsche Telekom AG

SPDX-License-Identifier: Apache-2.0
*/

package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gameshake/gameshake/pkg/gameshake/config"
)

func newTestRoot(buf *bytes.Buffer, configPath string) *cobra.Command {
	root := NewRootCommand(Config{
		ConfigPath:   configPath,
		OutputWriter: buf,
		ErrorWriter:  &bytes.Buffer{},
	})
	root.SetOut(buf)
	root.SetErr(buf)
	return root
}

func TestCompletionCommand(t *testing.T) {
	tests := []struct {
		shell string
		want  string
	}{
		{shell: "bash", want: "bash completion"},
		{shell: "zsh", want: "compdef"},
		{shell: "fish", want: "complete -c gameshake"},
		{shell: "powershell", want: "Register-ArgumentCompleter"},
	}
	for _, tt := range tests {
		t.Run(tt.shell, func(t *testing.T) {
			buf := &bytes.Buffer{}
			root := newTestRoot(buf, "/tmp/nonexistent-gameshake-config.yaml")
			root.SetArgs([]string{"completion", tt.shell})
			require.NoError(t, root.Execute())
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestCompletionCommandErrors(t *testing.T) {
	buf := &bytes.Buffer{}
	root := newTestRoot(buf, "/tmp/nonexistent-gameshake-config.yaml")
	root.SetArgs([]string{"completion", "tcsh"})
	require.ErrorContains(t, root.Execute(), "unsupported shell")

	root = newTestRoot(buf, "/tmp/nonexistent-gameshake-config.yaml")
	root.SetArgs([]string{"completion"})
	require.Error(t, root.Execute())
}

func TestConfigInitCommand(t *testing.T) {
	t.Run("requires server", func(t *testing.T) {
		buf := &bytes.Buffer{}
		root := newTestRoot(buf, configPathForTest(t))
		root.SetArgs([]string{"config", "init", "--client-id", "c", "--issuer", "https://idp.example.com"})
		require.ErrorContains(t, root.Execute(), "server")
	})

	t.Run("requires oauth settings", func(t *testing.T) {
		buf := &bytes.Buffer{}
		root := newTestRoot(buf, configPathForTest(t))
		root.SetArgs([]string{"config", "init", "--server", "https://api.example.com"})
		require.ErrorContains(t, root.Execute(), "--client-id")
	})

	t.Run("inline oauth", func(t *testing.T) {
		buf := &bytes.Buffer{}
		path := configPathForTest(t)
		root := newTestRoot(buf, path)
		root.SetArgs([]string{"config", "init",
			"--server", "https://api.example.com",
			"--issuer", "https://idp.example.com",
			"--client-id", "gameshake",
			"--scopes", "games.read,profile",
		})
		require.NoError(t, root.Execute())
		assert.Contains(t, buf.String(), "Initialized config at "+path)

		cfg, err := config.Load(path)
		require.NoError(t, err)
		assert.Equal(t, "default", cfg.CurrentContext)
		require.Len(t, cfg.Contexts, 1)
		require.NotNil(t, cfg.Contexts[0].OAuth)
		assert.Equal(t, "https://idp.example.com", cfg.Contexts[0].OAuth.Issuer)
		assert.Equal(t, []string{"games.read", "profile"}, cfg.Contexts[0].OAuth.Scopes)
		assert.Equal(t, config.DefaultPageSize, cfg.Settings.PageSize)
	})

	t.Run("shared provider", func(t *testing.T) {
		buf := &bytes.Buffer{}
		path := configPathForTest(t)
		root := newTestRoot(buf, path)
		root.SetArgs([]string{"config", "init",
			"--server", "https://api.example.com",
			"--oauth-provider", "idp",
			"--token-url", "https://idp.example.com/token",
			"--client-id", "ci",
			"--grant-type", "client-credentials",
		})
		require.NoError(t, root.Execute())

		cfg, err := config.Load(path)
		require.NoError(t, err)
		require.Len(t, cfg.OAuthProviders, 1)
		assert.Equal(t, "idp", cfg.Contexts[0].OAuthProvider)
		assert.Equal(t, "client-credentials", cfg.OAuthProviders[0].GrantType)
	})

	t.Run("rejects bad grant", func(t *testing.T) {
		buf := &bytes.Buffer{}
		root := newTestRoot(buf, configPathForTest(t))
		root.SetArgs([]string{"config", "init",
			"--server", "https://api.example.com",
			"--issuer", "https://idp.example.com",
			"--client-id", "gameshake",
			"--grant-type", "password",
		})
		require.ErrorContains(t, root.Execute(), "unsupported grant-type")
	})

	t.Run("no overwrite without force", func(t *testing.T) {
		path := configPathForTest(t)
		require.NoError(t, os.WriteFile(path, []byte("version: v1\n"), 0o600))
		args := []string{"config", "init", "--server", "https://api.example.com", "--issuer", "https://idp.example.com", "--client-id", "c"}

		root := newTestRoot(&bytes.Buffer{}, path)
		root.SetArgs(args)
		require.ErrorContains(t, root.Execute(), "already exists")

		root = newTestRoot(&bytes.Buffer{}, path)
		root.SetArgs(append(args, "--force"))
		require.NoError(t, root.Execute())
	})
}

func TestRootCommandPersistentFlags(t *testing.T) {
	root := NewRootCommand(Config{OutputWriter: &bytes.Buffer{}})
	flags := root.PersistentFlags()
	for _, name := range []string{"config", "context", "output", "server", "token", "token-storage", "non-interactive", "no-progress", "metrics-file", "trace-exporter", "verbose"} {
		assert.NotNil(t, flags.Lookup(name), name)
	}
}

func TestRootCommandHelp(t *testing.T) {
	buf := &bytes.Buffer{}
	root := newTestRoot(buf, "/nonexistent/path/to/config.yaml")
	root.SetArgs([]string{"--help"})
	require.NoError(t, root.Execute())

	for _, want := range []string{"gameshake", "games", "achievements", "leaderboard", "auth", "config"} {
		assert.Contains(t, buf.String(), want)
	}
}

func TestRootCommandMissingConfig(t *testing.T) {
	buf := &bytes.Buffer{}
	root := newTestRoot(buf, filepath.Join(t.TempDir(), "config.yaml"))
	root.SetArgs([]string{"games", "list"})
	require.ErrorIs(t, root.Execute(), os.ErrNotExist)
}

func TestRootCommandEnvironmentOverrides(t *testing.T) {
	api := newGameAPI(t, "env-token")
	t.Setenv("GAMESHAKE_SERVER", api.URL)
	t.Setenv("GAMESHAKE_TOKEN", "env-token")
	t.Setenv("GAMESHAKE_OUTPUT", "go-template={{.id}}")

	out, _, err := execute(t, testEnv{configPath: filepath.Join(t.TempDir(), "none.yaml")}, "games", "list")
	require.NoError(t, err)
	assert.Equal(t, "g1\ng2\ng3\n", out)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.NotEmpty(t, cfg.ConfigPath)
	assert.NotEmpty(t, cfg.CredentialsPath)
	assert.NotNil(t, cfg.OutputWriter)
	assert.NotNil(t, cfg.ErrorWriter)
}
