package config

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfigPath(t *testing.T) {
	t.Run("uses GAMESHAKE_CONFIG env var when set", func(t *testing.T) {
		customPath := "/custom/path/config.yaml"
		t.Setenv("GAMESHAKE_CONFIG", customPath)
		assert.Equal(t, customPath, DefaultConfigPath())
	})

	t.Run("uses user config dir when GAMESHAKE_CONFIG not set", func(t *testing.T) {
		t.Setenv("GAMESHAKE_CONFIG", "")
		result := DefaultConfigPath()
		assert.True(t, strings.HasSuffix(result, filepath.Join("gameshake", "config.yaml")),
			"Expected path to end with gameshake/config.yaml, got: %s", result)
	})
}

func TestDefaultCredentialsPath(t *testing.T) {
	t.Run("next to the default config", func(t *testing.T) {
		t.Setenv("GAMESHAKE_CONFIG", "")
		result := DefaultCredentialsPath()
		assert.True(t, strings.HasSuffix(result, filepath.Join("gameshake", "credentials.json")),
			"Expected path to end with gameshake/credentials.json, got: %s", result)
	})

	t.Run("follows GAMESHAKE_CONFIG", func(t *testing.T) {
		t.Setenv("GAMESHAKE_CONFIG", filepath.Join("/tmp", "alt", "config.yaml"))
		assert.Equal(t, filepath.Join("/tmp", "alt", "credentials.json"), DefaultCredentialsPath())
	})
}
