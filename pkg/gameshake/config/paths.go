package config

import (
	"os"
	"path/filepath"
)

const (
	defaultConfigDirName   = "gameshake"
	defaultConfigFile      = "config.yaml"
	defaultCredentialsFile = "credentials.json"
)

func DefaultConfigPath() string {
	if env := os.Getenv("GAMESHAKE_CONFIG"); env != "" {
		return env
	}
	return filepath.Join(configDir(), defaultConfigFile)
}

// DefaultCredentialsPath is the credential file, kept next to the config
// file so that GAMESHAKE_CONFIG relocates both.
func DefaultCredentialsPath() string {
	if env := os.Getenv("GAMESHAKE_CONFIG"); env != "" {
		return filepath.Join(filepath.Dir(env), defaultCredentialsFile)
	}
	return filepath.Join(configDir(), defaultCredentialsFile)
}

func configDir() string {
	base, err := os.UserConfigDir()
	if err == nil {
		return filepath.Join(base, defaultConfigDirName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".gameshake")
}
