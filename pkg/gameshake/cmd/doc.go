// Package cmd implements the cobra command tree of the gameshake CLI:
// listing games, achievements and leaderboard entries, managing the stored
// OAuth2 credential, editing the config file, and shell completion.
package cmd
