// Package auth manages OAuth2 credentials for the gameshake CLI: the
// authorization code, device code and client credentials grants, refresh,
// and persistence of the resulting credential in a locked file or the OS
// keychain.
package auth
