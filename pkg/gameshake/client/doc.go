// Package client implements the HTTP client the gameshake CLI uses against
// the gaming-platform API: bearer authentication with an explicit
// credential, classified errors, retries with jittered exponential backoff,
// and lazy cursor pagination.
package client
