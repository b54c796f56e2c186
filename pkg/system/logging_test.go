// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package system

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerQuietByDefault(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewLogger(false, buf)
	log.Debugw("hidden", "key", "value")
	log.Infow("hidden too")
	require.NoError(t, log.Sync())
	assert.Empty(t, buf.String())

	log.Warnw("visible", "key", "value")
	require.NoError(t, log.Sync())
	assert.Contains(t, buf.String(), "visible")
	assert.Contains(t, buf.String(), "value")
}

func TestNewLoggerVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewLogger(true, buf)
	log.Debugw("debug message", "attempt", 2)
	require.NoError(t, log.Sync())
	assert.Contains(t, buf.String(), "debug message")
	assert.Contains(t, buf.String(), "attempt")
}

func TestOrNop(t *testing.T) {
	require.NotNil(t, OrNop(nil))
	log := NewLogger(false, &bytes.Buffer{})
	require.Same(t, log, OrNop(log))
}

func TestProfileFields(t *testing.T) {
	assert.Empty(t, ProfileFields("", ""))
	assert.Equal(t, []interface{}{"context", "prod"}, ProfileFields("prod", ""))
	assert.Equal(t, []interface{}{"context", "prod", "provider", "steam"}, ProfileFields("prod", "steam"))
}
