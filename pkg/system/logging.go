// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package system

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the CLI logger. Output goes to w (stderr when nil) so that
// table and JSON output on stdout stay clean. verbose switches the level from
// warn to debug.
func NewLogger(verbose bool, w io.Writer) *zap.SugaredLogger {
	if w == nil {
		w = os.Stderr
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
		encCfg.TimeKey = "T"
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), level)
	return zap.New(core).Sugar()
}

// OrNop returns log, or a no-op logger when log is nil. Components accept a
// nil logger so library callers don't have to wire one.
func OrNop(log *zap.SugaredLogger) *zap.SugaredLogger {
	if log == nil {
		return zap.NewNop().Sugar()
	}
	return log
}

// ProfileFields returns key/value pairs identifying a context and provider,
// suitable for SugaredLogger.With or Infow/Debugw calls. Empty values are
// omitted.
func ProfileFields(contextName, provider string) []interface{} {
	fields := make([]interface{}, 0, 4)
	if contextName != "" {
		fields = append(fields, "context", contextName)
	}
	if provider != "" {
		fields = append(fields, "provider", provider)
	}
	return fields
}
