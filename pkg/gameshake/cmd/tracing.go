package cmd

import (
	"context"

	"github.com/gameshake/gameshake/pkg/telemetry"
	"github.com/gameshake/gameshake/pkg/version"
)

// startTracing installs the trace exporter selected by --trace-exporter or
// settings.tracing. The returned func flushes pending spans.
func (rt *runtimeState) startTracing(ctx context.Context) (func(), error) {
	opts := telemetry.Options{
		ServiceVersion: version.Version,
		Writer:         rt.ErrWriter(),
		Logger:         rt.Logger(),
	}
	if rt.cfg != nil {
		t := rt.cfg.Settings.Tracing
		opts.Exporter = t.Exporter
		opts.Endpoint = t.Endpoint
		opts.Insecure = t.Insecure
		opts.SamplingRate = t.SamplingRate
	}
	if rt.traceExporter != "" {
		opts.Exporter = rt.traceExporter
	}
	if opts.Exporter == "" {
		return func() {}, nil
	}

	_, shutdown, err := telemetry.Init(ctx, opts)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			rt.Logger().Warnw("Failed to flush traces", "error", err)
		}
	}, nil
}
