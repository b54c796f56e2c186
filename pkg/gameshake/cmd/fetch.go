package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gameshake/gameshake/pkg/gameshake/auth"
	"github.com/gameshake/gameshake/pkg/gameshake/client"
	"github.com/gameshake/gameshake/pkg/gameshake/fetch"
	"github.com/gameshake/gameshake/pkg/gameshake/output"
	"github.com/gameshake/gameshake/pkg/metrics"
)

type listOptions struct {
	limit    int
	pageSize int
}

func (o *listOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&o.limit, "limit", 0, "Stop after this many records (0 fetches all)")
	cmd.Flags().IntVar(&o.pageSize, "page-size", 0, "Records requested per page (defaults to settings.page-size)")
}

// recordWriter renders records in one of the table layouts.
type recordWriter func(w io.Writer, records []client.Record) error

func tableOf[T any](write func(io.Writer, []T)) recordWriter {
	return func(w io.Writer, records []client.Record) error {
		items, err := output.DecodeRecords[T](records)
		if err != nil {
			return err
		}
		write(w, items)
		return nil
	}
}

type listing struct {
	resource string
	path     string
	table    recordWriter
	wide     recordWriter
}

func runFetch(cmd *cobra.Command, l listing, opts listOptions) error {
	rt, err := getRuntime(cmd)
	if err != nil {
		return err
	}
	format, tmpl, err := output.ParseFormat(rt.OutputFormat())
	if err != nil {
		return err
	}
	if opts.limit < 0 {
		return fmt.Errorf("invalid --limit %d", opts.limit)
	}
	if opts.pageSize < 0 {
		return fmt.Errorf("invalid --page-size %d", opts.pageSize)
	}
	pageSize := opts.pageSize
	if pageSize == 0 && rt.cfg != nil {
		pageSize = rt.cfg.Settings.EffectivePageSize()
	}

	conn, err := buildConnection(rt)
	if err != nil {
		return err
	}
	defer rt.writeMetrics()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	flush, err := rt.startTracing(ctx)
	if err != nil {
		return err
	}
	defer flush()

	bar := output.NewProgress(rt.ErrWriter(), rt.ProgressEnabled(), l.resource)
	var (
		result   *fetch.Result
		fetchErr error
	)
	for ev := range rt.newOrchestrator(conn).Stream(ctx, fetch.Params{
		Resource: l.resource,
		Path:     l.path,
		PageSize: pageSize,
		Limit:    opts.limit,
		Login:    conn.login,
	}) {
		switch ev.Kind {
		case fetch.EventProgress:
			bar.Update(ev.Progress.Fetched, ev.Progress.Total)
		case fetch.EventCompleted:
			result = ev.Result
		case fetch.EventFailed:
			result, fetchErr = ev.Result, ev.Err
		}
	}
	bar.Finish()
	if fetchErr != nil {
		if result != nil && len(result.Records) > 0 {
			rt.Logger().Debugw("Discarding partial result", "records", len(result.Records), "pages", result.Pages)
		}
		return describeError(fetchErr)
	}

	w := rt.Writer()
	switch format {
	case output.FormatJSON, output.FormatYAML:
		return output.WriteRecords(w, format, result.Records)
	case output.FormatGoTemplate:
		return output.WriteTemplate(w, tmpl, result.Records)
	case output.FormatWide:
		return l.wide(w, result.Records)
	default:
		return l.table(w, result.Records)
	}
}

func (rt *runtimeState) writeMetrics() {
	if rt.metricsFile == "" {
		return
	}
	if err := metrics.WriteTextfile(rt.metricsFile); err != nil {
		rt.Logger().Warnw("Failed to write metrics file", "path", rt.metricsFile, "error", err)
	}
}

// cliError carries a one-line, user facing message while keeping the
// original error reachable through errors.Is and errors.As.
type cliError struct {
	msg string
	err error
}

func (e *cliError) Error() string { return e.msg }

func (e *cliError) Unwrap() error { return e.err }

// describeError renders err as "kind: detail (status N)".
func describeError(err error) error {
	if err == nil {
		return nil
	}
	var (
		fetchErr *fetch.Error
		apiErr   *client.APIError
		authErr  *auth.AuthError
	)
	prefix := ""
	if errors.As(err, &fetchErr) {
		if fetchErr.Kind == fetch.Cancelled {
			return &cliError{msg: "cancelled: fetch interrupted", err: err}
		}
		prefix = string(fetchErr.Kind) + ": "
	}

	switch {
	case errors.As(err, &apiErr):
		detail := apiErr.Message
		if detail == "" && apiErr.Err != nil {
			detail = apiErr.Err.Error()
		}
		msg := fmt.Sprintf("%s%s: %s", prefix, apiErr.Kind, detail)
		switch {
		case apiErr.StatusCode != 0 && apiErr.Attempts > 1:
			msg += fmt.Sprintf(" (status %d after %d attempts)", apiErr.StatusCode, apiErr.Attempts)
		case apiErr.StatusCode != 0:
			msg += fmt.Sprintf(" (status %d)", apiErr.StatusCode)
		case apiErr.Attempts > 1:
			msg += fmt.Sprintf(" (after %d attempts)", apiErr.Attempts)
		}
		if apiErr.Kind == client.Unauthorized {
			msg += "; run 'gameshake auth login'"
		}
		return &cliError{msg: msg, err: err}
	case errors.As(err, &authErr):
		msg := fmt.Sprintf("%sauthentication %s", prefix, authErr.Kind)
		if authErr.Err != nil {
			msg += ": " + authErr.Err.Error()
		}
		switch {
		case errors.Is(err, auth.ErrInteractionRequired):
			msg += "; run 'gameshake auth login' without --non-interactive"
		case errors.Is(err, auth.ErrStaticCredential):
			msg += "; supply a fresh --token"
		case authErr.Kind == auth.AuthInvalidGrant:
			msg += "; run 'gameshake auth login'"
		}
		return &cliError{msg: msg, err: err}
	case fetchErr != nil:
		return &cliError{msg: prefix + fetchErr.Err.Error(), err: err}
	}
	return err
}
