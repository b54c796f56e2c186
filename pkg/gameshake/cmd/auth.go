package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gameshake/gameshake/pkg/gameshake/auth"
	"github.com/gameshake/gameshake/pkg/telemetry"
)

func NewAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with the gameshake API",
	}
	cmd.AddCommand(
		newAuthLoginCommand(),
		newAuthStatusCommand(),
		newAuthLogoutCommand(),
	)
	return cmd
}

func newAuthLoginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Login with the configured OAuth2 grant and store the credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			conn, err := buildConnection(rt)
			if err != nil {
				return err
			}
			if conn.static {
				return fmt.Errorf("login is not possible with --token")
			}
			defer rt.writeMetrics()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			flush, err := rt.startTracing(ctx)
			if err != nil {
				return err
			}
			defer flush()

			ctx, span := telemetry.Tracer("cmd").Start(ctx, "auth.login")
			cred, err := conn.authn.Authenticate(ctx, conn.login)
			telemetry.End(span, err)
			if err != nil {
				return describeError(err)
			}
			if err := conn.store.Save(ctx, cred); err != nil {
				return fmt.Errorf("failed to store credential: %w", err)
			}
			rt.Logger().Debugw("Stored credential", "profile", conn.profile)

			w := rt.Writer()
			if subject := cred.Subject(); subject != "" {
				_, _ = fmt.Fprintf(w, "Authenticated as %s.", subject)
			} else {
				_, _ = fmt.Fprint(w, "Authenticated.")
			}
			if !cred.Expiry.IsZero() {
				_, _ = fmt.Fprintf(w, " Token expires at %s", cred.Expiry.UTC().Format(time.RFC3339))
			}
			_, _ = fmt.Fprintln(w)
			return nil
		},
	}
}

func newAuthStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored credential of the current context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			conn, err := buildConnection(rt)
			if err != nil {
				return err
			}
			cred, err := conn.store.Load(cmd.Context())
			if err != nil {
				return err
			}
			w := rt.Writer()
			if cred == nil {
				_, _ = fmt.Fprintln(w, "Not authenticated")
				return nil
			}

			now := rt.Clock().Now()
			state := "valid"
			switch {
			case cred.Valid(now, 0) && !cred.Valid(now, auth.DefaultSafetyMargin):
				state = "expiring"
			case !cred.Valid(now, 0):
				state = "expired"
				if cred.CanRefresh() {
					state = "expired (refreshable)"
				}
			}
			_, _ = fmt.Fprintf(w, "Context:  %s\n", conn.contextName)
			if subject := cred.Subject(); subject != "" {
				_, _ = fmt.Fprintf(w, "Subject:  %s\n", subject)
			}
			_, _ = fmt.Fprintf(w, "Status:   %s\n", state)
			if !cred.Expiry.IsZero() {
				_, _ = fmt.Fprintf(w, "Expires:  %s\n", cred.Expiry.UTC().Format(time.RFC3339))
			}
			if len(cred.Scopes) > 0 {
				_, _ = fmt.Fprintf(w, "Scopes:   %s\n", strings.Join(cred.Scopes, " "))
			}
			return nil
		},
	}
}

func newAuthLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored credential of the current context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			conn, err := buildConnection(rt)
			if err != nil {
				return err
			}
			if err := conn.store.Clear(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(rt.Writer(), "Logged out")
			return nil
		},
	}
}
