// Command emberctl runs the control panel API and its provisioning tasks.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ovaphlow/emberctl/internal/auth"
	"github.com/ovaphlow/emberctl/internal/captcha"
	"github.com/ovaphlow/emberctl/internal/router"
	"github.com/ovaphlow/emberctl/internal/setting"
	"github.com/ovaphlow/emberctl/internal/user"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	shutdownGrace = 5 * time.Second
	purgeInterval = time.Hour
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "emberctl",
		Short:         "Administrative control panel",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newInitCmd(), newResetPwdCmd(), newAuditCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var (
		dev  bool
		addr string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, dev, addr)
		},
	}
	cmd.Flags().BoolVarP(&dev, "dev", "d", false, "debug logging with a console encoder")
	cmd.Flags().StringVar(&addr, "addr", "", "override LISTEN_ADDR")
	return cmd
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the administrator account on first run",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.close()
			res, err := a.initializer(cmd.OutOrStdout()).Initialize(cmd.Context())
			if err != nil {
				return fmt.Errorf("init: %w", err)
			}
			if !res.Created {
				fmt.Fprintln(cmd.OutOrStdout(), "already initialized")
			}
			return nil
		},
	}
}

func newResetPwdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-pwd",
		Short: "Generate a new administrator password",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.close()
			if _, err := a.initializer(cmd.OutOrStdout()).ResetAdminPassword(cmd.Context()); err != nil {
				return fmt.Errorf("reset-pwd: %w", err)
			}
			return nil
		},
	}
}

func newAuditCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Print the most recent operation log entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.close()
			entries, err := a.audit.List(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("audit: %w", err)
			}
			out := cmd.OutOrStdout()
			for _, e := range entries {
				fmt.Fprintf(out, "%d\t%s\t%s\t%s/%s\t%s\n",
					e.ID, e.Time.Local().Format(time.RFC3339), e.User, e.Module, e.Action, e.Detail)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries")
	return cmd
}

func runServe(ctx context.Context, dev bool, addr string) error {
	a, err := newApp(ctx, dev)
	if err != nil {
		return err
	}
	defer a.close()
	sugar := a.sugar

	if addr == "" {
		addr = a.cfg.ListenAddr
	}
	if done, err := a.settings.Initialized(ctx); err != nil {
		return fmt.Errorf("read init flag: %w", err)
	} else if !done {
		sugar.Warn("not initialized; run `emberctl init` to create the administrator")
	}

	issuer := captcha.NewIssuer(a.cfg.CaptchaTTL, nil, captcha.WithMaxEntries(a.cfg.CaptchaMaxEntries))
	handler := router.RegisterRoutes(router.Deps{
		Logger:   sugar,
		RootPath: a.cfg.RootPath,
		Tokens:   a.tokens,
		Auth:     auth.NewHandler(auth.NewService(issuer, a.users, a.tokens, a.audit, sugar), sugar),
		Captcha:  captcha.NewHandler(issuer, sugar),
		Users:    user.NewHandler(a.db, a.users, a.audit, sugar),
		Settings: setting.NewHandler(a.settings, sugar),
	})
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go purgeTokens(ctx, a)

	errCh := make(chan error, 1)
	go func() {
		sugar.Infow("listening", "addr", addr, "root", a.cfg.RootPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	sugar.Info("shutting down")
	doneCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}
	sugar.Info("goodbye")
	return nil
}

// purgeTokens deletes expired login tokens every purgeInterval until ctx ends.
func purgeTokens(ctx context.Context, a *app) {
	t := time.NewTicker(purgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := a.tokens.PurgeExpired(ctx)
			if err != nil {
				a.sugar.Warnw("purge expired tokens failed", "err", err)
				continue
			}
			if n > 0 {
				a.sugar.Debugw("purged expired tokens", "count", n)
			}
		}
	}
}
