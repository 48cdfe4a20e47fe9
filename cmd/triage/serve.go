package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"reflect"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zen-systems/triage/pkg/api"
	"github.com/zen-systems/triage/pkg/archive"
	"github.com/zen-systems/triage/pkg/config"
	"github.com/zen-systems/triage/pkg/router"
)

func backendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List configured escalation backends in the order they are tried",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "#\tBACKEND\tMODEL\tTIER\tSTATUS")
			for i, b := range a.router.Backends() {
				status := "ready"
				if !b.Available() {
					status = "unavailable"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i+1, b.ID(), b.ModelID(), b.Tier(), status)
			}
			fmt.Fprintln(w)
			fmt.Fprintf(w, "MODE\t%s\n", a.router.Mode())
			fmt.Fprintf(w, "THRESHOLD\t%.2f\n", a.router.Policy().Threshold)
			if g := a.router.Policy().Guard(); g != "" {
				fmt.Fprintf(w, "GUARD\t%s\n", g)
			}
			return w.Flush()
		},
	}
}

func serveCmd() *cobra.Command {
	var addr string
	var archiveDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the routing API over HTTP",
		Long: `Serves the routing API. When a routing file is in use, edits to its
	mode are applied without a restart unless --mode was given. Other routing
	fields take effect on the next start.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = a.cfg.RoutingConfig.Server.Addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if a.cfg.RoutingPath != "" {
				loaded := a.cfg.RoutingConfig
				err := config.WatchRouting(ctx, a.cfg.RoutingPath, func(rc *config.RoutingConfig, err error) {
					if err != nil {
						a.log.WithError(err).Warn("routing reload failed, keeping current settings")
						return
					}
					applyRoutingReload(a.router, loaded, rc, modeFlag != "", a.log)
				})
				if err != nil {
					a.log.WithError(err).Warn("routing hot reload disabled")
				}
			}

			var opts []api.Option
			if archiveDir != "" {
				st, err := archive.NewStore(archiveDir)
				if err != nil {
					return fmt.Errorf("open archive: %w", err)
				}
				opts = append(opts, api.WithArchive(st))
			}

			gin.SetMode(gin.ReleaseMode)
			srv := &http.Server{
				Addr:              addr,
				Handler:           api.NewServer(a.router, a.log, opts...).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.log.WithField("addr", addr).Info("serving")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			a.log.Info("shutting down")
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&archiveDir, "archive", "", "directory for persisted overrides (disabled when empty)")
	return cmd
}

// applyRoutingReload applies the mode of a reloaded routing file. A mode given
// on the command line wins over the file. Other fields only take effect on
// restart; changes to them are logged.
func applyRoutingReload(r *router.Router, loaded, rc *config.RoutingConfig, modePinned bool, log logrus.FieldLogger) {
	if restart := restartFields(loaded, rc); len(restart) > 0 {
		log.WithField("fields", strings.Join(restart, ",")).Warn("routing changes require a restart to take effect")
	}
	if modePinned {
		if rc.Mode != string(r.Mode()) {
			log.WithField("mode", rc.Mode).Info("routing file mode ignored, --mode was given")
		}
		return
	}
	mode, err := router.ParseMode(rc.Mode)
	if err == nil {
		err = r.SetMode(mode)
	}
	if err != nil {
		log.WithError(err).Warn("routing reload rejected")
	}
}

// restartFields names the fields of rc that differ from loaded and cannot be
// applied to a running router.
func restartFields(loaded, rc *config.RoutingConfig) []string {
	var out []string
	if loaded.EscalationThreshold != rc.EscalationThreshold {
		out = append(out, "escalation_threshold")
	}
	if loaded.EscalationGuard != rc.EscalationGuard {
		out = append(out, "escalation_guard")
	}
	if !reflect.DeepEqual(loaded.Backends, rc.Backends) {
		out = append(out, "backends")
	}
	if !reflect.DeepEqual(loaded.Pricing, rc.Pricing) {
		out = append(out, "pricing")
	}
	if loaded.Logging != rc.Logging {
		out = append(out, "logging")
	}
	if loaded.Server != rc.Server {
		out = append(out, "server")
	}
	return out
}
