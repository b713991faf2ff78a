package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/cors"
	"github.com/spf13/cobra"

	"github.com/tmc/nbfix"
	"github.com/tmc/nbfix/internal/ui"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve notebook repair over HTTP",
	Long: `Start an HTTP server that repairs notebooks sent to it.

Endpoints:
  POST /repair    request body is a notebook; the response is the repaired
                  notebook with X-Nbfix-Rule and X-Nbfix-Modified headers
  GET  /health
  GET  /metrics   Prometheus metrics

The server never reads or writes files, so no backups are involved.

Example usage:
  nbfix serve --port 9000
  curl --data-binary @analysis.ipynb localhost:9000/repair > fixed.ipynb`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("host", "127.0.0.1", "address to listen on")
	serveCmd.Flags().IntP("port", "p", 8080, "port to listen on")
	serveCmd.Flags().String("policy", "ensure-state", "widget policy (ensure-state, strip-widgets)")
	serveCmd.Flags().Int("indent", 1, "spaces per indentation level in repaired notebooks")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer log.Close()

	rcfg, err := nbfix.ConfigFrom(cfg)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	h := nbfix.NewHandler(rcfg.Options, cfg.Server.MaxBodyBytes, log, reg)

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	srv := &http.Server{
		Addr:         addr,
		Handler:      cors.AllowAll().Handler(h.Routes()),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s Serving notebook repair on http://%s/repair\n", ui.RenderPass("✓"), addr)
	log.Infow("server started", "addr", addr, "policy", rcfg.Options.Policy)

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	fmt.Fprintln(out, "\nShutting down...")
	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	return srv.Shutdown(shutdownCtx)
}
