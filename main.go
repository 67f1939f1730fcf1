package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"

	"github.com/oaiiae/contacts-web/cli/api"
	"github.com/oaiiae/contacts-web/cli/logger"
	"github.com/oaiiae/contacts-web/cli/tracing"
	"github.com/oaiiae/contacts-web/flows"
	"github.com/oaiiae/contacts-web/localstore"
)

const title = "Contacts"

// set at link time
var (
	version  = "dev"
	revision = ""
	created  = ""
)

// Options for the CLI. Pass `--port` or set the `SERVICE_PORT` env var.
type Options struct {
	api.ServerOptions
	api.RouterOptions
	api.BackendOptions
	api.LocalStoreOptions
	logger.Options
	tracing.ExporterOptions
}

func main() {
	var openapi huma.API

	cli := humacli.New(func(hooks humacli.Hooks, options *Options) {
		log, closeLog := logger.New(&options.Options)
		fatal := func(msg string, err error) {
			log.Error(msg, "err", err)
			os.Exit(1)
		}

		shutdownTracing, err := tracing.Init(&options.ExporterOptions, title)
		if err != nil {
			fatal("could not set up tracing", err)
		}
		set := metrics.NewSet()
		store, err := api.NewStore(&options.BackendOptions, set)
		if err != nil {
			fatal("could not set up the contacts store", err)
		}
		local, err := api.OpenLocalStore(&options.LocalStoreOptions, log)
		if err != nil {
			fatal("could not open the local store", err)
		}

		deps := flows.Deps{
			Store:   store,
			Mirror:  localstore.NewMirror(local),
			Logger:  log,
			Pending: new(flows.Pending),
		}
		var handler http.Handler
		handler, openapi = api.NewRouter(&options.RouterOptions, deps, set, title, version, revision, created, log)
		srv := api.NewServer(&options.ServerOptions, handler, log)

		hooks.OnStart(func() {
			log.Info("listening", slog.String("addr", srv.Addr), slog.String("backend", options.Backend))
			err := srv.ListenAndServe()
			if !errors.Is(err, http.ErrServerClosed) {
				log.Error("failed to listen and serve", "err", err)
			} else {
				log.Info("server closed")
			}
		})
		hooks.OnStop(func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				log.Warn("could not shutdown the server", "err", err)
			}
			if err := deps.Pending.Wait(ctx); err != nil {
				log.Warn("gave up on pending phone updates", "err", err)
			}
			if err := local.Close(); err != nil {
				log.Warn("could not close the local store", "err", err)
			}
			if err := shutdownTracing(ctx); err != nil {
				log.Warn("could not flush traces", "err", err)
			}
			_ = closeLog()
		})
	})

	cli.Root().Use = "contacts-web"
	cli.Root().Version = version
	cli.Root().AddCommand(&cobra.Command{
		Use:   "openapi",
		Short: "Print the OpenAPI document",
		Run: humacli.WithOptions(func(cmd *cobra.Command, _ []string, _ *Options) {
			b, err := openapi.OpenAPI().YAML()
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				os.Exit(1)
			}
			fmt.Fprint(cmd.OutOrStdout(), string(b))
		}),
	})
	cli.Run()
}
