package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/modelhub/pkg/server"
	"github.com/m-mizutani/modelhub/pkg/service/mcp"
	"github.com/m-mizutani/modelhub/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	var (
		cfg          config
		addr         string
		withMCP      bool
		maxBodyBytes int64
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Listen address",
			Value:       ":8080",
			Sources:     cli.EnvVars("MODELHUB_ADDR"),
			Destination: &addr,
		},
		&cli.BoolFlag{
			Name:        "mcp-http",
			Usage:       "Also serve MCP tools over streamable HTTP at /mcp",
			Sources:     cli.EnvVars("MODELHUB_MCP_HTTP"),
			Destination: &withMCP,
		},
		&cli.IntFlag{
			Name:        "max-body-bytes",
			Usage:       "Largest accepted JSON request body in bytes",
			Value:       server.DefaultMaxBodyBytes,
			Sources:     cli.EnvVars("MODELHUB_MAX_BODY_BYTES"),
			Destination: &maxBodyBytes,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setupLogger(ctx, nil)
			if err != nil {
				return err
			}
			uc, cleanup, err := cfg.newUseCase(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			opts := []server.Option{server.WithMaxBodyBytes(maxBodyBytes)}
			if withMCP {
				opts = append(opts, server.WithMCP(mcp.Handler(uc, version)))
			}

			httpServer := &http.Server{
				Addr:              addr,
				Handler:           server.New(uc, opts...),
				ReadHeaderTimeout: 10 * time.Second,
				BaseContext:       func(_ net.Listener) context.Context { return ctx },
			}

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logging.From(ctx).Info("starting HTTP server", "addr", addr, "mcp", withMCP)
				errCh <- httpServer.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return goerr.Wrap(err, "HTTP server failed", goerr.V("addr", addr))
				}
				return nil
			case <-ctx.Done():
			}

			logging.From(ctx).Info("shutting down HTTP server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shut down HTTP server")
			}
			return nil
		},
	}
}

func mcpCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve MCP tools (list_models, get_model, predict) over stdio",
		Flags: globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setupLogger(ctx, nil)
			if err != nil {
				return err
			}
			uc, cleanup, err := cfg.newUseCase(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			return mcp.ServeStdio(ctx, uc, version)
		},
	}
}
