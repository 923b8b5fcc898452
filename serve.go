package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"inpaint_backend/core"
	"inpaint_backend/logging"
	"inpaint_backend/shutdown"
	"inpaint_backend/webui"
	"inpaint_backend/webui/auth"
)

func newServeCommand(opts *globalOptions) *cobra.Command {
	var host string
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the drawing page and the inpaint API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			if err := runStartupValidation(cfg, logger, opts.envFile, cmd.OutOrStdout()); err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, logger, true)
		},
	}
	cmd.Flags().StringVar(&host, "host", "localhost", "listen host")
	cmd.Flags().IntVar(&port, "port", 3000, "listen port")
	return cmd
}

// runServe serves one session until ctx ends or, with handleSignals, until
// SIGINT or SIGTERM. A signal exit is returned as an *exitCodeError.
func runServe(ctx context.Context, cfg *core.Config, logger *logging.Logger, handleSignals bool) error {
	logConfig(logger, cfg)

	comps, err := openComponents(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	mgr := shutdown.NewManager(logger, shutdown.WithTimeout(cfg.InferenceTimeout()+30*time.Second))
	if handleSignals {
		mgr.Start(cancel)
	}

	var authProvider webui.AuthProvider
	if cfg.WebPassword != "" {
		hash, err := auth.HashPassword(cfg.WebPassword)
		if err != nil {
			comps.Close()
			return err
		}
		mw, err := auth.NewMiddleware(hash, logger)
		if err != nil {
			comps.Close()
			return err
		}
		authProvider = mw
	}

	var history webui.HistoryStore
	if comps.repo != nil {
		history = comps.repo
	}

	serverCfg := webui.DefaultServerConfig()
	serverCfg.Addr = cfg.Addr()
	serverCfg.InferenceTimeout = cfg.InferenceTimeout()
	serverCfg.WriteTimeout = cfg.InferenceTimeout() + 30*time.Second

	srv, err := webui.NewServer(serverCfg, webui.Deps{
		Session: comps.session,
		History: history,
		Metrics: comps.metrics,
		Ops:     mgr,
		Auth:    authProvider,
		Logger:  logger,
	})
	if err != nil {
		comps.Close()
		return err
	}
	mgr.Register("http-server", priorityServer, srv.Shutdown)
	comps.register(mgr)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	var serveErr error
	select {
	case serveErr = <-errCh:
		if serveErr != nil {
			logger.Error("HTTP server failed", zap.Error(serveErr))
		}
		cancel()
		mgr.Shutdown(context.Background())
	case <-ctx.Done():
		mgr.Shutdown(context.Background())
		serveErr = <-errCh
	}
	if serveErr != nil {
		return serveErr
	}

	if code := mgr.ExitCode(); core.IsSignalExit(code) {
		return &exitCodeError{code: code}
	}
	return nil
}
