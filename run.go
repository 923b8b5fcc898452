package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"inpaint_backend/core"
	"inpaint_backend/inpaint"
	"inpaint_backend/logging"
	"inpaint_backend/shutdown"
)

func newRunCommand(opts *globalOptions) *cobra.Command {
	var strokesPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run inpaint cycles without the web page",
		Long: `Run loads the source image and model, replays the cycles of a stroke
script (or a single cycle with no strokes) and writes each result to the
output path. In super-resolution mode no strokes are needed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			script := &StrokeScript{Cycles: []ScriptCycle{{}}}
			if strokesPath != "" {
				if script, err = LoadStrokeScript(strokesPath); err != nil {
					return err
				}
			}

			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			if err := runStartupValidation(cfg, logger, opts.envFile, cmd.OutOrStdout()); err != nil {
				return err
			}
			return runScript(cmd, cfg, logger, script)
		},
	}
	cmd.Flags().StringVar(&strokesPath, "strokes", "", "YAML stroke script")
	return cmd
}

func runScript(cmd *cobra.Command, cfg *core.Config, logger *logging.Logger, script *StrokeScript) error {
	logConfig(logger, cfg)

	comps, err := openComponents(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	mgr := shutdown.NewManager(logger)
	mgr.Start(cancel)
	comps.register(mgr)
	defer mgr.Shutdown(context.Background())

	out := cmd.OutOrStdout()
	for i, cycle := range script.Cycles {
		if ctx.Err() != nil {
			break
		}
		points, err := cycle.Draw(comps.session)
		if err != nil {
			return err
		}

		var result *inpaint.Result
		err = mgr.WrapOperation(func() error {
			cycleCtx, cancelCycle := context.WithTimeout(ctx, cfg.InferenceTimeout())
			defer cancelCycle()
			result, err = comps.session.Inpaint(cycleCtx)
			return err
		})
		if err != nil {
			logger.Error("Cycle failed", zap.Int("cycle", i+1), zap.Error(err))
			return err
		}

		m := result.Metrics
		fmt.Fprintf(out, "cycle %d: run %s, %d stroke points, %d/%d known pixels, %s -> %s\n",
			i+1, m.RunID, points, m.KnownPixels, m.KnownPixels+m.UnknownPixels, m.Total.Round(time.Millisecond), cfg.OutputPath)
	}

	if code := mgr.ExitCode(); core.IsSignalExit(code) {
		return &exitCodeError{code: code}
	}
	return nil
}
