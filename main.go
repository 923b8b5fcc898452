package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"inpaint_backend/core"
	"inpaint_backend/logging"
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// exitCodeError carries a specific exit code, such as a signal exit, out of
// a command.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return core.ExitCodeName(e.code)
}

// execute runs the command line and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	root := newRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		return core.ExitCodeSuccess
	}
	var exitErr *exitCodeError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	if code := core.GetErrorCode(err); code != "" {
		fmt.Fprintf(stderr, "Error [%s]: %v\n", code, err)
	} else {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return core.ExitCodeFor(err)
}

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	envFile         string
	configFile      string
	imageIndex      int
	imagePath       string
	superResolution bool
	srRate          int
	output          string
	devMode         bool
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "inpaint",
		Short:         "Interactive image inpainting with partial convolutions",
		Version:       core.GetVersionInfo(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading INPAINT_* variables")
	flags.StringVar(&opts.configFile, "config", "", "YAML config file applied over the environment")
	flags.IntVar(&opts.imageIndex, "img", 1, "index of the source image in the image directory")
	flags.StringVar(&opts.imagePath, "image", "", "source image path, overrides --img")
	flags.BoolVar(&opts.superResolution, "super_resolution", false, "grid (super-resolution) mask instead of strokes")
	flags.BoolVar(&opts.superResolution, "sr", false, "shorthand for --super_resolution")
	flags.IntVar(&opts.srRate, "sr_rate", 2, "grid stride in super-resolution mode")
	flags.StringVarP(&opts.output, "output", "o", "", "output image path")
	flags.BoolVar(&opts.devMode, "dev", false, "development logging")

	root.AddCommand(
		newServeCommand(opts),
		newRunCommand(opts),
		newValidateCommand(opts),
		newInitModelCommand(opts),
		newHistoryCommand(opts),
		newMigrateCommand(opts),
		newServiceCommand(opts),
		newVersionCommand(),
	)
	return root
}

// loadConfig loads the dotenv file, the environment and the YAML overlay,
// then applies flags the user set explicitly. It does not validate.
func loadConfig(cmd *cobra.Command, opts *globalOptions) (*core.Config, error) {
	if err := godotenv.Load(opts.envFile); err != nil {
		if cmd.Flags().Changed("env-file") {
			return nil, core.ErrEnvFileMissing(opts.envFile)
		}
	}

	cfg, err := core.LoadConfig()
	if err != nil {
		return nil, err
	}
	if opts.configFile != "" {
		if err := cfg.ApplyFile(opts.configFile); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("img") {
		cfg.ImageIndex = opts.imageIndex
	}
	if flags.Changed("image") {
		cfg.ImagePath = opts.imagePath
	}
	if flags.Changed("super_resolution") || flags.Changed("sr") {
		cfg.SuperResolution = opts.superResolution
	}
	if flags.Changed("sr_rate") {
		cfg.SRRate = opts.srRate
	}
	if flags.Changed("output") {
		cfg.OutputPath = opts.output
	}
	if flags.Changed("dev") {
		cfg.DevMode = opts.devMode
	}
	return cfg, nil
}

func newLogger(cfg *core.Config) (*logging.Logger, error) {
	logger, err := logging.NewLogger(cfg.DevMode, cfg.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// logConfig logs the settings a run depends on.
func logConfig(logger *logging.Logger, cfg *core.Config) {
	logger.Info("Configuration loaded",
		zap.String("image", cfg.SourceImagePath()),
		zap.String("mode", cfg.Mode().String()),
		zap.Int("sr_rate", cfg.SRRate),
		zap.String("model", cfg.ModelPath()),
		zap.String("output", cfg.OutputPath),
		zap.String("mask_dump", cfg.MaskPath),
		zap.String("db", cfg.DBPath),
		zap.Bool("dev_mode", cfg.DevMode),
	)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), core.GetVersionInfo())
		},
	}
}
