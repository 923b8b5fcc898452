package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"inpaint_backend/db"
	"inpaint_backend/logging"
	"inpaint_backend/pconv"
)

func newValidateCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check settings, source image, model bundle and output location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return runStartupValidation(cfg, logging.NewNop(), opts.envFile, cmd.OutOrStdout())
		},
	}
}

func newInitModelCommand(opts *globalOptions) *cobra.Command {
	var iterations int
	var force bool
	cmd := &cobra.Command{
		Use:   "init-model",
		Short: "Write the reference partial-convolution bundles to the model directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			bundle, err := pconv.DefaultBundle(iterations)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.ModelDir, 0o755); err != nil {
				return fmt.Errorf("create model directory: %w", err)
			}

			out := cmd.OutOrStdout()
			for _, name := range []string{cfg.SRModel, cfg.IRRModel} {
				path := filepath.Join(cfg.ModelDir, name)
				if _, err := os.Stat(path); err == nil && !force {
					fmt.Fprintf(out, "%s %s exists, skipping (use --force to overwrite)\n", color.YellowString("!"), path)
					continue
				}
				if err := pconv.WriteBundle(path, bundle); err != nil {
					return err
				}
				sum, err := pconv.CalculateChecksum(path)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s %s sha256:%s\n", color.GreenString("✓"), path, sum)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&iterations, "iterations", pconv.DefaultIterations, "maximum fill passes")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing bundles")
	return cmd
}

func newHistoryCommand(opts *globalOptions) *cobra.Command {
	var limit, pruneDays int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded inpaint runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			if cfg.DBPath == "" {
				return errors.New("run history is disabled (INPAINT_DB_PATH is empty)")
			}
			database, err := db.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer database.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if pruneDays > 0 {
				res, err := database.Cleanup(ctx, pruneDays)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "pruned %d runs older than %d days\n", res.RunsDeleted, pruneDays)
			}

			repo := db.NewRepository(database, nil)
			runs, err := repo.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}

			total, err := repo.CountRuns(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CREATED\tID\tMODE\tSIDE\tKNOWN\tPOINTS\tMS\tSTATUS")
			for _, r := range runs {
				status := color.GreenString(r.Status)
				if r.Status != db.StatusSuccess {
					status = color.RedString(r.Status)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
					r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.ID, r.Mode,
					r.ImageSide, r.KnownPixels, r.StrokePoints, r.DurationMS, status)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "%d of %d runs\n", len(runs), total)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	cmd.Flags().IntVar(&pruneDays, "prune-days", 0, "delete runs older than this many days first")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newMigrateCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the run history schema",
	}

	dbPath := func(c *cobra.Command) (string, error) {
		cfg, err := loadConfig(c, opts)
		if err != nil {
			return "", err
		}
		if cfg.DBPath == "" {
			return "", errors.New("run history is disabled (INPAINT_DB_PATH is empty)")
		}
		return cfg.DBPath, nil
	}
	printVersion := func(c *cobra.Command, path string) error {
		version, dirty, err := db.MigrationVersion(path)
		if err != nil {
			return err
		}
		suffix := ""
		if dirty {
			suffix = color.RedString(" (dirty)")
		}
		fmt.Fprintf(c.OutOrStdout(), "schema version %d%s\n", version, suffix)
		return nil
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			path, err := dbPath(c)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			if err := db.MigrateUp(path); err != nil {
				return err
			}
			return printVersion(c, path)
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			path, err := dbPath(c)
			if err != nil {
				return err
			}
			if err := db.MigrateDown(path, steps); err != nil {
				return err
			}
			return printVersion(c, path)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back, -1 for all")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the schema version",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			path, err := dbPath(c)
			if err != nil {
				return err
			}
			return printVersion(c, path)
		},
	}

	cmd.AddCommand(up, down, version)
	return cmd
}
