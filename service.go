package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"inpaint_backend/core"
	"inpaint_backend/logging"
)

const serviceStopTimeout = 30 * time.Second

// serviceProgram runs serve under the OS service manager.
type serviceProgram struct {
	cfg    *core.Config
	logger *logging.Logger
	cancel context.CancelFunc
	exit   chan struct{}
	err    error
}

func (p *serviceProgram) Start(s service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.exit = make(chan struct{})

	go func() {
		defer close(p.exit)
		p.err = runServe(ctx, p.cfg, p.logger, false)
		if p.err != nil {
			p.logger.Error("Service stopped with error", zap.Error(p.err))
		}
	}()
	return nil
}

func (p *serviceProgram) Stop(s service.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	select {
	case <-p.exit:
		return nil
	case <-time.After(serviceStopTimeout):
		return errors.New("timeout waiting for service to stop")
	}
}

// serviceConfig describes the service. The installed command line is
// "service run" with the current env and config files made absolute.
func serviceConfig(opts *globalOptions) (*service.Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	args := []string{"service", "run"}
	if opts.envFile != "" {
		abs, err := filepath.Abs(opts.envFile)
		if err != nil {
			return nil, err
		}
		args = append(args, "--env-file", abs)
	}
	if opts.configFile != "" {
		abs, err := filepath.Abs(opts.configFile)
		if err != nil {
			return nil, err
		}
		args = append(args, "--config", abs)
	}
	return &service.Config{
		Name:             "inpaint",
		DisplayName:      "Inpaint Server",
		Description:      "Serves the interactive inpainting page and API",
		Arguments:        args,
		WorkingDirectory: wd,
		Option: service.KeyValue{
			"StartType": "automatic",
		},
	}, nil
}

func newService(opts *globalOptions, prg *serviceProgram) (service.Service, error) {
	svcConfig, err := serviceConfig(opts)
	if err != nil {
		return nil, err
	}
	s, err := service.New(prg, svcConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	return s, nil
}

func newServiceCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Install and control serve as a system service",
	}

	for _, action := range service.ControlAction {
		cmd.AddCommand(&cobra.Command{
			Use:   action,
			Short: fmt.Sprintf("%s the service", action),
			Args:  cobra.NoArgs,
			RunE: func(c *cobra.Command, args []string) error {
				s, err := newService(opts, &serviceProgram{})
				if err != nil {
					return err
				}
				if err := service.Control(s, action); err != nil {
					return fmt.Errorf("failed to %s service: %w", action, err)
				}
				fmt.Fprintf(c.OutOrStdout(), "service %s: ok\n", action)
				return nil
			},
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the service status",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			s, err := newService(opts, &serviceProgram{})
			if err != nil {
				return err
			}
			status, err := s.Status()
			if err != nil && !errors.Is(err, service.ErrNotInstalled) {
				return fmt.Errorf("failed to get service status: %w", err)
			}
			fmt.Fprintf(c.OutOrStdout(), "%s (%s): %s\n", s, s.Platform(), serviceStatusName(status, err))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:    "run",
		Short:  "Entry point used by the service manager",
		Args:   cobra.NoArgs,
		Hidden: true,
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := loadConfig(c, opts)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			if err := runStartupValidation(cfg, logger, opts.envFile, io.Discard); err != nil {
				return err
			}
			prg := &serviceProgram{cfg: cfg, logger: logger}
			s, err := newService(opts, prg)
			if err != nil {
				return err
			}
			if err := s.Run(); err != nil {
				return err
			}
			return prg.err
		},
	})
	return cmd
}

func serviceStatusName(status service.Status, err error) string {
	if errors.Is(err, service.ErrNotInstalled) {
		return "not installed"
	}
	switch status {
	case service.StatusRunning:
		return "running"
	case service.StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
