package validation

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"inpaint_backend/core"
)

// ValidationStep represents a single validation step with its status.
type ValidationStep struct {
	Name    string
	Status  StepStatus
	Message string
	Error   error
	Latency time.Duration
}

// StepStatus represents the status of a validation step.
type StepStatus int

const (
	StepPending StepStatus = iota
	StepRunning
	StepPassed
	StepFailed
	StepWarning
	StepSkipped
)

func (s StepStatus) String() string {
	switch s {
	case StepPending:
		return "pending"
	case StepRunning:
		return "running"
	case StepPassed:
		return "passed"
	case StepFailed:
		return "failed"
	case StepWarning:
		return "warning"
	case StepSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// SuiteResult is the outcome of a suite run.
type SuiteResult struct {
	Steps       []ValidationStep
	TotalSteps  int
	PassedSteps int
	FailedSteps int
	Warnings    int
	Duration    time.Duration
	Success     bool

	// Side is the source image side, zero when the image check failed.
	Side int
}

// ValidationSuite checks everything an inpainting run needs before the
// first stroke: settings, source image, model bundle, output location.
type ValidationSuite struct {
	output       io.Writer
	envPath      string
	showProgress bool
	failFast     bool
}

// NewValidationSuite creates a new ValidationSuite with default settings.
func NewValidationSuite() *ValidationSuite {
	return &ValidationSuite{
		output:       os.Stdout,
		envPath:      ".env",
		showProgress: true,
	}
}

// WithOutput sets the output writer for progress messages.
func (s *ValidationSuite) WithOutput(w io.Writer) *ValidationSuite {
	s.output = w
	return s
}

// WithShowProgress enables or disables progress output.
func (s *ValidationSuite) WithShowProgress(show bool) *ValidationSuite {
	s.showProgress = show
	return s
}

// WithFailFast stops validation on first failure if enabled.
func (s *ValidationSuite) WithFailFast(failFast bool) *ValidationSuite {
	s.failFast = failFast
	return s
}

// WithEnvPath sets a custom path for the .env file.
func (s *ValidationSuite) WithEnvPath(path string) *ValidationSuite {
	s.envPath = path
	return s
}

// Validate runs every check against cfg. A missing .env file is only a
// warning since all settings have defaults.
func (s *ValidationSuite) Validate(cfg *core.Config) SuiteResult {
	startTime := time.Now()
	steps := make([]ValidationStep, 0, 5)
	side := 0

	if s.showProgress {
		s.printHeader("Inpaint Configuration Validation")
	}

	step := s.runStep("Environment File", func() (StepStatus, string, error) {
		if err := CheckFileExists(s.envPath); err != nil {
			return StepWarning, "not found, using process environment and defaults", nil
		}
		return StepPassed, s.envPath, nil
	})
	steps = append(steps, step)

	step = s.runStep("Settings", func() (StepStatus, string, error) {
		if err := cfg.Validate(); err != nil {
			return StepFailed, "", err
		}
		return StepPassed, fmt.Sprintf("%s mode", cfg.Mode()), nil
	})
	steps = append(steps, step)
	if s.failFast && step.Status == StepFailed {
		return s.finish(steps, startTime, side)
	}

	step = s.runStep("Source Image", func() (StepStatus, string, error) {
		n, err := CheckSourceImage(cfg.SourceImagePath())
		if err != nil {
			return StepFailed, "", err
		}
		side = n
		return StepPassed, fmt.Sprintf("%s (%dx%d)", cfg.SourceImagePath(), n, n), nil
	})
	steps = append(steps, step)
	if s.failFast && step.Status == StepFailed {
		return s.finish(steps, startTime, side)
	}

	step = s.runStep("Model Bundle", func() (StepStatus, string, error) {
		arch, err := CheckModelBundle(cfg.ModelPath(), side)
		if err != nil {
			return StepFailed, "", err
		}
		return StepPassed, fmt.Sprintf("%s (%s)", cfg.ModelPath(), arch.Name), nil
	})
	steps = append(steps, step)
	if s.failFast && step.Status == StepFailed {
		return s.finish(steps, startTime, side)
	}

	step = s.runStep("Output Location", func() (StepStatus, string, error) {
		if err := CheckOutputWritable(cfg.OutputPath); err != nil {
			return StepFailed, "", err
		}
		return StepPassed, cfg.OutputPath, nil
	})
	steps = append(steps, step)

	return s.finish(steps, startTime, side)
}

func (s *ValidationSuite) finish(steps []ValidationStep, startTime time.Time, side int) SuiteResult {
	result := buildResult(steps, startTime)
	result.Side = side
	if s.showProgress {
		s.printSummary(result)
	}
	return result
}

// runStep executes a validation step with timing and progress output.
func (s *ValidationSuite) runStep(name string, fn func() (StepStatus, string, error)) ValidationStep {
	if s.showProgress {
		s.printStepStart(name)
	}

	startTime := time.Now()
	status, message, err := fn()
	step := ValidationStep{
		Name:    name,
		Status:  status,
		Message: message,
		Error:   err,
		Latency: time.Since(startTime),
	}

	if s.showProgress {
		s.printStep(step)
	}
	return step
}

func buildResult(steps []ValidationStep, startTime time.Time) SuiteResult {
	result := SuiteResult{
		Steps:      steps,
		TotalSteps: len(steps),
		Duration:   time.Since(startTime),
		Success:    true,
	}

	for _, step := range steps {
		switch step.Status {
		case StepPassed:
			result.PassedSteps++
		case StepFailed:
			result.FailedSteps++
			result.Success = false
		case StepWarning:
			result.Warnings++
		}
	}
	return result
}

func (s *ValidationSuite) printHeader(title string) {
	fmt.Fprintln(s.output)
	color.New(color.FgCyan, color.Bold).Fprintf(s.output, "━━━ %s ━━━\n", title)
	fmt.Fprintln(s.output)
}

func (s *ValidationSuite) printStepStart(name string) {
	fmt.Fprintf(s.output, "  ◌ %s...", name)
}

func (s *ValidationSuite) printStep(step ValidationStep) {
	var icon string
	var clr *color.Color

	switch step.Status {
	case StepPassed:
		icon = "✓"
		clr = color.New(color.FgGreen)
	case StepFailed:
		icon = "✗"
		clr = color.New(color.FgRed)
	case StepWarning:
		icon = "!"
		clr = color.New(color.FgYellow)
	case StepSkipped:
		icon = "○"
		clr = color.New(color.FgHiBlack)
	default:
		icon = "?"
		clr = color.New(color.FgWhite)
	}

	// Overwrite the "running" line
	fmt.Fprintf(s.output, "\r")
	clr.Fprintf(s.output, "  %s %s", icon, step.Name)
	if step.Message != "" {
		color.New(color.FgHiBlack).Fprintf(s.output, " - %s", step.Message)
	}
	fmt.Fprintln(s.output)

	if step.Status == StepFailed && step.Error != nil {
		color.New(color.FgRed).Fprintf(s.output, "    └─ %s\n", step.Error.Error())
	}
}

func (s *ValidationSuite) printSummary(result SuiteResult) {
	fmt.Fprintln(s.output)

	if result.Success {
		ok := color.New(color.FgGreen, color.Bold)
		ok.Fprintf(s.output, "━━━ Validation Passed ")
		color.New(color.FgHiBlack).Fprintf(s.output, "(%d/%d checks passed in %v)",
			result.PassedSteps, result.TotalSteps, result.Duration.Round(time.Millisecond))
		ok.Fprintln(s.output, " ━━━")
	} else {
		fail := color.New(color.FgRed, color.Bold)
		fail.Fprintf(s.output, "━━━ Validation Failed ")
		color.New(color.FgHiBlack).Fprintf(s.output, "(%d passed, %d failed)",
			result.PassedSteps, result.FailedSteps)
		fail.Fprintln(s.output, " ━━━")
	}

	fmt.Fprintln(s.output)
}

// GetFirstError returns the first error from failed steps, or nil if all passed.
func (r SuiteResult) GetFirstError() error {
	for _, step := range r.Steps {
		if step.Error != nil {
			return step.Error
		}
	}
	return nil
}

// Summary returns e.g. "Validation Passed: 4/5 checks passed, 1 warnings (took 3ms)".
func (r SuiteResult) Summary() string {
	var sb strings.Builder
	if r.Success {
		sb.WriteString("Validation Passed: ")
	} else {
		sb.WriteString("Validation Failed: ")
	}
	fmt.Fprintf(&sb, "%d/%d checks passed", r.PassedSteps, r.TotalSteps)
	if r.FailedSteps > 0 {
		fmt.Fprintf(&sb, ", %d failed", r.FailedSteps)
	}
	if r.Warnings > 0 {
		fmt.Fprintf(&sb, ", %d warnings", r.Warnings)
	}
	fmt.Fprintf(&sb, " (took %v)", r.Duration.Round(time.Millisecond))
	return sb.String()
}
