package core

// Exit codes. Signal exits follow the 128 + signal number convention.
const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1

	// ExitCodeConfigError means startup validation failed: missing image,
	// missing or mismatched model bundle, bad settings.
	ExitCodeConfigError = 2

	ExitCodeSIGINT  = 130
	ExitCodeSIGTERM = 143
)

// ExitCodeName returns a human-readable name for an exit code.
func ExitCodeName(code int) string {
	switch code {
	case ExitCodeSuccess:
		return "success"
	case ExitCodeError:
		return "error"
	case ExitCodeConfigError:
		return "configuration error"
	case ExitCodeSIGINT:
		return "interrupted (SIGINT)"
	case ExitCodeSIGTERM:
		return "terminated (SIGTERM)"
	default:
		return "unknown"
	}
}

// IsSignalExit reports whether code is a signal exit.
func IsSignalExit(code int) bool {
	return code == ExitCodeSIGINT || code == ExitCodeSIGTERM
}

// ExitCodeFor maps an error to an exit code: nil is success, a ConfigError
// anywhere in the chain is a configuration error, anything else is an error.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}
	if _, ok := IsConfigError(err); ok {
		return ExitCodeConfigError
	}
	return ExitCodeError
}
