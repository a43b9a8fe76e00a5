package llc

import "fmt"

// A ConfigError reports an invalid simulator configuration: inconsistent
// geometry, an unsupported protocol, or conflicting verbosity flags. The
// CLI maps protocol and flag errors to the argument-error exit code and
// geometry errors to the runtime-failure exit code.
type ConfigError struct {
	msg string
}

func (e *ConfigError) Error() string {
	return e.msg
}

// NewConfigError creates a ConfigError with the given message.
func NewConfigError(msg string) *ConfigError {
	return &ConfigError{msg: msg}
}

func configErrorf(format string, v ...any) *ConfigError {
	return &ConfigError{msg: fmt.Sprintf(format, v...)}
}
