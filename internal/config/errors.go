package config

import "fmt"

// Reason categorizes configuration failures
type Reason int

const (
	Malformed   Reason = iota // entry is not key=value or the value does not parse
	InvalidPath               // path does not resolve to an existing directory
	Missing                   // required value absent
)

func (r Reason) String() string {
	switch r {
	case Malformed:
		return "malformed"
	case InvalidPath:
		return "invalid_path"
	case Missing:
		return "missing"
	default:
		return "unknown"
	}
}

// ConfigError names the offending plugin argument.
type ConfigError struct {
	Reason  Reason
	Entry   string
	Message string
	Err     error
}

// Error implements error interface
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid plugin argument %q (%s): %s: %v", e.Entry, e.Reason, e.Message, e.Err)
	}
	return fmt.Sprintf("invalid plugin argument %q (%s): %s", e.Entry, e.Reason, e.Message)
}

// Unwrap implements error unwrapping
func (e *ConfigError) Unwrap() error {
	return e.Err
}

func newConfigError(reason Reason, entry, message string, err error) *ConfigError {
	return &ConfigError{Reason: reason, Entry: entry, Message: message, Err: err}
}
