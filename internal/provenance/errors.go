package provenance

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPhaseOrder is returned when a phase would break Open → Close → Correlate → Seal.
	ErrPhaseOrder = errors.New("provenance phase out of order")

	// ErrTraceNotFound means no XALT record matched the job, so the performance
	// record cannot be correlated and the document is left unsigned.
	ErrTraceNotFound = errors.New("no execution trace found for job")
)

// ToolInvocationError reports a failed provenance tool run.
type ToolInvocationError struct {
	Phase    Phase
	Command  string // redacted
	ExitCode int
	Output   string
	Err      error
}

// Error implements error interface
func (e *ToolInvocationError) Error() string {
	msg := fmt.Sprintf("%s phase failed (exit %d): %v", e.Phase, e.ExitCode, e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + lastLine(out)
	}
	return msg
}

// Unwrap implements error unwrapping
func (e *ToolInvocationError) Unwrap() error {
	return e.Err
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
