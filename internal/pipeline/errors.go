package pipeline

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidRegistration is wrapped by Register when a Definition does not
	// satisfy the pipeline contract.
	ErrInvalidRegistration = errors.New("invalid pipeline registration")

	// ErrDuplicatePipeline is wrapped by Register when the name is taken.
	ErrDuplicatePipeline = errors.New("pipeline already registered")
)

// ConfigurationError reports required configuration keys missing at construction.
type ConfigurationError struct {
	Pipeline string
	Missing  []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("pipeline %s: missing required configuration: %s",
		e.Pipeline, strings.Join(e.Missing, ", "))
}

// ValueError reports a configuration value of the wrong type.
type ValueError struct {
	Key   string
	Value any
	Want  string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("configuration %q: %v is not a valid %s", e.Key, e.Value, e.Want)
}

// Phase names a lifecycle step.
type Phase string

const (
	PhaseSetup   Phase = "setup"
	PhaseExecute Phase = "execute"
	PhaseCleanup Phase = "cleanup"
)

// ExecutionError wraps a failure raised during a run. It unwraps to the
// pipeline's original error.
type ExecutionError struct {
	Pipeline string
	RunID    string
	Phase    Phase
	Err      error
}

func newExecutionError(p Pipeline, runID string, phase Phase, err error) *ExecutionError {
	return &ExecutionError{
		Pipeline: p.Name(),
		RunID:    runID,
		Phase:    phase,
		Err:      errors.WithStack(err),
	}
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("pipeline %s failed during %s: %v", e.Pipeline, e.Phase, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Format prints the stack trace captured at the failure with %+v.
func (e *ExecutionError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			_, _ = fmt.Fprintf(s, "pipeline %s (run %s) failed during %s: %+v", e.Pipeline, e.RunID, e.Phase, e.Err)
			return
		}
		fallthrough
	case 's':
		_, _ = io.WriteString(s, e.Error())
	case 'q':
		_, _ = fmt.Fprintf(s, "%q", e.Error())
	}
}
