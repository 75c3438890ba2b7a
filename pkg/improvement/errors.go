package improvement

import (
	"errors"
	"fmt"

	"github.com/kaizen-works/kaizen/pkg/parser"
	"github.com/kaizen-works/kaizen/pkg/persistence"
	"github.com/kaizen-works/kaizen/pkg/workflow"
)

var (
	// ErrRequestInProgress is returned when a session already awaits an improvement.
	ErrRequestInProgress = workflow.ErrRequestInProgress

	// ErrNotImproved is returned when reverting a session that shows no improvement.
	ErrNotImproved = workflow.ErrNotImproved

	// ErrTransport marks failures of the generative service, roster or store calls.
	ErrTransport = errors.New("transport failure")

	// ErrNothingToSave is returned when saving an unnamed session without steps.
	ErrNothingToSave = errors.New("nothing to save")

	// ErrVersionNotFound is returned when a workflow version cannot be loaded.
	ErrVersionNotFound = persistence.ErrVersionNotFound
)

// TransportError wraps a failed call to an external collaborator.
type TransportError struct {
	Op  string // Collaborator call, e.g. "complete", "roster", "save"
	Err error  // Underlying error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrTransport, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport || errors.Is(e.Err, target)
}

// IsTransportError checks if an error came from an external collaborator call.
func IsTransportError(err error) bool {
	return errors.Is(err, ErrTransport)
}

// IsParseError checks if an error came from parsing the generated text.
func IsParseError(err error) bool {
	return parser.IsParseError(err)
}

// failureReason classifies an error for lifecycle events and logs.
func failureReason(err error) string {
	switch {
	case IsParseError(err):
		return "parse"
	case IsTransportError(err):
		return "transport"
	default:
		return "internal"
	}
}
