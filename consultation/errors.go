package consultation

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the repository and orchestrator. None of these
// are fatal: handlers map them to 4xx responses and move on.
var (
	// ErrRoomNotFound means no room exists for the given (caseId, ownerId) key.
	// An update matching zero documents reports the same error.
	ErrRoomNotFound = errors.New("case room not found")

	// ErrEmptyMessage rejects whitespace-only message content before any write
	ErrEmptyMessage = errors.New("message content is empty")

	// ErrMissingFields rejects room creation without a description or creator
	ErrMissingFields = errors.New("case description and creator name are required")

	// ErrInvalidStage rejects a workflow call fired from the wrong stage
	ErrInvalidStage = errors.New("operation not valid for the room's consultation stage")

	// ErrOpinionsComplete rejects a specialist advance once all three automatic
	// opinions have been recorded
	ErrOpinionsComplete = errors.New("all specialist opinions have been recorded")

	// ErrNoOpinions rejects summary generation before any opinion exists
	ErrNoOpinions = errors.New("no specialist opinions recorded yet")
)

// GenerationError wraps a failure from the external response generator. The
// orchestrator treats every such failure as recoverable: the error text is
// substituted as the opinion and the workflow continues.
type GenerationError struct {
	Op    string
	Cause error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation %s error: %v", e.Op, e.Cause)
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}
