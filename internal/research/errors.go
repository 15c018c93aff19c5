package research

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyQuery       = errors.New("query is empty")
	ErrSchemaValidation = errors.New("subtask list failed schema validation")
	ErrNoWorker         = errors.New("pool has no worker")
	ErrDuplicateSubtask = errors.New("duplicate subtask id")
)

// StageError is a fatal run error labelled with the stage it came from.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// StageOf returns the stage of a fatal run error, or "" when err did not come
// from a stage.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
