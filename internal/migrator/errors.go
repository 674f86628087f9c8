package migrator

import "github.com/camunda-community-hub/c7-data-migrator/internal/errors"

var (
	// ErrSourceEntityNotFound indicates the requested legacy entity no
	// longer exists in the source database.
	ErrSourceEntityNotFound = errors.NewStd("source entity not found")

	// ErrRunAborted indicates the run stopped before the source set was
	// exhausted; already-flushed batches remain committed.
	ErrRunAborted = errors.NewStd("migration run aborted")
)
