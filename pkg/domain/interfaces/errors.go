package interfaces

import (
	"errors"

	"github.com/m-mizutani/goerr/v2"
)

var (
	// ErrNotFound is returned by repositories when the requested item does not exist
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a uniqueness constraint (content hash, alert dedup key) rejects a write
	ErrDuplicate = errors.New("duplicate")

	// ErrCapability marks a transient failure of a model capability (classifier, embedder, ...).
	// Wrap a transport error with ErrCapability.Wrap(err) to keep its cause.
	ErrCapability = goerr.New("capability failure", goerr.ID("capability_failure"))

	// ErrInvalidOutput marks a capability answer that cannot be used. It is not retried.
	ErrInvalidOutput = errors.New("invalid capability output")
)
