package usecase

import "errors"

// Sentinel errors for use case layer
var (
	// Validation errors
	ErrEmptyContent = errors.New("empty content")

	// Not found errors
	ErrRecordNotFound = errors.New("record not found")
	ErrNoEmbedding    = errors.New("record has no embedding")

	// Configuration errors
	ErrClassifierNotConfigured = errors.New("classifier is not configured")
)

// Context keys for error values
const (
	RecordIDKey = "record_id"
	SourceKey   = "source"
)
