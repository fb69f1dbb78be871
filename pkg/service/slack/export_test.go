package slack

// Export internal functions for testing
var (
	BuildAlertBlocks   = buildAlertBlocks
	TruncateToMaxBytes = truncateToMaxBytes
)
