// Package constants provides shared constants used across the codebase.
package constants

// Upload constants
const (
	// MaxUploadSize is the largest request body accepted by the orient endpoint
	MaxUploadSize = 100 << 20
)

// Face matching constants
const (
	// IoUThreshold is the minimum Intersection over Union required to pair
	// a remote detection with a requested face box
	IoUThreshold = 0.1
)

// Processing constants
const (
	// DefaultConcurrency is the default number of parallel workers for batch commands
	DefaultConcurrency = 4

	// FixedSuffix is appended to the base name of corrected copies
	FixedSuffix = "_fixed"
)
