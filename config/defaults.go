package config

import "time"

// Default runtime limits and guardrails for the sheetforge server.
// These values are conservative and can be overridden by future configuration
// mechanisms (env, CLI, or files). They are referenced by internal/runtime.

const (
	// Concurrency
	DefaultMaxConcurrentRequests = 10
	DefaultMaxOpenSessions       = 4

	// Payload and row limits
	DefaultMaxCellsPerOp = 10_000
	DefaultReadPageRows  = 200
)

const (
	// Timeouts
	DefaultOperationTimeout      = 30 * time.Second
	DefaultAcquireRequestTimeout = 2 * time.Second
)

// Sheet geometry bounds of the xlsx container format.
const (
	MaxRows    = 1_048_576
	MaxColumns = 16_384
)

// TempFilePrefix names temporary files written next to the target during an
// atomic save. Orphans left by a crash are recognizable by this prefix.
const TempFilePrefix = ".sheetforge-"
