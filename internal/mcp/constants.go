package mcp

import "time"

// Common error messages and descriptions used across MCP tools.
const (
	// Tool parameter descriptions
	descWaitMs    = "How long to wait for output in milliseconds (default: 500, max: 30000)"
	descTimeoutMs = "Command timeout in milliseconds (default: the configured runner timeout)"

	// Common error messages
	errCommandRequired = "command is required"
	errInputRequired   = "input is required"
	errDirStat         = "initial directory: %v"
	errNotDirectory    = "initial directory %s is not a directory"
	errGeometry        = "rows and cols must be between 1 and %d"
)

// Limits for shell_read.
const (
	defaultReadWait = 500 * time.Millisecond
	maxReadWait     = 30 * time.Second
	defaultMaxBytes = 64 * 1024
)
