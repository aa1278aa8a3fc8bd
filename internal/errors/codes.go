// Package errors provides structured error handling for valkey-search.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 3XX: Network and connection errors
//   - 4XX: Validation errors
//   - 5XX: Index and engine errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryNetwork indicates connection and transport errors.
	CategoryNetwork Category = "NETWORK"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryEngine indicates failures reported by the search engine.
	CategoryEngine Category = "ENGINE"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Network errors (300-399)
	ErrCodeConnectionFailed = "ERR_301_CONNECTION_FAILED"
	ErrCodeNetworkTimeout   = "ERR_302_NETWORK_TIMEOUT"
	ErrCodeCircuitOpen      = "ERR_303_CIRCUIT_OPEN"

	// Validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeDimensionMismatch = "ERR_402_DIMENSION_MISMATCH"
	ErrCodeInvalidPath       = "ERR_403_INVALID_PATH"

	// Engine errors (500-599)
	ErrCodeIndexCreate     = "ERR_501_INDEX_CREATE"
	ErrCodeIndexNotFound   = "ERR_502_INDEX_NOT_FOUND"
	ErrCodeCommandFailed   = "ERR_503_COMMAND_FAILED"
	ErrCodeMalformedReply  = "ERR_504_MALFORMED_REPLY"
	ErrCodeNotInitialized  = "ERR_505_NOT_INITIALIZED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryEngine
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryValidation
	default:
		return CategoryEngine
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeConfigInvalid:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeConnectionFailed, ErrCodeNetworkTimeout, ErrCodeCircuitOpen:
		return true
	default:
		return false
	}
}
