// Package errors provides structured error handling for codesync.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (file, disk)
//   - 3XX: Remote store errors
//   - 4XX: External tooling errors (version control)
//   - 5XX: Validation errors
//   - 6XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and disk I/O errors.
	CategoryIO Category = "IO"
	// CategoryRemote indicates failures talking to the remote store.
	CategoryRemote Category = "REMOTE"
	// CategoryTooling indicates a missing or failing external tool.
	CategoryTooling Category = "TOOLING"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
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
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound   = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    = "ERR_102_CONFIG_INVALID"
	ErrCodeConfigPermission = "ERR_103_CONFIG_PERMISSION"

	// IO errors (200-299)
	ErrCodeFileNotFound   = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFilePermission = "ERR_202_FILE_PERMISSION"
	ErrCodeFileTooLarge   = "ERR_203_FILE_TOO_LARGE"
	ErrCodeFileGone       = "ERR_204_FILE_GONE"
	ErrCodeLockHeld       = "ERR_205_LOCK_HELD"
	ErrCodePrefsCorrupt   = "ERR_206_PREFS_CORRUPT"

	// Remote errors (300-399)
	ErrCodeNetworkTimeout     = "ERR_301_NETWORK_TIMEOUT"
	ErrCodeNetworkUnavailable = "ERR_302_NETWORK_UNAVAILABLE"
	ErrCodeRemoteStatus       = "ERR_303_REMOTE_STATUS"
	ErrCodeRemoteDecode       = "ERR_304_REMOTE_DECODE"
	ErrCodeRemoteTripped      = "ERR_305_REMOTE_TRIPPED"

	// Tooling errors (400-499)
	ErrCodeVCSUnavailable = "ERR_401_VCS_UNAVAILABLE"
	ErrCodeVCSFailed      = "ERR_402_VCS_FAILED"

	// Validation errors (500-599)
	ErrCodeInvalidInput = "ERR_501_INVALID_INPUT"
	ErrCodeInvalidPath  = "ERR_502_INVALID_PATH"

	// Internal errors (600-699)
	ErrCodeInternal        = "ERR_601_INTERNAL"
	ErrCodeCancelled       = "ERR_602_CANCELLED"
	ErrCodePreflightFailed = "ERR_603_PREFLIGHT_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "101" from "ERR_101_CONFIG_NOT_FOUND")
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryRemote
	case '4':
		return CategoryTooling
	case '5':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodePrefsCorrupt:
		return SeverityFatal
	case ErrCodeVCSUnavailable, ErrCodeVCSFailed, ErrCodeFileGone:
		// Degrade to an empty ignore set or skip the file.
		return SeverityWarning
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeNetworkTimeout, ErrCodeNetworkUnavailable, ErrCodeRemoteStatus:
		return true
	default:
		return false
	}
}
