package cli

// Error codes for structured error responses.
// These codes are stable and can be relied upon by callers.
const (
	// Store errors
	ErrStoreNotFound = "STORE_NOT_FOUND"
	ErrStoreOpen     = "STORE_OPEN_FAILED"
	ErrConfigInvalid = "CONFIG_INVALID"
	ErrDatabaseError = "DATABASE_ERROR"

	// Pattern and path errors
	ErrPatternSyntax  = "PATTERN_SYNTAX"
	ErrUnresolvedPath = "UNRESOLVED_PATH"
	ErrTypeMismatch   = "OPERATOR_TYPE_MISMATCH"

	// View errors
	ErrViewNotFound = "VIEW_NOT_FOUND"
	ErrNameConflict = "NAME_CONFLICT"

	// Ingest errors
	ErrBundleInvalid  = "BUNDLE_INVALID"
	ErrSchemaConflict = "SCHEMA_CONFLICT"
	ErrIdentity       = "IDENTITY_AMBIGUOUS"

	// Input errors
	ErrInvalidInput = "INVALID_INPUT"
	ErrFileRead     = "FILE_READ_ERROR"
)
