package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeTimeout is used when a report query outlives its request
	ErrCodeTimeout = "ERR_TIMEOUT"
)

// Validation error codes
const (
	ErrCodeValidation      = "ERR_VALIDATION"
	ErrCodeValidationRange = "ERR_VALIDATION_RANGE"
	ErrCodeBadRequest      = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput    = "ERR_INVALID_INPUT"
)

// Authentication error codes
const (
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
)

// Resource error codes
const (
	ErrCodeNotFound      = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	ErrCodeConflict      = "ERR_CONFLICT"
)

// Pricing error codes
const (
	// ErrCodeInvalidRange is used when a date range ends before it starts
	ErrCodeInvalidRange = "ERR_INVALID_RANGE"
	// ErrCodeInvalidState is used for operations on deprecated ledger rows
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeVentureCycle is used when a move would create a cycle
	ErrCodeVentureCycle = "ERR_VENTURE_CYCLE"
	// ErrCodeDanglingParent is used when a venture parent does not exist
	ErrCodeDanglingParent = "ERR_VENTURE_DANGLING_PARENT"
	// ErrCodeAlreadyCollected is used when a usage day is being collected
	ErrCodeAlreadyCollected = "ERR_ALREADY_COLLECTED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,
	ErrCodeTimeout:  http.StatusGatewayTimeout,

	// Input errors -> 400 Bad Request
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeValidationRange: http.StatusBadRequest,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidInput:    http.StatusBadRequest,
	ErrCodeInvalidRange:    http.StatusBadRequest,

	// Authentication errors -> 401 Unauthorized
	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeTokenExpired: http.StatusUnauthorized,

	// Resource errors
	ErrCodeNotFound:         http.StatusNotFound,
	ErrCodeAlreadyExists:    http.StatusConflict,
	ErrCodeConflict:         http.StatusConflict,
	ErrCodeAlreadyCollected: http.StatusConflict,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodeInvalidState:   http.StatusUnprocessableEntity,
	ErrCodeVentureCycle:   http.StatusUnprocessableEntity,
	ErrCodeDanglingParent: http.StatusUnprocessableEntity,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// domainErrorCodes maps domain error codes to API error codes
var domainErrorCodes = map[string]string{
	"NOT_FOUND":               ErrCodeNotFound,
	"ALREADY_EXISTS":          ErrCodeAlreadyExists,
	"INVALID_INPUT":           ErrCodeInvalidInput,
	"INVALID_STATE":           ErrCodeInvalidState,
	"ALREADY_DEPRECATED":      ErrCodeInvalidState,
	"INVALID_DATE_RANGE":      ErrCodeInvalidRange,
	"NEGATIVE_PRICE":          ErrCodeValidationRange,
	"NEGATIVE_USAGE":          ErrCodeValidationRange,
	"VENTURE_CYCLE":           ErrCodeVentureCycle,
	"VENTURE_DANGLING_PARENT": ErrCodeDanglingParent,
	"ALREADY_COLLECTED":       ErrCodeAlreadyCollected,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Unknown domain codes are reported as invalid input.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := domainErrorCodes[code]; ok {
		return apiCode
	}
	if _, ok := ErrorCodeHTTPStatus[code]; ok {
		return code
	}
	return ErrCodeInvalidInput
}
