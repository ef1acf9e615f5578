package kioskapi

// APIError represents a failed backend exchange
type APIError struct {
	Endpoint      string `json:"endpoint"`
	Code          string `json:"code"`
	Message       string `json:"message"`
	StatusCode    int    `json:"status_code,omitempty"`
	OriginalError error  `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Endpoint + ": " + e.Message
}

// Unwrap returns the original error
func (e *APIError) Unwrap() error {
	return e.OriginalError
}

// Common error codes
const (
	// ErrorCodeTimeout marks an exchange aborted by the client-side
	// deadline. It is the only failure the flow machine surfaces with a
	// dedicated localized message.
	ErrorCodeTimeout = "timeout"

	// ErrorCodeCanceled marks an exchange aborted by the caller (reset).
	// Treated as silent cancellation, never shown to the user.
	ErrorCodeCanceled = "canceled"

	// ErrorCodeHTTP marks a non-2xx response.
	ErrorCodeHTTP = "http_error"

	// ErrorCodeTransport marks any other network failure.
	ErrorCodeTransport = "transport_error"
)

// NewAPIError creates a new API error
func NewAPIError(endpoint, code, message string, original error) *APIError {
	return &APIError{
		Endpoint:      endpoint,
		Code:          code,
		Message:       message,
		OriginalError: original,
	}
}

// IsTimeout reports whether err is a client-side timeout.
func IsTimeout(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.Code == ErrorCodeTimeout
}

// IsCanceled reports whether err is a silent caller-side cancellation.
func IsCanceled(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.Code == ErrorCodeCanceled
}
