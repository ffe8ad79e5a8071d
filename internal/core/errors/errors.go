package errors

const (
	HttpInternalError       = "internal_error"
	HttpInvalidRequestError = "invalid_request"
	HttpInvalidTimeStep     = "invalid_time_step"
	HttpNotFoundError       = "not_found"
	HttpDataSourceError     = "data_source_unavailable"
)

// ErrorResponse is the error response body of every API route.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
