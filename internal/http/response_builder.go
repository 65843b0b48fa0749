package http

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response. Encoding failures fall back to a bare 500.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	payload, err := json.Marshal(b.body)
	if err != nil {
		http.Error(w, `{"error":"internal_error"}`, http.StatusInternalServerError)
		return
	}

	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(payload, '\n'))
}

// JSON writes v with status 200.
func JSON(w http.ResponseWriter, v any) {
	NewJSONResponse().Body(v).Write(w)
}

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, code, detail string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(ErrorBody{Error: code, Detail: detail})
}

// InvalidParameterError creates a 422 response for a rejected query parameter.
func InvalidParameterError(detail string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, "invalid_parameter", detail)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(detail string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, "not_found", detail)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(detail string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, "internal_error", detail)
}

// ServiceUnavailableError creates a 503 response.
func ServiceUnavailableError(detail string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusServiceUnavailable, "unavailable", detail)
}
