package api

import "net/http"

// ApiError is the JSON error body returned by every failing endpoint.
type ApiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ApiError) Error() string {
	return e.Message
}

func NewBadRequestError(msg string) *ApiError {
	return &ApiError{Code: http.StatusBadRequest, Message: msg}
}

func NewUnauthorizedError(msg string) *ApiError {
	return &ApiError{Code: http.StatusUnauthorized, Message: msg}
}

func NewInternalServerError(msg string) *ApiError {
	return &ApiError{Code: http.StatusInternalServerError, Message: msg}
}
