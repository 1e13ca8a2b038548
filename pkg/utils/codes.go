package utils

import "net/http"

// ResponseCode business response code
type ResponseCode int

const (
	CodeSuccess ResponseCode = 0

	// Request errors
	CodeInvalidParam ResponseCode = 1001
	CodeValidation   ResponseCode = 1002

	// Auth errors
	CodeUnauthorized ResponseCode = 2001
	CodeForbidden    ResponseCode = 2002

	// Order errors
	CodeOrderNotFound    ResponseCode = 3001
	CodeInvalidState     ResponseCode = 3002
	CodeStockUnavailable ResponseCode = 3003

	// Product errors
	CodeProductNotFound ResponseCode = 3101

	// System errors
	CodeInternalError     ResponseCode = 5001
	CodeDependencyFailure ResponseCode = 5002
	CodeDatabaseError     ResponseCode = 5003
	CodeRateLimit         ResponseCode = 5004
)

// HTTPStatus maps a business code to the HTTP status the handler layer
// should respond with.
func (c ResponseCode) HTTPStatus() int {
	switch c {
	case CodeSuccess:
		return http.StatusOK
	case CodeInvalidParam, CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeOrderNotFound, CodeProductNotFound:
		return http.StatusNotFound
	case CodeInvalidState, CodeStockUnavailable:
		return http.StatusConflict
	case CodeRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
