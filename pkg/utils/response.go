package utils

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Response standard response structure
type Response struct {
	Code      ResponseCode `json:"code"`
	Message   string       `json:"message"`
	Data      interface{}  `json:"data,omitempty"`
	Timestamp int64        `json:"timestamp"`
}

// Success returns success response
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:      CodeSuccess,
		Message:   "success",
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

// Error returns error response, mapping the business code to an HTTP status
func Error(c *gin.Context, code ResponseCode, message string) {
	c.JSON(code.HTTPStatus(), Response{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().Unix(),
	})
}

// ErrorFrom returns an error response derived from err. Unknown errors are
// reported as internal without leaking their text.
func ErrorFrom(c *gin.Context, err error) {
	if appErr, ok := AsAppError(err); ok {
		Error(c, appErr.Code, appErr.Message)
		return
	}
	Error(c, CodeInternalError, "internal server error")
}
