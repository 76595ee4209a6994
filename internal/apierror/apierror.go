package apierror

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Code string

const (
	CodeInternal        Code = "INTERNAL_SERVER_ERROR"
	CodeRateLimited     Code = "RATE_LIMIT_EXCEEDED"
	CodeInvalidConfig   Code = "USER_INVALID_CONFIG"
	CodeUserNotFound    Code = "USER_NOT_FOUND"
	CodeInvalidPassword Code = "USER_INVALID_PASSWORD"
	CodeUnauthorized    Code = "UNAUTHORIZED"
	CodeBadRequest      Code = "BAD_REQUEST"
	CodeStorageNotReady Code = "STORAGE_NOT_READY"
)

// APIError is an error that is safe to show to clients. Cause is logged but
// never rendered.
type APIError struct {
	Code    Code
	Status  int
	Message string
	Cause   error
}

func (e *APIError) Error() string {
	if e.Cause != nil {
		return string(e.Code) + ": " + e.Message + ": " + e.Cause.Error()
	}
	return string(e.Code) + ": " + e.Message
}

func (e *APIError) Unwrap() error { return e.Cause }

func New(code Code, status int, message string) *APIError {
	return &APIError{Code: code, Status: status, Message: message}
}

func Internal(cause error) *APIError {
	return &APIError{
		Code:    CodeInternal,
		Status:  http.StatusInternalServerError,
		Message: "An internal server error occurred",
		Cause:   cause,
	}
}

func RateLimited() *APIError {
	return New(CodeRateLimited, http.StatusTooManyRequests, "Too many requests, please try again later")
}

func InvalidConfig(cause error) *APIError {
	return &APIError{
		Code:    CodeInvalidConfig,
		Status:  http.StatusBadRequest,
		Message: "The provided configuration is invalid",
		Cause:   cause,
	}
}

func UserNotFound() *APIError {
	return New(CodeUserNotFound, http.StatusNotFound, "User not found")
}

func InvalidPassword() *APIError {
	return New(CodeInvalidPassword, http.StatusUnauthorized, "Invalid password")
}

func Unauthorized() *APIError {
	return New(CodeUnauthorized, http.StatusUnauthorized, "Missing or invalid token")
}

func BadRequest(message string) *APIError {
	return New(CodeBadRequest, http.StatusBadRequest, message)
}

func StorageNotReady() *APIError {
	return New(CodeStorageNotReady, http.StatusServiceUnavailable, "Storage is still starting, please retry shortly")
}

// From converts any error into an APIError, treating unknown errors as internal.
func From(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internal(err)
}

// Middleware renders the first error attached to the context. Handlers
// report failures with c.Error and return without writing a body.
func Middleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		apiErr := From(c.Errors[0].Err)
		if apiErr.Status >= http.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("path", c.FullPath()),
				zap.String("code", string(apiErr.Code)),
				zap.Error(apiErr.Cause))
		}

		c.JSON(apiErr.Status, gin.H{
			"error": gin.H{
				"code":    apiErr.Code,
				"message": apiErr.Message,
			},
		})
	}
}

// Abort attaches err and stops the handler chain.
func Abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
