package apperrors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error represents an application error
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	// Details is shown to the client; Err never is.
	Details string `json:"details,omitempty"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error
func New(code int, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Wrap returns a copy of a template error carrying err as its cause.
func Wrap(template *Error, err error) *Error {
	return &Error{Code: template.Code, Message: template.Message, Err: err}
}

var (
	ErrBadRequest     = New(http.StatusBadRequest, "Invalid request", nil)
	ErrInternalServer = New(http.StatusInternalServerError, "Internal server error", nil)
	ErrBadGateway     = New(http.StatusBadGateway, "Upstream request failed", nil)
)

// InvalidRequest reports a request body that failed to bind. The binding
// error is echoed as details.
func InvalidRequest(err error) *Error {
	appErr := Wrap(ErrBadRequest, err)
	if err != nil {
		appErr.Details = err.Error()
	}
	return appErr
}

// From converts any error into an *Error, defaulting to 500.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(ErrInternalServer, err)
}

// ErrorMiddleware renders the last error attached with c.Error.
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		appErr := From(c.Errors.Last().Err)
		body := gin.H{"error": appErr.Message}
		if appErr.Details != "" {
			body["details"] = appErr.Details
		}
		c.AbortWithStatusJSON(appErr.Code, body)
	}
}

// Boundary is the last-resort handler for panics raised while building a
// response. The client gets a generic failure it can retry or leave.
func Boundary(log *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Error("unhandled error",
			zap.Any("panic", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.String("request_id", c.GetString("request_id")),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "Something went wrong!",
			"message": "An error occurred while processing your request.",
			"actions": []string{"retry", "home"},
		})
	})
}
