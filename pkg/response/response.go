package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/campusops/timetable-api/pkg/errors"
)

// OutputSuccess is the envelope marker consumed by callers on the happy path.
// Any other value of "output" is the uniform failure signal.
const OutputSuccess = "Success"

// Envelope is the wire contract shared with the admin front-end:
// {"output": "Success"|<error code>, "data": ..., "error_message": ...}.
type Envelope struct {
	Output       string      `json:"output"`
	Data         interface{} `json:"data,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
}

// JSON sends a success envelope.
func JSON(c *gin.Context, status int, data interface{}) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(status, Envelope{Output: OutputSuccess, Data: data})
}

// OK responds with HTTP 200 OK.
func OK(c *gin.Context, data interface{}) {
	JSON(c, http.StatusOK, data)
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data)
}

// Error sends a failure envelope; the error code becomes the output marker.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(appErr.Status, Envelope{Output: appErr.Code, ErrorMessage: appErr.Message})
}

// ErrorWithData sends a failure envelope carrying structured detail, such as
// the full list of validation violations.
func ErrorWithData(c *gin.Context, err error, data interface{}) {
	appErr := appErrors.FromError(err)
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(appErr.Status, Envelope{Output: appErr.Code, Data: data, ErrorMessage: appErr.Message})
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
