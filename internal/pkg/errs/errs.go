/*
Package errs provides the application error type and error code constants.

CustomError implements the error interface and carries a business code, a
user-facing message, and the HTTP status used when the error reaches the REST
boundary. Real-time handlers use the same codes but report them to the single
failing caller only.
*/
package errs

import (
	"fmt"
	"net/http"
	"strings"

	"pulsechat/internal/pkg/logx"
)

// CustomError is the application-wide error structure.
type CustomError struct {
	// Code is the business error code (see error_codes.go).
	Code int

	// Message is the user-facing description.
	Message string

	// Status is the HTTP status code used when responding over REST.
	Status int
}

// Error implements the error interface.
func (e CustomError) Error() string {
	return fmt.Sprintf("Error Code %d (HTTP %d): %s", e.Code, e.Status, e.Message)
}

// NewError builds a *CustomError from a predefined code. Optional details are
// applied printf-style when the message template has placeholders. Unknown
// codes degrade to ErrUnknown.
func NewError(code int, details ...any) *CustomError {
	templateErr, ok := errorMap[code]

	if !ok {
		logx.Error(
			fmt.Errorf("unknown error code %d requested", code),
			"Unknown error code requested",
			"requested_code", code,
		)

		unknownErr := errorMap[ErrUnknown]
		return &CustomError{
			Code:    unknownErr.Code,
			Message: unknownErr.Message,
			Status:  unknownErr.Status,
		}
	}

	customErr := templateErr

	if customErr.Status == 0 {
		customErr.Status = http.StatusOK
	}

	if len(details) > 0 {
		if strings.Contains(customErr.Message, "%") {
			customErr.Message = fmt.Sprintf(customErr.Message, details...)
		} else if originalErr, isErr := details[0].(error); isErr {
			logx.Error(originalErr, "Underlying error attached to CustomError", "code", code)
		}
	}

	return &customErr
}
