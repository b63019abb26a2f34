package errors

import (
	"context"
	"errors"
	"net/http"

	"gorm.io/gorm"
)

// Status converts repo/infra errors into an HTTP status code. Keeps the
// service layer clean by centralizing error mapping.
//
// A store timeout surfaces as 503 "temporarily unavailable", distinct
// from the in-band "no candidate" outcome.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable

	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout

	default:
		return http.StatusInternalServerError
	}
}

// Message returns the user-facing error string for a mapped status.
func Message(err error) string {
	switch Status(err) {
	case http.StatusNotFound:
		return "record not found"
	case http.StatusServiceUnavailable:
		return "temporarily unavailable"
	case http.StatusRequestTimeout:
		return "request was canceled"
	default:
		return err.Error()
	}
}
