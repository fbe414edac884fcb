package utils

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"
	pkgerrors "github.com/pkg/errors"

	"storefront/logger"
)

// Kind classifies an HTTPError.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindUnauthorized
	KindConflict
	KindValidation
	KindUpstream
)

var kindStatus = map[Kind]int{
	KindInternal:     http.StatusInternalServerError,
	KindNotFound:     http.StatusNotFound,
	KindUnauthorized: http.StatusUnauthorized,
	KindConflict:     http.StatusConflict,
	KindValidation:   http.StatusBadRequest,
	KindUpstream:     http.StatusInternalServerError,
}

// HTTPError is an error that knows the status it should be reported with.
type HTTPError struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *HTTPError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *HTTPError) Unwrap() error { return e.cause }

func (e *HTTPError) Status() int { return kindStatus[e.Kind] }

func newError(kind Kind, msg string, cause error) error {
	return pkgerrors.WithStack(&HTTPError{Kind: kind, Message: msg, cause: cause})
}

func NotFound(msg string) error     { return newError(KindNotFound, msg, nil) }
func Unauthorized(msg string) error { return newError(KindUnauthorized, msg, nil) }
func Conflict(msg string) error     { return newError(KindConflict, msg, nil) }
func Validation(msg string) error   { return newError(KindValidation, msg, nil) }

// Upstream wraps a payment-provider failure.
func Upstream(msg string, cause error) error { return newError(KindUpstream, msg, cause) }

// Internal wraps an unexpected failure; the cause is logged, never shown.
func Internal(msg string, cause error) error { return newError(KindInternal, msg, cause) }

// ErrorResponder formats handler errors as {message, stack?}.
type ErrorResponder struct {
	// ShowStack adds the captured stack trace to responses (non-production only).
	ShowStack bool
	// Log receives 5xx failures. A nil Log writes to stderr.
	Log *logger.Logger
}

var stderrLog = logger.NewLogger()

func (er ErrorResponder) logger() *logger.Logger {
	if er.Log != nil {
		return er.Log
	}
	return stderrLog
}

func (er ErrorResponder) Write(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "Internal server error"

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		status = httpErr.Status()
		message = httpErr.Message
	}
	if status >= http.StatusInternalServerError {
		er.logger().Error("request failed", "status", status, "err", err)
	}

	body := M{"message": message}
	if er.ShowStack {
		body["stack"] = fmt.Sprintf("%+v", err)
	}
	RespondWithJSON(w, status, body)
}

// NotFoundHandler answers unknown routes.
func (er ErrorResponder) NotFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		er.Write(w, NotFound("Not Found - "+r.URL.Path))
	})
}

// HandlerFunc is an httprouter handler that reports failures by returning them.
type HandlerFunc func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) error

// Handle adapts h to httprouter, writing any returned error.
func (er ErrorResponder) Handle(h HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if err := h(w, r, ps); err != nil {
			er.Write(w, err)
		}
	}
}
