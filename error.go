// Copyright 2017 Tamás Demeter-Haludka
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package restless

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"strings"

	"github.com/restlesskit/restless/util"
)

type VerboseError interface {
	// Error that is displayed in the logs and debug messages. Should contain diagnostical information.
	Error() string
	// Error that is displayed to the end user.
	VerboseError() string
}

var _ VerboseError = errorWrapper{}

type errorWrapper struct {
	error
	verboseMessage string
}

func (ew errorWrapper) VerboseError() string {
	return ew.verboseMessage
}

func WrapError(err error, verboseMessage string) VerboseError {
	return errorWrapper{
		error:          err,
		verboseMessage: verboseMessage,
	}
}

// Creates a new verbose error message.
//
// If err is an empty string, then verboseMessage will be used instead.
func NewVerboseError(err, verboseMessage string) VerboseError {
	if err == "" {
		err = verboseMessage
	}

	return WrapError(errors.New(err), verboseMessage)
}

// The JSON document that every error response renders to.
type ErrorDocument struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

var _ VerboseError = &Error{}

// Error is a request handling error with an HTTP status code.
//
// Reason is the user-facing message that ends up in the "error" key of the
// response document. Details, when set, is rendered under the "details"
// key. Err is the underlying diagnostic error; it is logged but never sent
// to the client.
type Error struct {
	Code    int
	Reason  string
	Details interface{}
	Header  http.Header
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Reason
}

func (e *Error) VerboseError() string {
	return e.Reason
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Sets the underlying diagnostic error.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

// Adds a header to the error response.
func (e *Error) SetHeader(name, value string) *Error {
	if e.Header == nil {
		e.Header = make(http.Header)
	}
	e.Header.Set(name, value)
	return e
}

func NewError(code int, reason string) *Error {
	if reason == "" {
		reason = http.StatusText(code)
	}
	return &Error{
		Code:   code,
		Reason: reason,
	}
}

// A lookup failure. The reason deliberately carries no detail about what
// exactly was not found.
func NotFound() *Error {
	return NewError(http.StatusNotFound, "resource not found")
}

func BadRequest(reason string) *Error {
	return NewError(http.StatusBadRequest, reason)
}

func Forbidden(reason string) *Error {
	return NewError(http.StatusForbidden, reason)
}

// An authentication failure. If challenge is not empty, it is sent in the
// WWW-Authenticate header.
func Unauthorized(challenge string) *Error {
	e := NewError(http.StatusUnauthorized, "unauthorized")
	if challenge != "" {
		e.SetHeader("WWW-Authenticate", challenge)
	}
	return e
}

func MethodNotAllowed(allowed ...string) *Error {
	e := NewError(http.StatusMethodNotAllowed, "method not allowed")
	if len(allowed) > 0 {
		e.SetHeader("Allow", strings.Join(allowed, ", "))
	}
	return e
}

// A form validation failure. Details enumerates every invalid field with
// its messages, not just the first one.
func Validation(fields map[string][]string) *Error {
	e := NewError(http.StatusBadRequest, "invalid data")
	e.Details = fields
	return e
}

// The error the serializer returns when a serialization spec recurses past
// its maximum depth. See Options.MaxDepth.
type SerializationDepthError struct {
	Depth int
}

func (e *SerializationDepthError) Error() string {
	return "serialization exceeded maximum depth " + strconv.Itoa(e.Depth)
}

// Renders err to the request's Renderer as a JSON error document.
//
// Taxonomy errors (*Error, *SerializationDepthError) render with their own
// status code. Everything else escalates to the recovery middleware as an
// internal error.
func RenderError(r *http.Request, err error) {
	var re *Error
	if errors.As(err, &re) {
		rd := Render(r).SetCode(re.Code)
		for name, values := range re.Header {
			for _, value := range values {
				rd.AddHeader(name, value)
			}
		}
		rd.JSON(ErrorDocument{Error: re.Reason, Details: re.Details})
		if re.Err != nil {
			LogVerbose(r).Println(re.Err)
		}
		return
	}

	var de *SerializationDepthError
	if errors.As(err, &de) {
		Render(r).
			SetCode(http.StatusInternalServerError).
			JSON(ErrorDocument{Error: "serialization depth exceeded"})
		LogVerbose(r).Println(err)
		return
	}

	Fail(r, http.StatusInternalServerError, err)
}

var _ VerboseError = Panic{}

// Custom panic data structure for the error handler middleware.
type Panic struct {
	Code          int
	Err           error
	StackTrace    string
	displayErrors bool
}

func (p Panic) Error() string {
	return p.Err.Error()
}

func (p Panic) String() string {
	return p.Err.Error()
}

func (p Panic) VerboseError() string {
	if ve, ok := p.Err.(VerboseError); ok {
		return ve.VerboseError()
	}

	return ""
}

// Outputs the error to the HTTP response as a JSON error document.
//
// The panic unwound past the renderer middleware, so a fresh Renderer is
// used here instead of the one in the request context.
func (p Panic) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rd := NewRenderer().SetCode(p.Code)

	message := http.StatusText(p.Code)
	if p.displayErrors && p.Err != nil {
		message = p.Error()
	} else if ve := p.VerboseError(); ve != "" {
		message = ve
	}

	doc := ErrorDocument{Error: message}
	if p.displayErrors {
		doc.Details = map[string]string{
			"trace": p.StackTrace,
			"logs":  util.StripTerminalColorCodes(RequestLogs(r)),
		}
	}

	if p.Err != nil {
		LogVerbose(r).Println(p.Err)
		LogTrace(r).Println(p.StackTrace)
	}

	rd.JSON(doc)
	rd.Render(w)
}

// Error handler middleware. Recovers panics in the rest of the chain and
// renders them as JSON error documents.
//
// When displayErrors is set, the diagnostic message, the stack trace and
// the buffered request logs are included in the response. This is for
// development environments only.
func ErrorHandlerMiddleware(displayErrors bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}

				stackTrace := make([]byte, 8192)
				runtime.Stack(stackTrace, false)

				p, ok := rec.(Panic)
				if !ok {
					err, ok := rec.(error)
					if !ok {
						err = errors.New(fmt.Sprint(rec))
					}
					p = Panic{
						Code: http.StatusInternalServerError,
						Err:  err,
					}
				}

				p.displayErrors = displayErrors
				p.StackTrace = strings.TrimRight(string(stackTrace), "\x00")

				p.ServeHTTP(w, r)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// Stops the request with the given status code by panicing. The panic is
// caught by the error handler middleware.
func Fail(r *http.Request, code int, err error) {
	panic(Panic{
		Code: code,
		Err:  err,
	})
}

// Calls Fail() if err is not nil and not any of excludedErrors.
func MaybeFail(r *http.Request, code int, err error, excludedErrors ...error) {
	if err == nil {
		return
	}

	for _, e := range excludedErrors {
		if errors.Is(err, e) {
			return
		}
	}

	Fail(r, code, err)
}
