// Copyright 2015-2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"fmt"
	"net/http"
	"runtime"
)

// ErrorStatus describes errors that correspond to specific HTTP status
// codes.
type ErrorStatus interface {
	// HTTPStatus returns the HTTP status code for this error.
	HTTPStatus() int
}

// ErrorCode is the error_code of a failed response.
type ErrorCode int

const (
	// UnknownError covers anything without a more specific code.
	UnknownError ErrorCode = -1

	// NoFilesFound means an import directory held no images.
	NoFilesFound ErrorCode = 1

	// Conflict means an update raced with another update.
	Conflict ErrorCode = 2

	// AttributeValidationFailure means a payload field was
	// invalid.
	AttributeValidationFailure ErrorCode = 3

	// NotImplemented means the resource does not support the
	// request.
	NotImplemented ErrorCode = 4

	// BadRequest means the request was malformed.
	BadRequest ErrorCode = 5
)

// HTTPStatus returns the HTTP status code for an error code.  Unknown
// codes map to 500 Internal Server Error.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case NoFilesFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case AttributeValidationFailure:
		return http.StatusNotFound
	case NotImplemented:
		return http.StatusNotFound
	case BadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (c ErrorCode) String() string {
	switch c {
	case UnknownError:
		return "UNKNOWN_ERROR"
	case NoFilesFound:
		return "NO_FILES_FOUND"
	case Conflict:
		return "CONFLICT"
	case AttributeValidationFailure:
		return "ATTRIBUTE_VALIDATION_FAILURE"
	case NotImplemented:
		return "NOT_IMPLEMENTED"
	case BadRequest:
		return "BAD_REQUEST"
	default:
		return fmt.Sprintf("ErrorCode(%d)", int(c))
	}
}

// APIError is an error that carries an API error code.
type APIError struct {
	Code    ErrorCode
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return e.Code.String()
	}
	return e.Message
}

// HTTPStatus returns the status code for e.Code.
func (e APIError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// ErrBadRequest creates a BAD_REQUEST error.
func ErrBadRequest(format string, args ...interface{}) APIError {
	return APIError{Code: BadRequest, Message: fmt.Sprintf(format, args...)}
}

// ErrNotImplemented is the error for unsupported requests.
var ErrNotImplemented = APIError{Code: NotImplemented, Message: "Not implemented"}

// ErrUnsupportedMediaType is returned from Decode() if the provided
// Content-Type: is unrecognized.  This translates directly into the
// equivalent HTTP 415 error.
type ErrUnsupportedMediaType struct {
	Type string
}

func (e ErrUnsupportedMediaType) Error() string {
	return fmt.Sprintf("Unsupported media type %q", e.Type)
}

// HTTPStatus returns a fixed 415 Unsupported Media Type error code.
func (e ErrUnsupportedMediaType) HTTPStatus() int {
	return http.StatusUnsupportedMediaType
}

// HTTPResponseStatusCode derives the HTTP status of a response
// envelope.  Successful responses are 200 OK; failures map through
// their error code.
func HTTPResponseStatusCode(resp Response) int {
	if resp.Status == 0 {
		return http.StatusOK
	}
	return resp.ErrorCode.HTTPStatus()
}

// PanicMessage formats a recovered panic value, with a stack trace,
// for an UNKNOWN_ERROR response.  Typical use is:
//
//     defer func() {
//         if obj := recover(); obj != nil {
//             resp := restdata.ErrorEnvelope(restdata.APIError{
//                 Code: restdata.UnknownError,
//                 Message: restdata.PanicMessage(obj),
//             })
//             // write resp out as makes sense
//         }
//    }
func PanicMessage(obj interface{}) string {
	var message string
	if recoveredError, isError := obj.(error); isError {
		message = recoveredError.Error()
	} else {
		message = fmt.Sprintf("%+v", obj)
	}
	var stack [4096]byte
	len := runtime.Stack(stack[:], false)
	return message + "\n" + string(stack[:len])
}
