package errutil

import (
	"errors"
	"fmt"
)

type Detail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type BaseError struct {
	Code    CoreStatus `json:"code"`
	Message string     `json:"message"`
	Details []Detail   `json:"details,omitempty"`
	Err     error      `json:"-"`
}

// JSON is the response body. The wrapped cause stays server-side.
func (e BaseError) JSON() any {
	body := map[string]any{
		"error": e.Message,
		"code":  e.Code,
	}
	if len(e.Details) > 0 {
		body["details"] = e.Details
	}
	return body
}

func (e BaseError) Unwrap() error {
	return e.Err
}

func (e BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

type Option func(*BaseError)

func WithDetails(details ...Detail) Option {
	return func(be *BaseError) { be.Details = details }
}

func WithErr(err error) Option {
	return func(be *BaseError) { be.Err = err }
}

func New(code CoreStatus, message string, opts ...Option) error {
	be := BaseError{Code: code, Message: message}
	for _, opt := range opts {
		opt(&be)
	}
	return be
}

func newWithErr(code CoreStatus, msg string, err error, options []Option) error {
	if err != nil {
		options = append([]Option{WithErr(err)}, options...)
	}
	return New(code, msg, options...)
}

// As extracts a BaseError from anywhere in err's chain.
func As(err error) (BaseError, bool) {
	var be BaseError
	if errors.As(err, &be) {
		return be, true
	}
	return BaseError{}, false
}

// CodeOf returns the status carried by err, or StatusInternal.
func CodeOf(err error) CoreStatus {
	if be, ok := As(err); ok {
		return be.Code
	}
	return StatusInternal
}

func IsNotFound(err error) bool {
	return err != nil && CodeOf(err) == StatusNotFound
}

func NotFound(msg string, err error, options ...Option) error {
	return newWithErr(StatusNotFound, msg, err, options)
}

func Conflict(msg string, err error, options ...Option) error {
	return newWithErr(StatusConflict, msg, err, options)
}

func BadRequest(msg string, err error, options ...Option) error {
	return newWithErr(StatusBadRequest, msg, err, options)
}

func Internal(msg string, err error, options ...Option) error {
	return newWithErr(StatusInternal, msg, err, options)
}

func Unavailable(msg string, err error, options ...Option) error {
	return newWithErr(StatusUnavailable, msg, err, options)
}

