package core

import (
	"errors"
	"fmt"
)

var (
	ErrMissingURL       = errors.New("url parameter is missing")
	ErrTooManyRedirects = errors.New("too many redirects")
	ErrEmptyResponse    = errors.New("response is empty")
)

// StatusError reports a terminal response outside the 2xx range.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("response code %d", e.Code)
}

// ContentTypeError reports a terminal response that is not text/html.
type ContentTypeError struct {
	ContentType string
}

func (e *ContentTypeError) Error() string {
	return fmt.Sprintf("unsupported content type: %s", e.ContentType)
}

// DecodeError reports a body that could not be decoded with Charset.
type DecodeError struct {
	Charset string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding with charset: %s", e.Charset)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
