package config

import (
	"errors"
	"strconv"
)

var (
	ErrNotFound    = errors.New("manifest not found")
	ErrMalformed   = errors.New("malformed manifest")
	ErrMissingKey  = errors.New("missing key")
	ErrInvalidType = errors.New("invalid type")
)

// Error reports a manifest or settings problem. Kind is one of the Err* sentinels
// and matches with errors.Is.
type Error struct {
	Kind error
	Path string
	Key  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Key != "" {
		msg += " " + strconv.Quote(e.Key)
	}
	if e.Path != "" {
		msg = e.Path + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func missing(path, key string) error {
	return &Error{Kind: ErrMissingKey, Path: path, Key: key}
}

func invalid(path, key string, err error) error {
	return &Error{Kind: ErrInvalidType, Path: path, Key: key, Err: err}
}
