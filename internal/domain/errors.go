package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrTooManyBoxes          = errors.New("page exceeds the box-count cap")
	ErrInternal              = errors.New("internal invariant violated")
	ErrCanceled              = errors.New("refinement canceled")
	ErrOracleFailed          = errors.New("caption oracle failed")
	ErrInvalidOracleResponse = errors.New("caption oracle returned an invalid response")
	ErrNotFound              = errors.New("resource not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrCatalogWriteFailed    = errors.New("catalog write failed")
)

// PageError attaches a page index to a stage failure.
type PageError struct {
	Page int
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %d: %v", e.Page, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }

// NewPageError wraps err with the page index; nil stays nil.
func NewPageError(page int, err error) error {
	if err == nil {
		return nil
	}
	return &PageError{Page: page, Err: err}
}
