package apperr

import (
	"errors"
	"fmt"
)

// ValidationError indicates malformed or missing required input. It is never
// retried and surfaces immediately to the caller.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %q: %s", e.Field, e.Message)
	}
	return "validation failed: " + e.Message
}

// NotFoundError indicates a record or referenced entity is absent on the
// platform. Terminal for the item, not retried.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// TransientError indicates a network failure or retryable HTTP status that
// survived the retry budget. A future invocation may succeed.
type TransientError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// FatalError indicates a non-retryable failure: an unexpected 4xx or a
// malformed response. The item is marked failed and the batch continues.
type FatalError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *FatalError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s failed with status %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// DownloadError indicates a file attachment could not be downloaded from the
// source platform.
type DownloadError struct {
	FileID int
	Err    error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download of file %d failed: %v", e.FileID, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
