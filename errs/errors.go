package errs

import "errors"

var (
	// ErrValidation indicates a submission is missing a required field.
	ErrValidation = errors.New("validation failed")
	// ErrDecode indicates the image payload is not valid base64.
	ErrDecode = errors.New("invalid image payload")
	// ErrIO indicates a filesystem or object storage failure.
	ErrIO = errors.New("image storage failed")
	// ErrNotFound indicates a missing issue record or image.
	ErrNotFound = errors.New("not found")
)
