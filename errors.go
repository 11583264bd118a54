package rtcencoder

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnsupportedFormat         = errors.New("unsupported format")
	ErrSoftwareEncoderNotAllowed = errors.New("the software encoder is not available at the current setting")
	ErrNotCompiled               = errors.New("not compiled with the support of this engine")
	ErrClosed                    = errors.New("the encoder is closed")
	ErrNotInitialized            = errors.New("the encoder is not initialized")
)

// FatalError means the process is misconfigured and continuing makes no
// sense. Hints are human-readable instructions for the operator.
type FatalError struct {
	Err   error
	Hints []string
}

func (e *FatalError) Error() string {
	if len(e.Hints) == 0 {
		return fmt.Sprintf("fatal: %v", e.Err)
	}
	return fmt.Sprintf("fatal: %v (%s)", e.Err, strings.Join(e.Hints, " "))
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

func IsFatal(err error) bool {
	var fatalErr *FatalError
	return errors.As(err, &fatalErr)
}

func NewSoftwareEncoderNotAllowedError(codec CodecName) *FatalError {
	return &FatalError{
		Err: fmt.Errorf("%w: requested %s", ErrSoftwareEncoderNotAllowed, codec),
		Hints: []string{
			"The software encoder is not available at the current setting.",
			"Check the list of available encoders by specifying --video-codec-engines.",
			"To enable software encoders, specify --hw-encoder-only=false.",
		},
	}
}
