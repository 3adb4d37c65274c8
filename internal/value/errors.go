package value

import (
	"errors"

	"github.com/Ap3pp3rs94/tempokv/pkg/statuscode"
)

// DecodeError carries the status code a failed decode should surface,
// mirroring the taxonomy in pkg/statuscode rather than inventing a parallel
// one for the codec alone.
type DecodeError struct {
	Code statuscode.Code
	msg  string
}

func (e *DecodeError) Error() string { return e.msg }

func newDecodeErr(code statuscode.Code, msg string) error {
	return &DecodeError{Code: code, msg: msg}
}

// CodeOf extracts the status code a decode error should produce, defaulting
// to ServerError for anything that isn't a *DecodeError (which should not
// happen — decoders never panic and never return bare errors).
func CodeOf(err error) statuscode.Code {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Code
	}
	return statuscode.ServerError
}
