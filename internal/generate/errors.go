package generate

import (
	"errors"
	"fmt"
)

var (
	// ErrInputRead indicates a required upload could not be decoded.
	ErrInputRead = errors.New("generate: input unreadable")
	// ErrImageDecode indicates the image capability answered successfully but
	// produced no decodable image payload.
	ErrImageDecode = errors.New("generate: image payload missing or undecodable")
	// ErrTimeout indicates an external call exceeded its per-stage deadline.
	ErrTimeout = errors.New("generate: external call timed out")
	// ErrBusy indicates the concurrent-run limit was reached before any
	// external call was made.
	ErrBusy = errors.New("generate: too many concurrent runs")
)

// AnalysisErrorKind classifies failures of the multimodal analysis capability.
type AnalysisErrorKind string

const (
	AnalysisUnauthorized  AnalysisErrorKind = "unauthorized"
	AnalysisQuotaExceeded AnalysisErrorKind = "quota_exceeded"
	AnalysisTransport     AnalysisErrorKind = "transport"
	AnalysisEmptyResponse AnalysisErrorKind = "empty_response"
)

// AnalysisError wraps a failure of the analysis capability with the kind the
// caller needs for its user-facing message.
type AnalysisError struct {
	Kind AnalysisErrorKind
	Err  error
}

func (e *AnalysisError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("generate: analysis failed (%s)", e.Kind)
	}
	return fmt.Sprintf("generate: analysis failed (%s): %v", e.Kind, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// UploadError wraps a content-store rejection during persisting.
type UploadError struct {
	Key string
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("generate: upload %s failed: %v", e.Key, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// PersistError wraps a structured-store rejection during persisting.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("generate: persist failed: %v", e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// StageError is the terminal failure of one run: which stage aborted it and
// the underlying cause, returned verbatim.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("generate: %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
