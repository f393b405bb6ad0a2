package pipeline

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable error category. Callers branch on the kind;
// the message is for humans.
type Kind string

const (
	// NoFaceDetected means automatic cropping was expected but no face was
	// found and no manual crop was provided.
	NoFaceDetected Kind = "no_face_detected"
	// InvalidCropRegion means a manual crop was non-square, zero-sized, or
	// outside source bounds after clamping.
	InvalidCropRegion Kind = "invalid_crop_region"
	// SegmentationUnavailable means the background removal capability
	// errored or is not configured.
	SegmentationUnavailable Kind = "segmentation_unavailable"
	// UnsupportedImage means the source image is missing, out of the
	// accepted size range, or visually blank.
	UnsupportedImage Kind = "unsupported_image"
	// InvalidRequest means a tuning parameter or background spec is outside
	// its documented range.
	InvalidRequest Kind = "invalid_request"
	// CapacityExceeded means more copies were requested than the sheet can
	// hold. It is reported as a warning with a best-effort layout.
	CapacityExceeded Kind = "capacity_exceeded"
	// ProcessingTimeout means the wall-clock budget for the request ran out.
	ProcessingTimeout Kind = "processing_timeout"
)

// Error is the typed error surfaced by all pipeline stages.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is (or wraps) a pipeline error of the given kind.
func IsKind(err error, kind Kind) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == kind
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func wrapError(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}
