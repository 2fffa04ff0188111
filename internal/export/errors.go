package export

import (
	"context"
	"fmt"

	"github.com/ZacxDev/video-overlay/internal/composition"
	"github.com/pkg/errors"
)

// ErrExportInProgress is returned by Export while another job is running
var ErrExportInProgress = errors.New("export already in progress")

// Kind classifies a terminal export failure
type Kind string

const (
	KindCompositionFailed Kind = "composition_failed"
	KindExportFailed      Kind = "export_failed"
	KindCancelled         Kind = "cancelled"
)

// Error is the terminal failure of a job. Reason is stable and suitable
// for display.
type Error struct {
	Kind   Kind
	Reason string
	err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindCompositionFailed:
		return fmt.Sprintf("composition failed: %s", e.Reason)
	case KindExportFailed:
		return fmt.Sprintf("export failed: %s", e.Reason)
	default:
		return "export cancelled"
	}
}

func (e *Error) Unwrap() error { return e.err }

// KindOf returns the failure kind of err, or "" if err is not an *Error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsCancelled reports whether err ended a job by cancellation
func IsCancelled(err error) bool {
	return KindOf(err) == KindCancelled
}

func compositionFailed(err error) *Error {
	reason := err.Error()
	var cerr *composition.Error
	if errors.As(err, &cerr) {
		reason = cerr.Reason
	}
	return &Error{Kind: KindCompositionFailed, Reason: reason, err: err}
}

func exportFailed(err error) *Error {
	return &Error{Kind: KindExportFailed, Reason: err.Error(), err: err}
}

func cancelled(err error) *Error {
	return &Error{Kind: KindCancelled, Reason: "cancelled", err: err}
}

// classify maps a failure from the given stage to the taxonomy. Context
// cancellation wins over whatever the stage reported.
func classify(ctx context.Context, err error, build bool) *Error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return cancelled(err)
	}
	if build {
		return compositionFailed(err)
	}
	return exportFailed(err)
}
