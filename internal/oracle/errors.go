package oracle

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind separates failures worth retrying from those that are not.
type Kind int

const (
	KindRetriable Kind = iota
	KindFatal
)

func (k Kind) String() string {
	if k == KindRetriable {
		return "retriable"
	}
	return "fatal"
}

// Error is a classified oracle failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("oracle %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retriable wraps err as a retriable failure of op.
func Retriable(op string, err error) error {
	return &Error{Kind: KindRetriable, Op: op, Err: err}
}

// Fatal wraps err as a non-retriable failure of op.
func Fatal(op string, err error) error {
	return &Error{Kind: KindFatal, Op: op, Err: err}
}

// ErrContentBlocked is returned when the model refuses or blocks the content.
var ErrContentBlocked = errors.New("content blocked by model")

// IsRetriable reports whether err was classified as retriable.
func IsRetriable(err error) bool {
	var oe *Error
	return errors.As(err, &oe) && oe.Kind == KindRetriable
}

// Classify tags a raw error from the model backend. Errors that are already
// classified are returned unchanged.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var oe *Error
	if errors.As(err, &oe) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return Fatal(op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Retriable(op, err)
	}
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return Fatal(op, fmt.Errorf("%w: %v", ErrContentBlocked, err))
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == http.StatusTooManyRequests || gerr.Code >= http.StatusInternalServerError {
			return Retriable(op, err)
		}
		return Fatal(op, err)
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Internal, codes.Aborted, codes.Unknown:
			return Retriable(op, err)
		default:
			return Fatal(op, err)
		}
	}
	// Transport failures without a status are usually transient.
	return Retriable(op, err)
}
