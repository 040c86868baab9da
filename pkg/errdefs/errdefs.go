package errdefs

import (
	"errors"
	"fmt"
)

// Kind classifies a provisioning failure
type Kind string

const (
	// KindMissingArgument means a required parameter was absent. Never retried.
	KindMissingArgument Kind = "MISSING_ARGUMENT"

	// KindInvalidArgument means a parameter had the wrong shape or content.
	KindInvalidArgument Kind = "INVALID_ARGUMENT"

	// KindResourceNotFound means a remote artifact, pod or release does not exist.
	KindResourceNotFound Kind = "RESOURCE_NOT_FOUND"

	// KindDataIntegrity means a checksum mismatch or a failed certificate
	// self-verification. Always fatal to the current operation.
	KindDataIntegrity Kind = "DATA_INTEGRITY"

	// KindTimeout means a bounded wait exceeded its deadline.
	KindTimeout Kind = "TIMEOUT"

	// KindRemoteOperation wraps a failure from a remote copy, exec or chart primitive.
	KindRemoteOperation Kind = "REMOTE_OPERATION"

	// KindUnknown is returned by KindOf for errors carrying no kind.
	KindUnknown Kind = "UNKNOWN"
)

// Sentinels for errors.Is comparisons
var (
	ErrMissingArgument  = &Error{Kind: KindMissingArgument}
	ErrInvalidArgument  = &Error{Kind: KindInvalidArgument}
	ErrResourceNotFound = &Error{Kind: KindResourceNotFound}
	ErrDataIntegrity    = &Error{Kind: KindDataIntegrity}
	ErrTimeout          = &Error{Kind: KindTimeout}
	ErrRemoteOperation  = &Error{Kind: KindRemoteOperation}
)

// Error is a classified error. Op names the operation that failed and Msg
// carries the context (paths, tags, namespaces) needed to resume manually.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrTimeout)
// works regardless of Op or Msg.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New creates a classified error
func New(kind Kind, op, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err, keeping it as the cause
func Wrap(kind Kind, op string, err error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Missing is shorthand for a MissingArgument error naming the parameter
func Missing(op, name string) error {
	return &Error{Kind: KindMissingArgument, Op: op, Msg: fmt.Sprintf("%s is required", name)}
}

// KindOf returns the kind of the outermost classified error in err's chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsMissingArgument reports whether err is a MissingArgument error
func IsMissingArgument(err error) bool { return errors.Is(err, ErrMissingArgument) }

// IsInvalidArgument reports whether err is an InvalidArgument error
func IsInvalidArgument(err error) bool { return errors.Is(err, ErrInvalidArgument) }

// IsNotFound reports whether err is a ResourceNotFound error
func IsNotFound(err error) bool { return errors.Is(err, ErrResourceNotFound) }

// IsDataIntegrity reports whether err is a DataIntegrity error
func IsDataIntegrity(err error) bool { return errors.Is(err, ErrDataIntegrity) }

// IsTimeout reports whether err is a Timeout error
func IsTimeout(err error) bool { return errors.Is(err, ErrTimeout) }

// IsRemoteOperation reports whether err is a RemoteOperation error
func IsRemoteOperation(err error) bool { return errors.Is(err, ErrRemoteOperation) }
