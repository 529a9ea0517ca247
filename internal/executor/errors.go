package executor

import "errors"

// ErrorKind classifies why a run did not complete normally
type ErrorKind string

const (
	KindNone          ErrorKind = ""
	KindGuardRejected ErrorKind = "guard_rejected"
	KindTransport     ErrorKind = "transport_error"
	KindCancelled     ErrorKind = "cancelled"
	KindCompile       ErrorKind = "compile_error"
)

var (
	// ErrGuardRejected means the code was refused before any request was made
	ErrGuardRejected = errors.New("code rejected before execution")
	// ErrTransport means the remote service could not be reached or answered with a failure status
	ErrTransport = errors.New("remote execution failed")
	// ErrCancelled means the run was aborted locally
	ErrCancelled = errors.New("execution cancelled")
	// ErrCompile means the remote service reported a compilation error
	ErrCompile = errors.New("compilation failed")
)

// Sentinel returns the sentinel error for the kind
func (k ErrorKind) Sentinel() error {
	switch k {
	case KindGuardRejected:
		return ErrGuardRejected
	case KindTransport:
		return ErrTransport
	case KindCancelled:
		return ErrCancelled
	case KindCompile:
		return ErrCompile
	}
	return nil
}
