package session

import "errors"

var (
	// ErrProviderConnection means the speech provider stream failed. The
	// session stops and must be started again.
	ErrProviderConnection = errors.New("speech provider connection failed")

	// ErrDispatchTimeout means an answer call ran past the stuck timeout and
	// was released.
	ErrDispatchTimeout = errors.New("answer call exceeded stuck timeout")

	// ErrBackendCall means the answering backend returned an error.
	ErrBackendCall = errors.New("answer backend call failed")

	// ErrNotRunning is returned for operations that need a live session.
	ErrNotRunning = errors.New("session not running")
)
