package chain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a chain submission failure so callers can decide
// whether another attempt has any chance of succeeding.
type ErrorKind string

// Set of error kinds surfaced by the client.
const (
	KindGasEstimation     ErrorKind = "GAS_ESTIMATION"
	KindNonceConflict     ErrorKind = "NONCE_CONFLICT"
	KindNetwork           ErrorKind = "NETWORK"
	KindReverted          ErrorKind = "CONTRACT_REVERTED"
	KindInsufficientFunds ErrorKind = "INSUFFICIENT_FUNDS"
	KindBadAddress        ErrorKind = "BAD_ADDRESS"
	KindNotConfigured     ErrorKind = "NOT_CONFIGURED"
)

// Error represents a classified failure from the chain client. Every failure
// path in this package returns one of these so the mint orchestrator can make
// its retry decision without string matching.
type Error struct {
	Kind      ErrorKind
	Retryable bool
	Err       error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the specified error is a chain error that a
// later attempt could succeed on. Unknown errors are treated as retryable
// network faults.
func IsRetryable(err error) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return true
}

// Kind extracts the error kind, defaulting to a network fault for errors
// that did not originate in this package.
func Kind(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindNetwork
}

// =============================================================================

func newError(kind ErrorKind, retryable bool, err error) *Error {
	return &Error{Kind: kind, Retryable: retryable, Err: err}
}

// classifySendError inspects the error returned by the RPC node on broadcast
// and maps it to a kind. Geth and most compatible nodes only expose these
// conditions as message text, so matching on substrings is unavoidable here.
func classifySendError(err error) *Error {
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "nonce too low"),
		strings.Contains(msg, "nonce too high"),
		strings.Contains(msg, "replacement transaction underpriced"),
		strings.Contains(msg, "already known"):
		return newError(KindNonceConflict, true, err)

	case strings.Contains(msg, "insufficient funds"):
		return newError(KindInsufficientFunds, false, err)

	case strings.Contains(msg, "execution reverted"),
		strings.Contains(msg, "always failing transaction"):
		return newError(KindReverted, false, err)
	}

	return newError(KindNetwork, true, err)
}
