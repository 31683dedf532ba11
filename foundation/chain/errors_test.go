package chain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifySendError(t *testing.T) {
	tt := []struct {
		msg       string
		kind      ErrorKind
		retryable bool
	}{
		{"nonce too low", KindNonceConflict, true},
		{"nonce too high", KindNonceConflict, true},
		{"replacement transaction underpriced", KindNonceConflict, true},
		{"already known", KindNonceConflict, true},
		{"insufficient funds for gas * price + value", KindInsufficientFunds, false},
		{"execution reverted: batch already minted", KindReverted, false},
		{"connection refused", KindNetwork, true},
	}

	for _, tst := range tt {
		t.Run(tst.msg, func(t *testing.T) {
			err := classifySendError(errors.New(tst.msg))
			require.Equal(t, tst.kind, err.Kind)
			require.Equal(t, tst.retryable, err.Retryable)
		})
	}
}

func TestIsRetryableUnknownError(t *testing.T) {

	// Errors that did not originate in this package are treated as
	// transient network faults.
	err := errors.New("dial tcp: i/o timeout")
	require.True(t, IsRetryable(err))
	require.Equal(t, KindNetwork, Kind(err))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := newError(KindGasEstimation, true, fmt.Errorf("estimating gas: %w", cause))

	require.ErrorIs(t, err, cause)
	require.True(t, IsRetryable(err))
	require.Equal(t, KindGasEstimation, Kind(err))
}
