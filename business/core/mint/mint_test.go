package mint

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/plastix-network/plastix/business/data/store/batch"
	"github.com/plastix-network/plastix/foundation/chain"
)

// submitter scripts the chain responses: one error per attempt, a nil entry
// meaning success. It records every submission it receives.
type submitter struct {
	script   []error
	requests []chain.MintRequest
}

func (s *submitter) SubmitMintBatch(ctx context.Context, req chain.MintRequest) (chain.MintReceipt, error) {
	attempt := len(s.requests)
	s.requests = append(s.requests, req)

	if attempt < len(s.script) && s.script[attempt] != nil {
		return chain.MintReceipt{}, s.script[attempt]
	}

	return chain.MintReceipt{TxHash: "0xabc", BlockNumber: 1234, GasUsed: 21000}, nil
}

func (s *submitter) Status(ctx context.Context, txHash string) (chain.TxStatus, error) {
	return chain.TxStatus{Confirmed: true, BlockNumber: 1234}, nil
}

func (s *submitter) Info() chain.ContractInfo {
	return chain.ContractInfo{ContractAddress: "0xcontract"}
}

// batchStore is an in-memory batch row honoring the same claim condition the
// SQL store enforces.
type batchStore struct {
	bat        batch.Batch
	candidates []batch.Batch
}

func verifiedBatch(id uuid.UUID) batch.Batch {
	recycler := uuid.NewString()
	weight := 1000

	return batch.Batch{
		ID:                  id.String(),
		CollectorID:         uuid.NewString(),
		RecyclerID:          &recycler,
		VerifiedWeightGrams: &weight,
		VerificationStatus:  batch.VerificationVerified,
		ProofHash:           "QmProof",
	}
}

func (s *batchStore) QueryByID(ctx context.Context, batchID uuid.UUID) (batch.Batch, error) {
	return s.bat, nil
}

func (s *batchStore) ClaimForMint(ctx context.Context, batchID uuid.UUID, now time.Time) (bool, error) {
	if s.bat.VerificationStatus != batch.VerificationVerified {
		return false, nil
	}
	if s.bat.MintStatus != nil && *s.bat.MintStatus != batch.MintFailedOnChain {
		return false, nil
	}

	status := batch.MintPendingMint
	s.bat.MintStatus = &status
	s.bat.RetryCount = 0
	s.bat.LastAttempt = &now
	return true, nil
}

func (s *batchStore) UpdateMintSuccess(ctx context.Context, batchID uuid.UUID, res batch.MintResult, now time.Time) error {
	status := batch.MintMinted
	s.bat.MintStatus = &status
	s.bat.TxHash = &res.TxHash
	s.bat.BlockNumber = &res.BlockNumber
	s.bat.RetryCount = res.RetryCount
	return nil
}

func (s *batchStore) UpdateMintRetrying(ctx context.Context, batchID uuid.UUID, retryCount int, lastError string, now time.Time) error {
	status := batch.MintRetrying
	s.bat.MintStatus = &status
	s.bat.RetryCount = retryCount
	s.bat.LastError = &lastError
	return nil
}

func (s *batchStore) UpdateMintFailed(ctx context.Context, batchID uuid.UUID, retryCount int, lastError string, now time.Time) error {
	status := batch.MintFailedOnChain
	s.bat.MintStatus = &status
	s.bat.RetryCount = retryCount
	s.bat.LastError = &lastError
	return nil
}

func (s *batchStore) SelectRetryCandidates(ctx context.Context, limit int, maxRetries int, cooldown time.Duration, now time.Time) ([]batch.Batch, error) {
	return s.candidates, nil
}

// userStore resolves every id to one valid wallet address unless empty.
type userStore struct {
	empty bool
}

func (s userStore) WalletAddresses(ctx context.Context, userIDs ...uuid.UUID) (map[uuid.UUID]string, error) {
	wallets := make(map[uuid.UUID]string, len(userIDs))
	if s.empty {
		return wallets, nil
	}
	for _, id := range userIDs {
		wallets[id] = "0x8e113078adf6888b7ba84967f299f29aece24c55"
	}
	return wallets, nil
}

// newTestCore wires a core whose backoff records the requested delays
// instead of sleeping.
func newTestCore(sub Submitter, bs *batchStore, us userStore) (*Core, *[]time.Duration) {
	core := NewCore(zap.NewNop().Sugar(), sub, bs, us, DefaultPolicy(), nil)

	var delays []time.Duration
	core.wait = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	return core, &delays
}

func TestTriggerMintFirstAttempt(t *testing.T) {
	batchID := uuid.New()
	bs := &batchStore{bat: verifiedBatch(batchID)}
	sub := &submitter{}
	core, delays := newTestCore(sub, bs, userStore{})

	res, err := core.TriggerMint(context.Background(), batchID)
	require.NoError(t, err)
	require.Equal(t, "0xabc", res.TxHash)
	require.Equal(t, uint64(1234), res.BlockNumber)
	require.Equal(t, 0, res.RetryCount)
	require.Empty(t, *delays)
	require.Len(t, sub.requests, 1)
	require.Equal(t, 1000, sub.requests[0].WeightGrams)

	require.NotNil(t, bs.bat.MintStatus)
	require.Equal(t, batch.MintMinted, *bs.bat.MintStatus)
}

func TestTriggerMintIdempotent(t *testing.T) {
	batchID := uuid.New()
	bs := &batchStore{bat: verifiedBatch(batchID)}
	core, _ := newTestCore(&submitter{}, bs, userStore{})

	_, err := core.TriggerMint(context.Background(), batchID)
	require.NoError(t, err)

	// The batch is MINTED now; a second trigger must not pass the claim.
	_, err = core.TriggerMint(context.Background(), batchID)
	require.ErrorIs(t, err, ErrNotEligible)
}

func TestTriggerMintBackoffSchedule(t *testing.T) {
	batchID := uuid.New()
	bs := &batchStore{bat: verifiedBatch(batchID)}

	netErr := &chain.Error{Kind: chain.KindNetwork, Retryable: true, Err: errors.New("connection refused")}
	sub := &submitter{script: []error{netErr, netErr, nil}}
	core, delays := newTestCore(sub, bs, userStore{})

	res, err := core.TriggerMint(context.Background(), batchID)
	require.NoError(t, err)
	require.Equal(t, 2, res.RetryCount)
	require.Len(t, sub.requests, 3)
	require.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, *delays)

	require.Equal(t, batch.MintMinted, *bs.bat.MintStatus)
}

func TestTriggerMintNonRetryable(t *testing.T) {
	batchID := uuid.New()
	bs := &batchStore{bat: verifiedBatch(batchID)}

	revert := &chain.Error{Kind: chain.KindReverted, Retryable: false, Err: errors.New("execution reverted")}
	sub := &submitter{script: []error{revert}}
	core, delays := newTestCore(sub, bs, userStore{})

	_, err := core.TriggerMint(context.Background(), batchID)
	require.Error(t, err)

	// One attempt, no backoff, straight to the terminal failure state with
	// no retry attempts consumed.
	require.Len(t, sub.requests, 1)
	require.Empty(t, *delays)
	require.Equal(t, batch.MintFailedOnChain, *bs.bat.MintStatus)
	require.Equal(t, 0, bs.bat.RetryCount)
}

func TestTriggerMintExhaustion(t *testing.T) {
	batchID := uuid.New()
	bs := &batchStore{bat: verifiedBatch(batchID)}

	netErr := &chain.Error{Kind: chain.KindNetwork, Retryable: true, Err: errors.New("connection refused")}
	sub := &submitter{script: []error{netErr, netErr, netErr}}
	core, delays := newTestCore(sub, bs, userStore{})

	_, err := core.TriggerMint(context.Background(), batchID)
	require.Error(t, err)

	require.Len(t, sub.requests, 3)
	require.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, *delays)
	require.Equal(t, batch.MintFailedOnChain, *bs.bat.MintStatus)
	require.Equal(t, 3, bs.bat.RetryCount)

	// A failed batch is claimable again; the retry counter resets on claim.
	sub.script = nil
	res, err := core.TriggerMint(context.Background(), batchID)
	require.NoError(t, err)
	require.Equal(t, 0, res.RetryCount)
	require.Equal(t, batch.MintMinted, *bs.bat.MintStatus)
}

func TestTriggerMintNotConfigured(t *testing.T) {
	batchID := uuid.New()
	bs := &batchStore{bat: verifiedBatch(batchID)}
	core := NewCore(zap.NewNop().Sugar(), nil, bs, userStore{}, DefaultPolicy(), nil)

	_, err := core.TriggerMint(context.Background(), batchID)
	require.ErrorIs(t, err, ErrNotConfigured)
	require.Nil(t, bs.bat.MintStatus)
}

func TestTriggerMintMissingWallets(t *testing.T) {
	batchID := uuid.New()
	bs := &batchStore{bat: verifiedBatch(batchID)}
	sub := &submitter{}
	core, _ := newTestCore(sub, bs, userStore{empty: true})

	_, err := core.TriggerMint(context.Background(), batchID)
	require.ErrorIs(t, err, ErrMissingWallets)

	// The claim is released to the terminal failure state without ever
	// touching the chain.
	require.Empty(t, sub.requests)
	require.Equal(t, batch.MintFailedOnChain, *bs.bat.MintStatus)
	require.Equal(t, 0, bs.bat.RetryCount)
}

func TestRetryFailedBatches(t *testing.T) {
	batchID := uuid.New()
	failedBat := verifiedBatch(batchID)
	status := batch.MintFailedOnChain
	failedBat.MintStatus = &status

	unclaimable := verifiedBatch(uuid.New())
	pending := batch.MintPendingMint
	unclaimable.MintStatus = &pending

	bs := &batchStore{bat: failedBat, candidates: []batch.Batch{failedBat, unclaimable}}
	core, _ := newTestCore(&submitter{}, bs, userStore{})

	// The store mock backs both candidates with the same row, so the first
	// trigger succeeds and flips it to MINTED, making the second claim fail.
	sweep, err := core.RetryFailedBatches(context.Background())
	require.NoError(t, err)
	require.Equal(t, SweepResult{Retried: 2, Succeeded: 1, Failed: 1}, sweep)
}

func TestRetryFailedBatchesNotConfigured(t *testing.T) {
	core := NewCore(zap.NewNop().Sugar(), nil, &batchStore{}, userStore{}, DefaultPolicy(), nil)

	_, err := core.RetryFailedBatches(context.Background())
	require.ErrorIs(t, err, ErrNotConfigured)
}
