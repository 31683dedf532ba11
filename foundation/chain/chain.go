// Package chain provides the client used to submit batch reward mints to
// the EIU token contract and to follow those transactions to finality.
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// receiptPollInterval is how often the client asks the node for a receipt
// while waiting for a submitted transaction to be mined.
const receiptPollInterval = 3 * time.Second

// Config represents the settings required to construct a client.
type Config struct {
	RPCURL          string
	PrivateKeyHex   string
	ContractAddress string
	Confirmations   int
	GasBufferPct    int
}

// Client holds the signing credential and connection needed to broadcast
// mint calls against the rewards contract. A nil *Client is the explicit
// "not configured" state; the mint orchestrator checks for it up front.
type Client struct {
	ethClient     *ethclient.Client
	privateKey    *ecdsa.PrivateKey
	fromAddress   common.Address
	contract      common.Address
	contractABI   abi.ABI
	chainID       *big.Int
	confirmations int
	gasBufferPct  int
}

// New validates the configuration, dials the RPC endpoint and verifies the
// node is reachable by asking for its chain id. A failure here leaves the
// service running without a chain client rather than in a half-built state.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, newError(KindNotConfigured, false, errors.New("rpc url not set"))
	}
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, newError(KindNotConfigured, false, fmt.Errorf("contract address %q is not a hex address", cfg.ContractAddress))
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKeyHex, "0x"))
	if err != nil {
		return nil, newError(KindNotConfigured, false, fmt.Errorf("parsing signing key: %w", err))
	}

	ethClient, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dialing rpc endpoint: %w", err)
	}

	chainID, err := ethClient.ChainID(ctx)
	if err != nil {
		ethClient.Close()
		return nil, fmt.Errorf("querying chain id: %w", err)
	}

	contractABI, err := loadMintABI()
	if err != nil {
		ethClient.Close()
		return nil, err
	}

	confirmations := cfg.Confirmations
	if confirmations <= 0 {
		confirmations = 2
	}
	gasBufferPct := cfg.GasBufferPct
	if gasBufferPct <= 0 {
		gasBufferPct = 20
	}

	client := Client{
		ethClient:     ethClient,
		privateKey:    privateKey,
		fromAddress:   crypto.PubkeyToAddress(privateKey.PublicKey),
		contract:      common.HexToAddress(cfg.ContractAddress),
		contractABI:   contractABI,
		chainID:       chainID,
		confirmations: confirmations,
		gasBufferPct:  gasBufferPct,
	}

	return &client, nil
}

// Shutdown releases the underlying RPC connection.
func (c *Client) Shutdown() {
	c.ethClient.Close()
}

// =============================================================================

// MintRequest carries everything needed to construct one mint call.
type MintRequest struct {
	Collector   common.Address
	Recycler    common.Address
	WeightGrams int
	ProofHash   string
}

// MintReceipt is the proof of a confirmed mint.
type MintReceipt struct {
	TxHash      string
	BlockNumber uint64
	GasUsed     uint64
}

// TxStatus reports the chain's view of a previously broadcast transaction.
type TxStatus struct {
	Confirmed   bool
	BlockNumber uint64
	GasUsed     uint64
}

// ContractInfo describes the contract the client is bound to.
type ContractInfo struct {
	ContractAddress string `json:"contract_address"`
	SignerAddress   string `json:"signer_address"`
	ChainID         string `json:"chain_id"`
	Confirmations   int    `json:"confirmations"`
}

// =============================================================================

// SubmitMintBatch signs and broadcasts a mintBatchReward call and blocks
// until the transaction has the configured number of confirmations. Every
// failure path returns a classified *Error so the caller can decide whether
// to retry.
func (c *Client) SubmitMintBatch(ctx context.Context, req MintRequest) (MintReceipt, error) {
	zero := common.Address{}
	if req.Collector == zero || req.Recycler == zero {
		return MintReceipt{}, newError(KindBadAddress, false, errors.New("collector and recycler addresses are required"))
	}

	data, err := packMintCall(c.contractABI, req.Collector, req.Recycler, req.WeightGrams, req.ProofHash)
	if err != nil {
		return MintReceipt{}, newError(KindBadAddress, false, err)
	}

	nonce, err := c.ethClient.PendingNonceAt(ctx, c.fromAddress)
	if err != nil {
		return MintReceipt{}, newError(KindNonceConflict, true, fmt.Errorf("reading pending nonce: %w", err))
	}

	gasPrice, err := c.ethClient.SuggestGasPrice(ctx)
	if err != nil {
		return MintReceipt{}, newError(KindGasEstimation, true, fmt.Errorf("suggesting gas price: %w", err))
	}

	gasLimit, err := c.estimateGas(ctx, data)
	if err != nil {
		return MintReceipt{}, err
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &c.contract,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.privateKey)
	if err != nil {
		return MintReceipt{}, newError(KindNotConfigured, false, fmt.Errorf("signing transaction: %w", err))
	}

	if err := c.ethClient.SendTransaction(ctx, signedTx); err != nil {
		return MintReceipt{}, classifySendError(err)
	}

	receipt, err := c.waitConfirmed(ctx, signedTx.Hash())
	if err != nil {
		return MintReceipt{}, err
	}

	return receipt, nil
}

// estimateGas simulates the call against the node and applies the configured
// safety buffer on top of the node's estimate.
func (c *Client) estimateGas(ctx context.Context, data []byte) (uint64, error) {
	msg := ethereum.CallMsg{
		From: c.fromAddress,
		To:   &c.contract,
		Data: data,
	}

	estimate, err := c.ethClient.EstimateGas(ctx, msg)
	if err != nil {

		// A revert during simulation means the call itself is bad, not
		// the estimation machinery.
		if strings.Contains(strings.ToLower(err.Error()), "execution reverted") {
			return 0, newError(KindReverted, false, err)
		}
		return 0, newError(KindGasEstimation, true, fmt.Errorf("estimating gas: %w", err))
	}

	return estimate * uint64(100+c.gasBufferPct) / 100, nil
}

// waitConfirmed polls for the receipt and then waits until the chain head is
// the configured number of blocks past the inclusion block.
func (c *Client) waitConfirmed(ctx context.Context, txHash common.Hash) (MintReceipt, error) {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.ethClient.TransactionReceipt(ctx, txHash)
		switch {
		case err == nil:
			if receipt.Status == types.ReceiptStatusFailed {
				return MintReceipt{}, newError(KindReverted, false, fmt.Errorf("transaction %s reverted on chain", txHash.Hex()))
			}

			confirmed, err := c.hasConfirmations(ctx, receipt.BlockNumber.Uint64())
			if err != nil {
				return MintReceipt{}, newError(KindNetwork, true, err)
			}
			if confirmed {
				return MintReceipt{
					TxHash:      txHash.Hex(),
					BlockNumber: receipt.BlockNumber.Uint64(),
					GasUsed:     receipt.GasUsed,
				}, nil
			}

		case errors.Is(err, ethereum.NotFound):
			// Not mined yet. Keep polling.

		default:
			return MintReceipt{}, newError(KindNetwork, true, fmt.Errorf("polling receipt: %w", err))
		}

		select {
		case <-ctx.Done():
			return MintReceipt{}, newError(KindNetwork, true, ctx.Err())
		case <-ticker.C:
		}
	}
}

// hasConfirmations reports whether the head has advanced far enough past the
// specified inclusion block.
func (c *Client) hasConfirmations(ctx context.Context, includedAt uint64) (bool, error) {
	header, err := c.ethClient.HeaderByNumber(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("reading chain head: %w", err)
	}

	head := header.Number.Uint64()
	return head >= includedAt && head-includedAt+1 >= uint64(c.confirmations), nil
}

// =============================================================================

// Status polls the chain once for the specified transaction. A transaction
// the chain has not mined yet is not an error, it reports Confirmed false.
func (c *Client) Status(ctx context.Context, txHash string) (TxStatus, error) {
	receipt, err := c.ethClient.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return TxStatus{Confirmed: false}, nil
		}
		return TxStatus{}, newError(KindNetwork, true, fmt.Errorf("polling receipt: %w", err))
	}

	return TxStatus{
		Confirmed:   receipt.Status == types.ReceiptStatusSuccessful,
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
	}, nil
}

// Info describes the contract binding for the contract-info endpoint.
func (c *Client) Info() ContractInfo {
	return ContractInfo{
		ContractAddress: c.contract.Hex(),
		SignerAddress:   c.fromAddress.Hex(),
		ChainID:         c.chainID.String(),
		Confirmations:   c.confirmations,
	}
}
