package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// mintABI describes the single entry point of the PlastixRewards contract
// the service calls. The contract mints EIU reward tokens for a verified
// batch, crediting the collector and recycler wallets and anchoring the
// IPFS proof hash on chain.
const mintABI = `[
	{
		"name": "mintBatchReward",
		"type": "function",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "collector", "type": "address"},
			{"name": "recycler", "type": "address"},
			{"name": "weightGrams", "type": "uint256"},
			{"name": "proofHash", "type": "string"}
		],
		"outputs": []
	}
]`

// loadMintABI parses the embedded contract ABI. Parsing a constant can only
// fail if the constant itself is broken, which the client tests cover.
func loadMintABI() (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(mintABI))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parsing contract abi: %w", err)
	}
	return parsed, nil
}

// packMintCall produces the calldata for a mintBatchReward invocation.
func packMintCall(contract abi.ABI, collector common.Address, recycler common.Address, weightGrams int, proofHash string) ([]byte, error) {
	if weightGrams <= 0 {
		return nil, fmt.Errorf("weight must be positive, got %d", weightGrams)
	}

	data, err := contract.Pack("mintBatchReward", collector, recycler, big.NewInt(int64(weightGrams)), proofHash)
	if err != nil {
		return nil, fmt.Errorf("packing mint call: %w", err)
	}

	return data, nil
}
