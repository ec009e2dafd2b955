// Package ledger provides read-only access to the marketplace settlement
// contract: recorded checkpoint proofs and the proof-submitted event log.
// The ledger is the source of truth for checkpoint commitments and outlives
// any single host's uptime.
package ledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

// Backend is the subset of the ethclient surface the ledger client needs.
type Backend interface {
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Client reads checkpoint state from the settlement contract. All operations
// are read-only; the client never writes to the ledger.
type Client struct {
	backend      Backend
	contractAddr ethcommon.Address
	logger       zerolog.Logger
}

// NewClient creates a ledger client over an existing backend.
func NewClient(backend Backend, contractAddress ethcommon.Address, logger zerolog.Logger) *Client {
	return &Client{
		backend:      backend,
		contractAddr: contractAddress,
		logger:       logger.With().Str("component", "ledger_client").Logger(),
	}
}

// Dial connects to a ledger RPC endpoint and returns a client bound to the
// settlement contract address.
func Dial(ctx context.Context, rpcURL, contractAddress string, logger zerolog.Logger) (*Client, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("rpcURL is required")
	}
	addr := ethcommon.HexToAddress(contractAddress)
	if addr == (ethcommon.Address{}) {
		return nil, fmt.Errorf("invalid settlement contract address: %s", contractAddress)
	}

	ethClient, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ledger RPC %s: %w", rpcURL, err)
	}
	return NewClient(ethClient, addr, logger), nil
}

// SessionTopic maps a session id onto the bytes32 event topic / contract key.
// Ids that are already 32-byte hex strings are used directly; anything else
// is keccak-hashed.
func SessionTopic(sessionID string) ethcommon.Hash {
	if has0xPrefix(sessionID) && len(sessionID) == 66 && isHex(sessionID[2:]) {
		return ethcommon.HexToHash(sessionID)
	}
	return crypto.Keccak256Hash([]byte(sessionID))
}

func has0xPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

func isHex(s string) bool {
	for _, c := range s {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return len(s) > 0
}
