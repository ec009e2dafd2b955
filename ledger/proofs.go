package ledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/axonmesh/axon-go/checkpoint"
)

// proofSubmittedTopic is the topic0 of
// CheckpointProofSubmitted(bytes32 indexed sessionId, address indexed host,
// uint256 checkpointIndex, uint256 tokensClaimed, bytes32 proofHash, string deltaCid).
var proofSubmittedTopic = crypto.Keccak256Hash(
	[]byte("CheckpointProofSubmitted(bytes32,address,uint256,uint256,bytes32,string)"))

// getCheckpointProofSelector is the 4-byte selector of
// getCheckpointProof(bytes32,uint256).
var getCheckpointProofSelector = crypto.Keccak256(
	[]byte("getCheckpointProof(bytes32,uint256)"))[:4]

// proofEventArguments returns the non-indexed event arguments, in order.
func proofEventArguments() abi.Arguments {
	uint256Type, _ := abi.NewType("uint256", "", nil)
	bytes32Type, _ := abi.NewType("bytes32", "", nil)
	stringType, _ := abi.NewType("string", "", nil)

	return abi.Arguments{
		{Name: "checkpointIndex", Type: uint256Type},
		{Name: "tokensClaimed", Type: uint256Type},
		{Name: "proofHash", Type: bytes32Type},
		{Name: "deltaCid", Type: stringType},
	}
}

// proofCallArguments returns the getCheckpointProof input arguments.
func proofCallArguments() abi.Arguments {
	bytes32Type, _ := abi.NewType("bytes32", "", nil)
	uint256Type, _ := abi.NewType("uint256", "", nil)

	return abi.Arguments{
		{Name: "sessionId", Type: bytes32Type},
		{Name: "checkpointIndex", Type: uint256Type},
	}
}

// proofReturnArguments returns the getCheckpointProof output arguments.
func proofReturnArguments() abi.Arguments {
	bytes32Type, _ := abi.NewType("bytes32", "", nil)
	uint256Type, _ := abi.NewType("uint256", "", nil)
	boolType, _ := abi.NewType("bool", "", nil)

	return abi.Arguments{
		{Name: "proofHash", Type: bytes32Type},
		{Name: "tokensClaimed", Type: uint256Type},
		{Name: "exists", Type: boolType},
	}
}

// GetCheckpointProof returns the on-chain-recorded commitment hash for a
// session's checkpoint, with found=false when the contract has no record.
func (c *Client) GetCheckpointProof(ctx context.Context, sessionID string, index uint64) (ethcommon.Hash, bool, error) {
	input, err := proofCallArguments().Pack(SessionTopic(sessionID), new(big.Int).SetUint64(index))
	if err != nil {
		return ethcommon.Hash{}, false, fmt.Errorf("failed to encode proof query: %w", err)
	}

	msg := ethereum.CallMsg{
		To:   &c.contractAddr,
		Data: append(append([]byte{}, getCheckpointProofSelector...), input...),
	}
	output, err := c.backend.CallContract(ctx, msg, nil)
	if err != nil {
		return ethcommon.Hash{}, false, fmt.Errorf("proof query failed: %w", err)
	}

	values, err := proofReturnArguments().Unpack(output)
	if err != nil {
		return ethcommon.Hash{}, false, fmt.Errorf("failed to decode proof query result: %w", err)
	}

	proofHash, ok := values[0].([32]byte)
	if !ok {
		return ethcommon.Hash{}, false, fmt.Errorf("unexpected proofHash type %T", values[0])
	}
	exists, ok := values[2].(bool)
	if !ok {
		return ethcommon.Hash{}, false, fmt.Errorf("unexpected exists type %T", values[2])
	}
	return ethcommon.Hash(proofHash), exists, nil
}

// ListProofEvents scans the ledger event log for the session's
// proof-submitted events, in block order, and reprojects each into a
// LedgerCheckpointEntry. Entries are returned as recorded; filtering of
// pre-upgrade entries (empty deltaCid) belongs to the discovery layer.
func (c *Client) ListProofEvents(ctx context.Context, sessionID string) ([]checkpoint.LedgerCheckpointEntry, error) {
	sessionTopic := SessionTopic(sessionID)
	query := ethereum.FilterQuery{
		Addresses: []ethcommon.Address{c.contractAddr},
		Topics: [][]ethcommon.Hash{
			{proofSubmittedTopic},
			{sessionTopic},
		},
	}

	logs, err := c.backend.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to scan proof events: %w", err)
	}

	args := proofEventArguments()
	entries := make([]checkpoint.LedgerCheckpointEntry, 0, len(logs))
	for _, log := range logs {
		if len(log.Topics) < 3 {
			c.logger.Warn().
				Str("tx_hash", log.TxHash.Hex()).
				Int("topics", len(log.Topics)).
				Msg("skipping proof event with missing indexed fields")
			continue
		}

		values, err := args.Unpack(log.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode proof event in tx %s: %w", log.TxHash.Hex(), err)
		}

		index, ok := values[0].(*big.Int)
		if !ok {
			return nil, fmt.Errorf("unexpected checkpointIndex type %T", values[0])
		}
		tokensClaimed, ok := values[1].(*big.Int)
		if !ok {
			return nil, fmt.Errorf("unexpected tokensClaimed type %T", values[1])
		}
		proofHash, ok := values[2].([32]byte)
		if !ok {
			return nil, fmt.Errorf("unexpected proofHash type %T", values[2])
		}
		deltaCID, ok := values[3].(string)
		if !ok {
			return nil, fmt.Errorf("unexpected deltaCid type %T", values[3])
		}

		entries = append(entries, checkpoint.LedgerCheckpointEntry{
			SessionID:       sessionID,
			Host:            ethcommon.BytesToAddress(log.Topics[2].Bytes()),
			CheckpointIndex: index.Uint64(),
			TokensClaimed:   tokensClaimed.Uint64(),
			ProofHash:       ethcommon.Hash(proofHash),
			DeltaCID:        deltaCID,
			BlockNumber:     log.BlockNumber,
			TxHash:          log.TxHash,
		})
	}

	if len(entries) > 0 {
		c.logger.Debug().
			Str("session_id", sessionID).
			Int("events", len(entries)).
			Msg("scanned checkpoint proof events")
	}
	return entries, nil
}
