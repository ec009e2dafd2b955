// Package checkpoint defines the wire types shared by the recovery engine.
//
// Field names and hex encodings are the wire format produced by the host
// side; they must be parsed bit-exactly. Binary fields are 0x-prefixed hex.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"sort"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Message roles used in conversation transcripts.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one conversation message inside a delta.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	// Tokens is the number of tokens attributable to this message within its
	// delta. Zero means the host did not annotate per-message counts.
	Tokens uint64 `json:"tokens,omitempty"`
	// Continuation marks the message as continuing the previous delta's
	// trailing message of the same role (a response checkpointed
	// mid-generation).
	Continuation bool `json:"continuation,omitempty"`
}

// CheckpointIndexEntry is one row of a host-published checkpoint index.
type CheckpointIndexEntry struct {
	Index      uint64         `json:"index"`
	ProofHash  ethcommon.Hash `json:"proofHash"`
	DeltaCID   string         `json:"deltaCid"`
	StartToken uint64         `json:"startToken"`
	EndToken   uint64         `json:"endToken"`
	Timestamp  uint64         `json:"timestamp"`
}

// CheckpointIndex is a host-served list of checkpoint entries for a session,
// signed by the host over the canonical serialization of the entry list.
type CheckpointIndex struct {
	SessionID   string                 `json:"sessionId"`
	HostAddress ethcommon.Address      `json:"hostAddress"`
	Checkpoints []CheckpointIndexEntry `json:"checkpoints"`
	Signature   hexutil.Bytes          `json:"signature"`
}

// CheckpointDelta is the plaintext incremental content of one checkpoint.
type CheckpointDelta struct {
	SessionID       string         `json:"sessionId"`
	CheckpointIndex uint64         `json:"checkpointIndex"`
	ProofHash       ethcommon.Hash `json:"proofHash"`
	StartToken      uint64         `json:"startToken"`
	EndToken        uint64         `json:"endToken"`
	Messages        []Message      `json:"messages"`
	HostSignature   hexutil.Bytes  `json:"hostSignature"`
}

// TokenCount returns the half-open token range width of the delta.
func (d *CheckpointDelta) TokenCount() uint64 {
	if d.EndToken < d.StartToken {
		return 0
	}
	return d.EndToken - d.StartToken
}

// EncryptedCheckpointDelta is the encrypted variant of CheckpointDelta. The
// ephemeral public key is fresh per checkpoint (forward secrecy) and the host
// signature covers the ciphertext, not the plaintext.
type EncryptedCheckpointDelta struct {
	Encrypted          bool          `json:"encrypted"`
	Version            uint8         `json:"version"`
	RecipientPublicKey hexutil.Bytes `json:"recipientPublicKey"`
	EphemeralPublicKey hexutil.Bytes `json:"ephemeralPublicKey"`
	Nonce              hexutil.Bytes `json:"nonce"`
	Ciphertext         hexutil.Bytes `json:"ciphertext"`
	HostSignature      hexutil.Bytes `json:"hostSignature"`
}

// DeltaEnvelope is the tagged union of the two delta variants, discriminated
// by the "encrypted" field on the wire.
type DeltaEnvelope struct {
	Plain     *CheckpointDelta
	Encrypted *EncryptedCheckpointDelta
}

// IsEncrypted reports whether the envelope holds the encrypted variant.
func (e *DeltaEnvelope) IsEncrypted() bool {
	return e.Encrypted != nil
}

// DecodeDeltaEnvelope decodes a raw delta payload into the appropriate
// variant. Absence of the "encrypted" flag means plaintext (backward
// compatibility with pre-encryption hosts).
func DecodeDeltaEnvelope(raw []byte) (*DeltaEnvelope, error) {
	var tag struct {
		Encrypted bool `json:"encrypted"`
	}
	if err := json.Unmarshal(raw, &tag); err != nil {
		return nil, fmt.Errorf("failed to decode delta payload: %w", err)
	}

	if tag.Encrypted {
		var enc EncryptedCheckpointDelta
		if err := json.Unmarshal(raw, &enc); err != nil {
			return nil, fmt.Errorf("failed to decode encrypted delta: %w", err)
		}
		return &DeltaEnvelope{Encrypted: &enc}, nil
	}

	var plain CheckpointDelta
	if err := json.Unmarshal(raw, &plain); err != nil {
		return nil, fmt.Errorf("failed to decode plaintext delta: %w", err)
	}
	return &DeltaEnvelope{Plain: &plain}, nil
}

// LedgerCheckpointEntry is the ledger-derived counterpart of a checkpoint
// index entry, projected from a proof-submitted event. Read-only.
type LedgerCheckpointEntry struct {
	SessionID       string
	Host            ethcommon.Address
	CheckpointIndex uint64
	TokensClaimed   uint64
	ProofHash       ethcommon.Hash
	DeltaCID        string
	BlockNumber     uint64
	TxHash          ethcommon.Hash
}

// RecoveredConversation is the terminal artifact of a successful recovery.
// Immutable once returned.
type RecoveredConversation struct {
	SessionID   string                 `json:"sessionId"`
	Messages    []Message              `json:"messages"`
	TokenCount  uint64                 `json:"tokenCount"`
	Checkpoints []CheckpointIndexEntry `json:"checkpoints"`
}

// SortEntries orders entries by index ascending, in place.
func SortEntries(entries []CheckpointIndexEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Index < entries[j].Index
	})
}
