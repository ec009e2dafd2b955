// Package sigverify implements the primitive verification layer: EIP-191
// personal-sign signature verification and deterministic commitment hashing
// over canonicalized message lists.
package sigverify

import (
	"encoding/json"
	"fmt"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gowebpki/jcs"

	"github.com/axonmesh/axon-go/checkpoint"
	rcerrors "github.com/axonmesh/axon-go/errors"
)

// SignatureLength is the expected r||s||v signature encoding length.
const SignatureLength = 65

// TextHash computes the EIP-191 personal-sign digest of a message.
func TextHash(message []byte) ethcommon.Hash {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	return crypto.Keccak256Hash([]byte(prefixed))
}

// VerifySignature recovers the signer of an EIP-191 personal-sign signature
// and compares it to expectedSigner. A 32-byte message is treated as a
// precomputed digest; anything else is hashed as raw text.
//
// Fails closed: a malformed signature payload yields (false, nil), except for
// a structurally invalid length which is a MalformedSignature error.
func VerifySignature(signature, message []byte, expectedSigner ethcommon.Address) (bool, error) {
	if len(message) == ethcommon.HashLength {
		return VerifyDigestSignature(signature, ethcommon.BytesToHash(message), expectedSigner)
	}
	return VerifyDigestSignature(signature, TextHash(message), expectedSigner)
}

// VerifyDigestSignature verifies a signature over a precomputed 32-byte digest.
func VerifyDigestSignature(signature []byte, digest ethcommon.Hash, expectedSigner ethcommon.Address) (bool, error) {
	if len(signature) != SignatureLength {
		return false, rcerrors.Newf(rcerrors.KindMalformedSignature,
			"signature must be %d bytes, got %d", SignatureLength, len(signature))
	}

	// Normalize the recovery id: wallets emit V as 27/28, secp256k1 wants 0/1.
	sig := make([]byte, SignatureLength)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return false, nil
	}

	pubKey, err := crypto.SigToPub(digest.Bytes(), sig)
	if err != nil {
		return false, nil
	}

	recovered := crypto.PubkeyToAddress(*pubKey)
	return recovered == expectedSigner, nil
}

// commitmentPayload is the canonical input of a commitment hash. Field names
// are part of the wire contract with the host side.
type commitmentPayload struct {
	Messages   []checkpoint.Message `json:"messages"`
	TokenCount uint64               `json:"tokenCount"`
}

// CommitmentHash computes the deterministic commitment digest over a message
// list and token count: Keccak-256 of the RFC 8785 canonical JSON of
// {"messages": ..., "tokenCount": ...}. Pure: identical logical input always
// yields an identical digest. An empty message list is valid.
func CommitmentHash(messages []checkpoint.Message, tokenCount uint64) (ethcommon.Hash, error) {
	if messages == nil {
		messages = []checkpoint.Message{}
	}
	raw, err := json.Marshal(commitmentPayload{Messages: messages, TokenCount: tokenCount})
	if err != nil {
		return ethcommon.Hash{}, fmt.Errorf("failed to serialize commitment payload: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return ethcommon.Hash{}, fmt.Errorf("failed to canonicalize commitment payload: %w", err)
	}
	return crypto.Keccak256Hash(canonical), nil
}

// IndexEntriesDigest computes the digest a host signs over its checkpoint
// index: Keccak-256 of the canonical JSON of the entry list.
func IndexEntriesDigest(entries []checkpoint.CheckpointIndexEntry) (ethcommon.Hash, error) {
	if entries == nil {
		entries = []checkpoint.CheckpointIndexEntry{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return ethcommon.Hash{}, fmt.Errorf("failed to serialize index entries: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return ethcommon.Hash{}, fmt.Errorf("failed to canonicalize index entries: %w", err)
	}
	return crypto.Keccak256Hash(canonical), nil
}
