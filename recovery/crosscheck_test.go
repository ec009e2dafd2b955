package recovery

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/axonmesh/axon-go/checkpoint"
	rcerrors "github.com/axonmesh/axon-go/errors"
	"github.com/axonmesh/axon-go/sigverify"
)

type fakeProofReader struct {
	proofs map[uint64]ethcommon.Hash
	err    error
}

func (f *fakeProofReader) GetCheckpointProof(_ context.Context, _ string, index uint64) (ethcommon.Hash, bool, error) {
	if f.err != nil {
		return ethcommon.Hash{}, false, f.err
	}
	hash, ok := f.proofs[index]
	return hash, ok, nil
}

func signedIndex(t *testing.T, key *ecdsa.PrivateKey, entries []checkpoint.CheckpointIndexEntry) *checkpoint.CheckpointIndex {
	t.Helper()
	digest, err := sigverify.IndexEntriesDigest(entries)
	require.NoError(t, err)
	sig, err := crypto.Sign(digest.Bytes(), key)
	require.NoError(t, err)

	return &checkpoint.CheckpointIndex{
		SessionID:   "sess-1",
		HostAddress: crypto.PubkeyToAddress(key.PublicKey),
		Checkpoints: entries,
		Signature:   sig,
	}
}

func TestVerifyIndex(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	hostAddr := crypto.PubkeyToAddress(key.PublicKey)

	hashA := crypto.Keccak256Hash([]byte("proof-a"))
	hashB := crypto.Keccak256Hash([]byte("proof-b"))
	entries := []checkpoint.CheckpointIndexEntry{
		{Index: 0, ProofHash: hashA, DeltaCID: "cid-0", StartToken: 0, EndToken: 1000},
		{Index: 1, ProofHash: hashB, DeltaCID: "cid-1", StartToken: 1000, EndToken: 1563},
	}

	t.Run("accepts a signed index whose proofs match the ledger", func(t *testing.T) {
		checker := NewCrossChecker(&fakeProofReader{
			proofs: map[uint64]ethcommon.Hash{0: hashA, 1: hashB},
		}, zerolog.Nop())

		err := checker.VerifyIndex(context.Background(), signedIndex(t, key, entries), hostAddr)
		require.NoError(t, err)
	})

	t.Run("rejects an index signed by another key", func(t *testing.T) {
		otherKey, err := crypto.GenerateKey()
		require.NoError(t, err)

		checker := NewCrossChecker(&fakeProofReader{
			proofs: map[uint64]ethcommon.Hash{0: hashA, 1: hashB},
		}, zerolog.Nop())

		err = checker.VerifyIndex(context.Background(), signedIndex(t, otherKey, entries), hostAddr)
		require.True(t, rcerrors.IsKind(err, rcerrors.KindInvalidIndexSignature))
	})

	t.Run("rejects a tampered entry", func(t *testing.T) {
		index := signedIndex(t, key, entries)
		index.Checkpoints[1].EndToken = 9999
		defer func() { index.Checkpoints[1].EndToken = 1563 }()

		checker := NewCrossChecker(&fakeProofReader{
			proofs: map[uint64]ethcommon.Hash{0: hashA, 1: hashB},
		}, zerolog.Nop())

		err := checker.VerifyIndex(context.Background(), index, hostAddr)
		require.True(t, rcerrors.IsKind(err, rcerrors.KindInvalidIndexSignature))
	})

	t.Run("rejects a proof hash the ledger does not record", func(t *testing.T) {
		forged := []checkpoint.CheckpointIndexEntry{
			{Index: 0, ProofHash: hashA, DeltaCID: "cid-0", StartToken: 0, EndToken: 1000},
			{Index: 1, ProofHash: crypto.Keccak256Hash([]byte("forged")), DeltaCID: "cid-1", StartToken: 1000, EndToken: 1563},
		}
		checker := NewCrossChecker(&fakeProofReader{
			proofs: map[uint64]ethcommon.Hash{0: hashA, 1: hashB},
		}, zerolog.Nop())

		err := checker.VerifyIndex(context.Background(), signedIndex(t, key, forged), hostAddr)
		recErr, ok := rcerrors.AsRecoveryError(err)
		require.True(t, ok)
		require.Equal(t, rcerrors.KindProofHashMismatch, recErr.Kind)
		require.Equal(t, uint64(1), recErr.CheckpointIndex)
	})

	t.Run("rejects an entry the ledger never anchored", func(t *testing.T) {
		checker := NewCrossChecker(&fakeProofReader{
			proofs: map[uint64]ethcommon.Hash{0: hashA},
		}, zerolog.Nop())

		err := checker.VerifyIndex(context.Background(), signedIndex(t, key, entries), hostAddr)
		require.True(t, rcerrors.IsKind(err, rcerrors.KindProofHashMismatch))
	})

	t.Run("maps ledger query failures", func(t *testing.T) {
		checker := NewCrossChecker(&fakeProofReader{err: fmt.Errorf("rpc down")}, zerolog.Nop())

		err := checker.VerifyIndex(context.Background(), signedIndex(t, key, entries), hostAddr)
		require.True(t, rcerrors.IsKind(err, rcerrors.KindCheckpointFetchFailed))
	})

	t.Run("rejects a structurally invalid entry set", func(t *testing.T) {
		gapped := []checkpoint.CheckpointIndexEntry{
			{Index: 0, ProofHash: hashA, DeltaCID: "cid-0", StartToken: 0, EndToken: 1000},
			{Index: 1, ProofHash: hashB, DeltaCID: "cid-1", StartToken: 1200, EndToken: 1563},
		}
		checker := NewCrossChecker(&fakeProofReader{
			proofs: map[uint64]ethcommon.Hash{0: hashA, 1: hashB},
		}, zerolog.Nop())

		err := checker.VerifyIndex(context.Background(), signedIndex(t, key, gapped), hostAddr)
		require.Error(t, err)
	})
}
