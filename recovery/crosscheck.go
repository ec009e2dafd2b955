package recovery

import (
	"context"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/axonmesh/axon-go/checkpoint"
	rcerrors "github.com/axonmesh/axon-go/errors"
	"github.com/axonmesh/axon-go/sigverify"
)

// proofReader is the ledger-query surface the cross-checker needs.
type proofReader interface {
	GetCheckpointProof(ctx context.Context, sessionID string, index uint64) (ethcommon.Hash, bool, error)
}

// CrossChecker validates a host-served checkpoint index before any content
// is fetched: the index signature must attribute to the host, and every
// listed commitment hash must match the ledger's recorded proof. Entries are
// not independently signed, so one forged entry invalidates the whole index.
type CrossChecker struct {
	proofs proofReader
	logger zerolog.Logger
}

// NewCrossChecker creates an index cross-checker over a ledger proof reader.
func NewCrossChecker(proofs proofReader, logger zerolog.Logger) *CrossChecker {
	return &CrossChecker{
		proofs: proofs,
		logger: logger.With().Str("component", "index_crosscheck").Logger(),
	}
}

// VerifyIndex runs the full cross-check against the claimed host address.
// Ledger-derived indexes never pass through here; they are trusted by
// construction.
func (c *CrossChecker) VerifyIndex(ctx context.Context, index *checkpoint.CheckpointIndex, hostAddress ethcommon.Address) error {
	digest, err := sigverify.IndexEntriesDigest(index.Checkpoints)
	if err != nil {
		return rcerrors.New(rcerrors.KindInvalidIndexSignature,
			"failed to compute index digest").WithCause(err)
	}

	ok, err := sigverify.VerifyDigestSignature(index.Signature, digest, hostAddress)
	if err != nil {
		return rcerrors.New(rcerrors.KindInvalidIndexSignature,
			"index carries a malformed signature").
			WithField("signature").
			WithCause(err)
	}
	if !ok {
		return rcerrors.New(rcerrors.KindInvalidIndexSignature,
			"index signature does not match the host").
			WithField("signature")
	}

	if err := checkpoint.ValidateEntries(index.Checkpoints); err != nil {
		return err
	}

	for _, entry := range index.Checkpoints {
		recorded, found, err := c.proofs.GetCheckpointProof(ctx, index.SessionID, entry.Index)
		if err != nil {
			return rcerrors.Newf(rcerrors.KindCheckpointFetchFailed,
				"ledger proof query for checkpoint %d failed", entry.Index).
				WithCheckpoint(entry.Index).
				WithCause(err)
		}
		if !found {
			return rcerrors.New(rcerrors.KindProofHashMismatch,
				"ledger has no recorded proof for a listed checkpoint").
				WithCheckpoint(entry.Index).
				WithField("proofHash")
		}
		if recorded != entry.ProofHash {
			return rcerrors.Newf(rcerrors.KindProofHashMismatch,
				"index proof hash %s does not match ledger record %s",
				entry.ProofHash.Hex(), recorded.Hex()).
				WithCheckpoint(entry.Index).
				WithField("proofHash")
		}
	}

	c.logger.Debug().
		Str("session_id", index.SessionID).
		Int("entries", len(index.Checkpoints)).
		Msg("host index cross-checked against ledger")
	return nil
}
