// Package fetch retrieves checkpoint delta payloads from the content store,
// validates their structure, and routes encrypted payloads to the decryptor.
// Fetches are independent per entry and run with bounded fan-out; order is
// restored before merging.
package fetch

import (
	"context"
	"sync"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"

	"github.com/axonmesh/axon-go/checkpoint"
	"github.com/axonmesh/axon-go/deltacrypt"
	rcerrors "github.com/axonmesh/axon-go/errors"
	"github.com/axonmesh/axon-go/sigverify"
)

// Fetcher pulls verified index entries' payloads from the content store.
type Fetcher struct {
	store       ContentStore
	concurrency int
	itemTimeout time.Duration
	logger      zerolog.Logger
}

// NewFetcher creates a fetcher with the given fan-out bound and per-item
// timeout. There is no internal retry; retry policy belongs to the caller.
func NewFetcher(store ContentStore, concurrency int, itemTimeout time.Duration, logger zerolog.Logger) *Fetcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Fetcher{
		store:       store,
		concurrency: concurrency,
		itemTimeout: itemTimeout,
		logger:      logger.With().Str("component", "delta_fetcher").Logger(),
	}
}

// FetchAll retrieves and verifies every entry's delta concurrently. The
// first failure cancels the remaining fetches and fails the whole batch;
// partial results are never returned. Output is ordered by checkpoint index.
func (f *Fetcher) FetchAll(
	ctx context.Context,
	entries []checkpoint.CheckpointIndexEntry,
	hostAddress ethcommon.Address,
	recipientPrivateKey []byte,
) ([]checkpoint.CheckpointDelta, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	sem := make(chan struct{}, f.concurrency)
	results := make([]*checkpoint.CheckpointDelta, len(entries))

	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for i, entry := range entries {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			fail(ctx.Err())
			break
		}

		wg.Add(1)
		go func(slot int, entry checkpoint.CheckpointIndexEntry) {
			defer wg.Done()
			defer func() { <-sem }()

			delta, err := f.fetchOne(ctx, entry, hostAddress, recipientPrivateKey)
			if err != nil {
				fail(err)
				return
			}
			results[slot] = delta
		}(i, entry)
	}

	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}

	deltas := make([]checkpoint.CheckpointDelta, len(results))
	for i, delta := range results {
		deltas[i] = *delta
	}
	return deltas, nil
}

// fetchOne retrieves one entry's payload and runs the full per-delta
// verification chain.
func (f *Fetcher) fetchOne(
	ctx context.Context,
	entry checkpoint.CheckpointIndexEntry,
	hostAddress ethcommon.Address,
	recipientPrivateKey []byte,
) (*checkpoint.CheckpointDelta, error) {
	if entry.DeltaCID == "" {
		return nil, rcerrors.New(rcerrors.KindInvalidDeltaStructure,
			"index entry has no delta content identifier").
			WithCheckpoint(entry.Index).
			WithField("deltaCid")
	}

	fetchCtx := ctx
	if f.itemTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, f.itemTimeout)
		defer cancel()
	}

	raw, err := f.store.Get(fetchCtx, entry.DeltaCID)
	if err != nil {
		return nil, rcerrors.Newf(rcerrors.KindDeltaFetchFailed,
			"failed to fetch delta %s", entry.DeltaCID).
			WithCheckpoint(entry.Index).
			WithCause(err)
	}

	envelope, err := checkpoint.DecodeDeltaEnvelope(raw)
	if err != nil {
		return nil, rcerrors.New(rcerrors.KindInvalidDeltaStructure,
			"delta payload is malformed").
			WithCheckpoint(entry.Index).
			WithCause(err)
	}

	var delta *checkpoint.CheckpointDelta
	if envelope.IsEncrypted() {
		delta, err = f.openEncrypted(envelope.Encrypted, entry, hostAddress, recipientPrivateKey)
	} else {
		delta, err = f.verifyPlaintext(envelope.Plain, entry, hostAddress)
	}
	if err != nil {
		return nil, err
	}

	f.logger.Debug().
		Uint64("checkpoint", entry.Index).
		Str("cid", entry.DeltaCID).
		Bool("encrypted", envelope.IsEncrypted()).
		Int("messages", len(delta.Messages)).
		Msg("delta fetched and verified")
	return delta, nil
}

// openEncrypted verifies the ciphertext signature, decrypts, and validates
// the recovered plaintext delta.
func (f *Fetcher) openEncrypted(
	enc *checkpoint.EncryptedCheckpointDelta,
	entry checkpoint.CheckpointIndexEntry,
	hostAddress ethcommon.Address,
	recipientPrivateKey []byte,
) (*checkpoint.CheckpointDelta, error) {
	// The host signs the ciphertext, so attribution is checked before any
	// key material is touched.
	ctDigest := crypto.Keccak256Hash(enc.Ciphertext)
	ok, err := sigverify.VerifyDigestSignature(enc.HostSignature, ctDigest, hostAddress)
	if err != nil {
		return nil, rcerrors.New(rcerrors.KindInvalidDeltaSignature,
			"encrypted delta carries a malformed host signature").
			WithCheckpoint(entry.Index).
			WithField("hostSignature").
			WithCause(err)
	}
	if !ok {
		return nil, rcerrors.New(rcerrors.KindInvalidDeltaSignature,
			"encrypted delta signature does not match the host").
			WithCheckpoint(entry.Index).
			WithField("hostSignature")
	}

	delta, err := deltacrypt.Decrypt(enc, recipientPrivateKey)
	if err != nil {
		if recErr, isRec := rcerrors.AsRecoveryError(err); isRec && recErr.CheckpointIndex == rcerrors.NoIndex {
			recErr.CheckpointIndex = entry.Index
		}
		return nil, err
	}

	return f.checkDeltaAgainstEntry(delta, entry)
}

// verifyPlaintext validates a plaintext delta and its host signature, which
// covers the commitment digest.
func (f *Fetcher) verifyPlaintext(
	delta *checkpoint.CheckpointDelta,
	entry checkpoint.CheckpointIndexEntry,
	hostAddress ethcommon.Address,
) (*checkpoint.CheckpointDelta, error) {
	ok, err := sigverify.VerifyDigestSignature(delta.HostSignature, delta.ProofHash, hostAddress)
	if err != nil {
		return nil, rcerrors.New(rcerrors.KindInvalidDeltaSignature,
			"delta carries a malformed host signature").
			WithCheckpoint(entry.Index).
			WithField("hostSignature").
			WithCause(err)
	}
	if !ok {
		return nil, rcerrors.New(rcerrors.KindInvalidDeltaSignature,
			"delta signature does not match the host").
			WithCheckpoint(entry.Index).
			WithField("hostSignature")
	}

	return f.checkDeltaAgainstEntry(delta, entry)
}

// checkDeltaAgainstEntry runs the structural checks and binds the delta to
// its verified index entry: matching checkpoint index, matching commitment
// hash, and a commitment that recomputes from the actual content.
func (f *Fetcher) checkDeltaAgainstEntry(
	delta *checkpoint.CheckpointDelta,
	entry checkpoint.CheckpointIndexEntry,
) (*checkpoint.CheckpointDelta, error) {
	if err := checkpoint.ValidateDelta(delta); err != nil {
		return nil, err
	}
	if delta.CheckpointIndex != entry.Index {
		return nil, rcerrors.Newf(rcerrors.KindInvalidDeltaStructure,
			"delta claims checkpoint %d but was listed under %d",
			delta.CheckpointIndex, entry.Index).
			WithCheckpoint(entry.Index).
			WithField("checkpointIndex")
	}
	if delta.ProofHash != entry.ProofHash {
		return nil, rcerrors.New(rcerrors.KindProofHashMismatch,
			"delta proof hash does not match the verified index entry").
			WithCheckpoint(entry.Index).
			WithField("proofHash")
	}

	computed, err := sigverify.CommitmentHash(delta.Messages, delta.TokenCount())
	if err != nil {
		return nil, rcerrors.New(rcerrors.KindInvalidDeltaStructure,
			"failed to recompute commitment hash").
			WithCheckpoint(entry.Index).
			WithCause(err)
	}
	if computed != delta.ProofHash {
		return nil, rcerrors.New(rcerrors.KindProofHashMismatch,
			"delta content does not recompute to its proof hash").
			WithCheckpoint(entry.Index).
			WithField("proofHash")
	}
	return delta, nil
}
