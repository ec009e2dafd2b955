package checkpoint

import (
	ethcommon "github.com/ethereum/go-ethereum/common"

	rcerrors "github.com/axonmesh/axon-go/errors"
)

// ValidateEntries checks the index invariants: entries unique by index and,
// once sorted, token ranges contiguous (entry k+1 starts where entry k ends).
// The input slice is sorted in place. An empty list is valid.
func ValidateEntries(entries []CheckpointIndexEntry) error {
	SortEntries(entries)

	for i, entry := range entries {
		if entry.EndToken < entry.StartToken {
			return rcerrors.Newf(rcerrors.KindInvalidDeltaStructure,
				"token range end %d precedes start %d", entry.EndToken, entry.StartToken).
				WithCheckpoint(entry.Index).
				WithField("tokenRange")
		}
		if i == 0 {
			continue
		}
		prev := entries[i-1]
		if entry.Index == prev.Index {
			return rcerrors.Newf(rcerrors.KindInvalidDeltaStructure,
				"duplicate checkpoint index %d", entry.Index).
				WithCheckpoint(entry.Index).
				WithField("index")
		}
		if entry.StartToken != prev.EndToken {
			return rcerrors.Newf(rcerrors.KindInvalidDeltaStructure,
				"token range gap: checkpoint %d ends at %d but checkpoint %d starts at %d",
				prev.Index, prev.EndToken, entry.Index, entry.StartToken).
				WithCheckpoint(entry.Index).
				WithField("startToken")
		}
	}
	return nil
}

// ValidateDelta checks the structural invariants of a plaintext delta:
// required fields present, a sane token range, and, when the host annotated
// per-message token counts, their sum matching the range width.
func ValidateDelta(delta *CheckpointDelta) error {
	if delta == nil {
		return rcerrors.New(rcerrors.KindInvalidDeltaStructure, "delta is nil")
	}
	if delta.SessionID == "" {
		return rcerrors.New(rcerrors.KindInvalidDeltaStructure, "missing session id").
			WithCheckpoint(delta.CheckpointIndex).
			WithField("sessionId")
	}
	if delta.EndToken < delta.StartToken {
		return rcerrors.Newf(rcerrors.KindInvalidDeltaStructure,
			"token range end %d precedes start %d", delta.EndToken, delta.StartToken).
			WithCheckpoint(delta.CheckpointIndex).
			WithField("endToken")
	}
	if delta.ProofHash == (ethcommon.Hash{}) {
		return rcerrors.New(rcerrors.KindInvalidDeltaStructure, "missing proof hash").
			WithCheckpoint(delta.CheckpointIndex).
			WithField("proofHash")
	}
	if delta.Messages == nil {
		return rcerrors.New(rcerrors.KindInvalidDeltaStructure, "missing messages").
			WithCheckpoint(delta.CheckpointIndex).
			WithField("messages")
	}

	var tokenSum uint64
	annotated := false
	for i, msg := range delta.Messages {
		if msg.Role == "" {
			return rcerrors.Newf(rcerrors.KindInvalidDeltaStructure,
				"message %d has no role", i).
				WithCheckpoint(delta.CheckpointIndex).
				WithField("messages")
		}
		if msg.Tokens > 0 {
			annotated = true
		}
		tokenSum += msg.Tokens
	}

	// Unannotated payloads (all zero token counts) predate per-message
	// accounting; the commitment hash still binds the total.
	if annotated && tokenSum != delta.TokenCount() {
		return rcerrors.Newf(rcerrors.KindInvalidDeltaStructure,
			"message token sum %d does not match token range width %d",
			tokenSum, delta.TokenCount()).
			WithCheckpoint(delta.CheckpointIndex).
			WithField("tokens")
	}
	return nil
}
