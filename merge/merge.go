// Package merge combines an ordered set of verified checkpoint deltas into a
// single conversation transcript with correct token accounting and message
// continuation.
package merge

import (
	"sort"

	"github.com/axonmesh/axon-go/checkpoint"
	rcerrors "github.com/axonmesh/axon-go/errors"
)

// Result is the merged transcript.
type Result struct {
	Messages   []checkpoint.Message
	TokenCount uint64
}

// Merge sorts deltas by checkpoint index and concatenates their message
// lists. A delta whose leading message is flagged as a continuation of the
// previous delta's trailing message (same role) is spliced into that message
// rather than appended; this models responses checkpointed mid-generation.
//
// Token ranges must be contiguous: a gap is a hard error, because an
// under-reported transcript is worse than an explicit failure in a dispute.
// The summed count is also checked against lastEnd-firstStart.
func Merge(deltas []checkpoint.CheckpointDelta) (*Result, error) {
	if len(deltas) == 0 {
		return &Result{Messages: []checkpoint.Message{}}, nil
	}

	sorted := make([]checkpoint.CheckpointDelta, len(deltas))
	copy(sorted, deltas)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].CheckpointIndex < sorted[j].CheckpointIndex
	})

	var (
		messages   []checkpoint.Message
		tokenCount uint64
	)
	for i, delta := range sorted {
		if i > 0 {
			prev := sorted[i-1]
			if delta.CheckpointIndex == prev.CheckpointIndex {
				return nil, rcerrors.Newf(rcerrors.KindInvalidDeltaStructure,
					"duplicate checkpoint index %d", delta.CheckpointIndex).
					WithCheckpoint(delta.CheckpointIndex).
					WithField("checkpointIndex")
			}
			if delta.StartToken != prev.EndToken {
				return nil, rcerrors.Newf(rcerrors.KindInvalidDeltaStructure,
					"token range gap: checkpoint %d ends at %d but checkpoint %d starts at %d",
					prev.CheckpointIndex, prev.EndToken, delta.CheckpointIndex, delta.StartToken).
					WithCheckpoint(delta.CheckpointIndex).
					WithField("startToken")
			}
		}

		for j, msg := range delta.Messages {
			if j == 0 && msg.Continuation && len(messages) > 0 &&
				messages[len(messages)-1].Role == msg.Role {
				last := &messages[len(messages)-1]
				last.Content += msg.Content
				last.Tokens += msg.Tokens
				continue
			}
			appended := msg
			appended.Continuation = false
			messages = append(messages, appended)
		}

		tokenCount += delta.TokenCount()
	}

	first := sorted[0]
	last := sorted[len(sorted)-1]
	if span := last.EndToken - first.StartToken; tokenCount != span {
		return nil, rcerrors.Newf(rcerrors.KindInvalidDeltaStructure,
			"merged token count %d does not cover the range width %d", tokenCount, span).
			WithField("tokenCount")
	}

	if messages == nil {
		messages = []checkpoint.Message{}
	}
	return &Result{Messages: messages, TokenCount: tokenCount}, nil
}
