package discovery

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/axonmesh/axon-go/checkpoint"
	"github.com/axonmesh/axon-go/ledger"
)

// LedgerStrategy derives the checkpoint index from the ledger's
// proof-submitted events. Never depends on host availability.
type LedgerStrategy struct {
	client *ledger.Client
	logger zerolog.Logger
}

// NewLedgerStrategy creates a ledger-derived discovery strategy.
func NewLedgerStrategy(client *ledger.Client, logger zerolog.Logger) *LedgerStrategy {
	return &LedgerStrategy{
		client: client,
		logger: logger.With().Str("component", "ledger_discovery").Logger(),
	}
}

// Name implements Strategy.
func (l *LedgerStrategy) Name() string {
	return string(OriginLedger)
}

// Discover scans the session's proof events and reprojects them into index
// entries. tokensClaimed is cumulative, so each entry's token range starts
// where the previous event's claim ended. Entries without a delta identifier
// (pre-upgrade sessions) are dropped, never errors; when every event lacks
// one the result is flagged LegacyOnly.
func (l *LedgerStrategy) Discover(ctx context.Context, sessionID string) (*Result, error) {
	events, err := l.client.ListProofEvents(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].CheckpointIndex < events[j].CheckpointIndex
	})

	// Token ranges are computed over all events, including pre-upgrade ones,
	// so a session that straddles the upgrade keeps correct offsets.
	entries := make([]checkpoint.CheckpointIndexEntry, 0, len(events))
	var prevClaimed uint64
	for _, ev := range events {
		entry := checkpoint.CheckpointIndexEntry{
			Index:      ev.CheckpointIndex,
			ProofHash:  ev.ProofHash,
			DeltaCID:   ev.DeltaCID,
			StartToken: prevClaimed,
			EndToken:   ev.TokensClaimed,
		}
		prevClaimed = ev.TokensClaimed

		if ev.DeltaCID == "" {
			continue
		}
		entries = append(entries, entry)
	}

	legacyOnly := len(events) > 0 && len(entries) == 0

	l.logger.Debug().
		Str("session_id", sessionID).
		Int("events", len(events)).
		Int("recoverable", len(entries)).
		Bool("legacy_only", legacyOnly).
		Msg("ledger discovery complete")

	return &Result{
		Origin:     OriginLedger,
		Entries:    entries,
		LegacyOnly: legacyOnly,
	}, nil
}
