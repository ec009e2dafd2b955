package discovery

import (
	"context"

	"github.com/rs/zerolog"

	rcerrors "github.com/axonmesh/axon-go/errors"
)

// Selector applies the strategy selection policy. The ledger-derived path is
// preferred whenever the session's events carry delta identifiers; the
// host-served path is a fallback for legacy sessions only, because its
// content is spoofable and it requires host liveness.
type Selector struct {
	ledgerStrategy Strategy
	// hostStrategy is nil when the session metadata carries no host endpoint.
	hostStrategy Strategy
	logger       zerolog.Logger
}

// NewSelector builds a selector over the two strategies. hostStrategy may be
// nil when no host endpoint is known.
func NewSelector(ledgerStrategy, hostStrategy Strategy, logger zerolog.Logger) *Selector {
	return &Selector{
		ledgerStrategy: ledgerStrategy,
		hostStrategy:   hostStrategy,
		logger:         logger.With().Str("component", "discovery_selector").Logger(),
	}
}

// Discover resolves the session's checkpoint entries according to mode.
func (s *Selector) Discover(ctx context.Context, sessionID string, mode Mode) (*Result, error) {
	switch mode {
	case ModeLedger:
		return s.ledgerStrategy.Discover(ctx, sessionID)
	case ModeHost:
		return s.discoverViaHost(ctx, sessionID, false)
	case ModeAuto, "":
	default:
		return nil, rcerrors.Newf(rcerrors.KindCheckpointFetchFailed,
			"unknown discovery mode %q", mode)
	}

	ledgerResult, err := s.ledgerStrategy.Discover(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !ledgerResult.Empty() {
		return ledgerResult, nil
	}

	if ledgerResult.LegacyOnly {
		// The ledger knows the session but anchors no deltas. Only the host
		// can serve it, and an unreachable host leaves nothing to recover.
		s.logger.Info().
			Str("session_id", sessionID).
			Msg("legacy session without ledger-anchored deltas, falling back to host index")
		return s.discoverViaHost(ctx, sessionID, true)
	}

	// No proof events at all. The host may still hold an index that has not
	// been anchored yet; its absence there too is a valid empty outcome.
	if s.hostStrategy == nil {
		return ledgerResult, nil
	}
	return s.hostStrategy.Discover(ctx, sessionID)
}

// discoverViaHost queries the host strategy. When legacy is set, a missing
// or unreachable host is terminal (RecoveryUnavailable) rather than a
// retryable transport failure, because no other path exists for the session.
func (s *Selector) discoverViaHost(ctx context.Context, sessionID string, legacy bool) (*Result, error) {
	if s.hostStrategy == nil {
		if legacy {
			return nil, rcerrors.New(rcerrors.KindRecoveryUnavailable,
				"legacy session has no ledger-anchored deltas and no host endpoint is known")
		}
		return nil, rcerrors.New(rcerrors.KindCheckpointFetchFailed,
			"no host endpoint is known for the session")
	}

	result, err := s.hostStrategy.Discover(ctx, sessionID)
	if err != nil {
		if legacy && rcerrors.IsKind(err, rcerrors.KindCheckpointFetchFailed) {
			return nil, rcerrors.New(rcerrors.KindRecoveryUnavailable,
				"legacy session has no ledger-anchored deltas and the host is unreachable").
				WithCause(err)
		}
		return nil, err
	}
	return result, nil
}
