// Package recovery composes discovery, verification, fetching, decryption,
// and merging into the single operation exposed by the SDK:
// reconstructing a conversation from host-published, ledger-anchored
// checkpoints after an interrupted session.
//
// The state machine is
// START → DISCOVER → (no checkpoints: DONE-EMPTY) | VERIFY → FETCH_ALL →
// DECRYPT_AS_NEEDED → MERGE → DONE, with any state able to fail terminally
// instead of advancing. The engine is a pure read path over the ledger and
// the object store: calling it twice performs the same reads and yields the
// same result, modulo newly published checkpoints. A failing checkpoint is
// never dropped to merge the rest; partial, unverifiable conversations are
// worse than an explicit failure.
package recovery

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/axonmesh/axon-go/checkpoint"
	"github.com/axonmesh/axon-go/config"
	"github.com/axonmesh/axon-go/discovery"
	rcerrors "github.com/axonmesh/axon-go/errors"
	"github.com/axonmesh/axon-go/fetch"
	"github.com/axonmesh/axon-go/ledger"
	"github.com/axonmesh/axon-go/merge"
	"github.com/axonmesh/axon-go/metrics"
)

// Engine is the recovery orchestrator. Safe for concurrent use across
// sessions: it holds no session-crossing mutable state.
type Engine struct {
	cfg      *config.Config
	metadata SessionMetadataProvider
	ledger   *ledger.Client
	store    fetch.ContentStore
	logger   zerolog.Logger
}

// NewEngine wires the orchestrator over its external collaborators.
func NewEngine(
	cfg *config.Config,
	metadata SessionMetadataProvider,
	ledgerClient *ledger.Client,
	store fetch.ContentStore,
	logger zerolog.Logger,
) *Engine {
	return &Engine{
		cfg:      cfg,
		metadata: metadata,
		ledger:   ledgerClient,
		store:    store,
		logger:   logger.With().Str("component", "recovery_engine").Logger(),
	}
}

// RecoverConversation reconstructs the session's conversation from its
// checkpoints. A session with no checkpoints yields an empty conversation,
// not an error. The operation is cancellable through ctx; cancellation never
// produces a partial merge.
func (e *Engine) RecoverConversation(ctx context.Context, sessionID string, opts Options) (*checkpoint.RecoveredConversation, error) {
	metrics.RecoveryAttempts.Inc()
	started := time.Now()
	defer func() {
		metrics.RecoveryDuration.Observe(time.Since(started).Seconds())
	}()

	conversation, err := e.recover(ctx, sessionID, opts)
	if err != nil {
		kind := rcerrors.KindOf(err)
		label := string(kind)
		if label == "" {
			label = "INTERNAL"
		}
		metrics.RecoveryFailures.WithLabelValues(label).Inc()
		e.logger.Error().
			Err(err).
			Str("session_id", sessionID).
			Str("kind", label).
			Msg("recovery failed")
		return nil, err
	}

	metrics.RecoveredCheckpoints.Add(float64(len(conversation.Checkpoints)))
	e.logger.Info().
		Str("session_id", sessionID).
		Int("checkpoints", len(conversation.Checkpoints)).
		Int("messages", len(conversation.Messages)).
		Uint64("token_count", conversation.TokenCount).
		Msg("conversation recovered")
	return conversation, nil
}

func (e *Engine) recover(ctx context.Context, sessionID string, opts Options) (*checkpoint.RecoveredConversation, error) {
	meta, err := e.metadata.GetSessionMetadata(ctx, sessionID)
	if err != nil {
		return nil, rcerrors.New(rcerrors.KindSessionNotFound,
			"session metadata lookup failed").WithCause(err)
	}
	if meta == nil {
		return nil, rcerrors.Newf(rcerrors.KindSessionNotFound,
			"no metadata for session %s", sessionID)
	}

	// DISCOVER
	selector := e.buildSelector(meta)
	result, err := selector.Discover(ctx, sessionID, opts.Strategy)
	if err != nil {
		return nil, err
	}
	if result.Empty() {
		// DONE-EMPTY: the valid zero-checkpoint outcome.
		e.logger.Debug().Str("session_id", sessionID).Msg("session has no checkpoints")
		return emptyConversation(sessionID), nil
	}

	// VERIFY: gate fetching on a trusted index. Host-served indexes get the
	// full signature + ledger cross-check; ledger-derived entries only need
	// their structural invariants confirmed.
	if result.Origin == discovery.OriginHost {
		checker := NewCrossChecker(e.ledger, e.logger)
		if err := checker.VerifyIndex(ctx, result.Index, meta.HostAddress); err != nil {
			return nil, err
		}
	} else if err := checkpoint.ValidateEntries(result.Entries); err != nil {
		return nil, err
	}

	// FETCH_ALL / DECRYPT_AS_NEEDED
	fetcher := fetch.NewFetcher(
		e.store,
		e.cfg.FetchConcurrency,
		time.Duration(e.cfg.DeltaFetchTimeoutSeconds)*time.Second,
		e.logger,
	)
	deltas, err := fetcher.FetchAll(ctx, result.Entries, meta.HostAddress, opts.DecryptionKey)
	if err != nil {
		return nil, err
	}

	// MERGE
	merged, err := merge.Merge(deltas)
	if err != nil {
		return nil, err
	}

	return &checkpoint.RecoveredConversation{
		SessionID:   sessionID,
		Messages:    merged.Messages,
		TokenCount:  merged.TokenCount,
		Checkpoints: result.Entries,
	}, nil
}

func (e *Engine) buildSelector(meta *SessionMetadata) *discovery.Selector {
	ledgerStrategy := discovery.NewLedgerStrategy(e.ledger, e.logger)

	var hostStrategy discovery.Strategy
	if meta.HostEndpoint != "" {
		hostStrategy = discovery.NewHostStrategy(
			meta.HostEndpoint,
			time.Duration(e.cfg.HostQueryTimeoutSeconds)*time.Second,
			e.logger,
		)
	}
	return discovery.NewSelector(ledgerStrategy, hostStrategy, e.logger)
}

func emptyConversation(sessionID string) *checkpoint.RecoveredConversation {
	return &checkpoint.RecoveredConversation{
		SessionID:   sessionID,
		Messages:    []checkpoint.Message{},
		Checkpoints: []checkpoint.CheckpointIndexEntry{},
	}
}
