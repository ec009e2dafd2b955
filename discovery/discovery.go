// Package discovery resolves a session's checkpoint index. Two strategies
// with one output shape: a host-served query endpoint (weaker: spoofable
// content, requires host liveness) and a ledger-derived event scan (stronger:
// the ledger is the source of truth and outlives the host). The selector
// prefers the ledger whenever it carries delta identifiers; this ordering is
// a security property, not an optimization.
package discovery

import (
	"context"

	"github.com/axonmesh/axon-go/checkpoint"
)

// Origin tags which strategy produced a discovery result. Host-served
// results must pass the full index cross-check before any content is
// fetched; ledger-derived entries are trusted by construction.
type Origin string

const (
	OriginLedger Origin = "ledger"
	OriginHost   Origin = "host"
)

// Mode selects the discovery strategy.
type Mode string

const (
	// ModeAuto applies the selection policy: ledger first, host fallback for
	// legacy sessions only.
	ModeAuto Mode = "auto"
	// ModeLedger forces the ledger-derived strategy.
	ModeLedger Mode = "ledger"
	// ModeHost forces the host-served strategy.
	ModeHost Mode = "host"
)

// Result is the common output of both strategies.
type Result struct {
	Origin  Origin
	Entries []checkpoint.CheckpointIndexEntry

	// Index carries the signed host index for host-served results; nil for
	// ledger-derived results.
	Index *checkpoint.CheckpointIndex

	// LegacyOnly is set by the ledger strategy when proof events exist but
	// none carries a delta identifier (session predates ledger-anchored
	// deltas). The host-served path is then the only possible source.
	LegacyOnly bool
}

// Empty reports the valid no-checkpoints outcome.
func (r *Result) Empty() bool {
	return len(r.Entries) == 0
}

// Strategy discovers a session's checkpoint entries.
type Strategy interface {
	Name() string
	Discover(ctx context.Context, sessionID string) (*Result, error)
}
