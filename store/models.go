// Package store contains the GORM-backed SQLite models and helpers for the
// SDK's optional cache of recovered conversations. Recovery is a pure read
// path; callers decide whether to persist its results here.
package store

import (
	"gorm.io/gorm"
)

// RecoveredSession caches the terminal artifact of a successful recovery.
// One record per session; re-recovering replaces the row.
type RecoveredSession struct {
	gorm.Model
	SessionID       string `gorm:"uniqueIndex;not null"` // Session identifier
	HostAddress     string // Host the checkpoints are attributed to
	Origin          string // "ledger" or "host" discovery origin
	TokenCount      uint64 // Total recovered token count
	MessageCount    int    // Number of merged messages
	CheckpointCount int    // Number of contributing checkpoints
	Transcript      []byte // JSON-encoded RecoveredConversation
}

// CheckpointRecord caches the provenance of one contributing checkpoint.
type CheckpointRecord struct {
	gorm.Model
	SessionID       string `gorm:"uniqueIndex:idx_session_checkpoint;not null"`
	CheckpointIndex uint64 `gorm:"uniqueIndex:idx_session_checkpoint;not null"`
	ProofHash       string // 0x-hex commitment hash as recorded on the ledger
	DeltaCID        string // Content identifier of the delta payload
	StartToken      uint64
	EndToken        uint64
}
