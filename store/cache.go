package store

import (
	"encoding/json"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/axonmesh/axon-go/checkpoint"
)

// Cache persists recovered conversations and their checkpoint provenance.
type Cache struct {
	client *gorm.DB
}

// NewCache creates a cache over an open GORM client.
func NewCache(client *gorm.DB) *Cache {
	return &Cache{client: client}
}

// SaveRecoveredConversation upserts the conversation and its checkpoint
// provenance rows.
func (c *Cache) SaveRecoveredConversation(conv *checkpoint.RecoveredConversation, hostAddress, origin string) error {
	transcript, err := json.Marshal(conv)
	if err != nil {
		return errors.Wrap(err, "failed to serialize recovered conversation")
	}

	session := RecoveredSession{
		SessionID:       conv.SessionID,
		HostAddress:     hostAddress,
		Origin:          origin,
		TokenCount:      conv.TokenCount,
		MessageCount:    len(conv.Messages),
		CheckpointCount: len(conv.Checkpoints),
		Transcript:      transcript,
	}

	return c.client.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			UpdateAll: true,
		}).Create(&session).Error; err != nil {
			return errors.Wrap(err, "failed to save recovered session")
		}

		for _, entry := range conv.Checkpoints {
			record := CheckpointRecord{
				SessionID:       conv.SessionID,
				CheckpointIndex: entry.Index,
				ProofHash:       entry.ProofHash.Hex(),
				DeltaCID:        entry.DeltaCID,
				StartToken:      entry.StartToken,
				EndToken:        entry.EndToken,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "session_id"}, {Name: "checkpoint_index"}},
				UpdateAll: true,
			}).Create(&record).Error; err != nil {
				return errors.Wrapf(err, "failed to save checkpoint record %d", entry.Index)
			}
		}
		return nil
	})
}

// GetRecoveredConversation loads a cached conversation, returning
// (nil, nil) when none is cached for the session.
func (c *Cache) GetRecoveredConversation(sessionID string) (*checkpoint.RecoveredConversation, error) {
	var session RecoveredSession
	err := c.client.Where("session_id = ?", sessionID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load recovered session")
	}

	var conv checkpoint.RecoveredConversation
	if err := json.Unmarshal(session.Transcript, &conv); err != nil {
		return nil, errors.Wrap(err, "failed to decode cached transcript")
	}
	return &conv, nil
}

// ListCheckpointRecords returns the cached provenance rows for a session,
// ordered by checkpoint index.
func (c *Cache) ListCheckpointRecords(sessionID string) ([]CheckpointRecord, error) {
	var records []CheckpointRecord
	if err := c.client.
		Where("session_id = ?", sessionID).
		Order("checkpoint_index asc").
		Find(&records).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list checkpoint records")
	}
	return records, nil
}
