package store

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/axonmesh/axon-go/checkpoint"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	client, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, client.AutoMigrate(&RecoveredSession{}, &CheckpointRecord{}))
	return client
}

func sampleConversation() *checkpoint.RecoveredConversation {
	hashA := crypto.Keccak256Hash([]byte("proof-a"))
	hashB := crypto.Keccak256Hash([]byte("proof-b"))

	return &checkpoint.RecoveredConversation{
		SessionID: "sess-1",
		Messages: []checkpoint.Message{
			{Role: checkpoint.RoleUser, Content: "hello", Tokens: 400},
			{Role: checkpoint.RoleAssistant, Content: "hi there", Tokens: 1163},
		},
		TokenCount: 1563,
		Checkpoints: []checkpoint.CheckpointIndexEntry{
			{Index: 0, ProofHash: hashA, DeltaCID: "cid-0", StartToken: 0, EndToken: 1000},
			{Index: 1, ProofHash: hashB, DeltaCID: "cid-1", StartToken: 1000, EndToken: 1563},
		},
	}
}

func TestCacheRoundTrip(t *testing.T) {
	cache := NewCache(testDB(t))
	conv := sampleConversation()

	require.NoError(t, cache.SaveRecoveredConversation(conv, "0xhost", "ledger"))

	loaded, err := cache.GetRecoveredConversation("sess-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, conv.SessionID, loaded.SessionID)
	require.Equal(t, conv.TokenCount, loaded.TokenCount)
	require.Equal(t, conv.Messages, loaded.Messages)
	require.Len(t, loaded.Checkpoints, 2)

	records, err := cache.ListCheckpointRecords("sess-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, uint64(0), records[0].CheckpointIndex)
	require.Equal(t, conv.Checkpoints[0].ProofHash.Hex(), records[0].ProofHash)
	require.Equal(t, "cid-1", records[1].DeltaCID)
}

func TestCacheUpsertReplacesSession(t *testing.T) {
	cache := NewCache(testDB(t))
	conv := sampleConversation()

	require.NoError(t, cache.SaveRecoveredConversation(conv, "0xhost", "ledger"))

	conv.TokenCount = 2000
	conv.Checkpoints = append(conv.Checkpoints, checkpoint.CheckpointIndexEntry{
		Index: 2, ProofHash: crypto.Keccak256Hash([]byte("proof-c")),
		DeltaCID: "cid-2", StartToken: 1563, EndToken: 2000,
	})
	require.NoError(t, cache.SaveRecoveredConversation(conv, "0xhost", "host"))

	loaded, err := cache.GetRecoveredConversation("sess-1")
	require.NoError(t, err)
	require.Equal(t, uint64(2000), loaded.TokenCount)

	records, err := cache.ListCheckpointRecords("sess-1")
	require.NoError(t, err)
	require.Len(t, records, 3)

	var count int64
	require.NoError(t, cache.client.Model(&RecoveredSession{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestCacheMissIsNotAnError(t *testing.T) {
	cache := NewCache(testDB(t))

	loaded, err := cache.GetRecoveredConversation("sess-unknown")
	require.NoError(t, err)
	require.Nil(t, loaded)

	records, err := cache.ListCheckpointRecords("sess-unknown")
	require.NoError(t, err)
	require.Empty(t, records)
}
