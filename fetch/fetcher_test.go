package fetch

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/axonmesh/axon-go/checkpoint"
	"github.com/axonmesh/axon-go/deltacrypt"
	rcerrors "github.com/axonmesh/axon-go/errors"
	"github.com/axonmesh/axon-go/sigverify"
)

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	gets    int
}

func (m *memStore) Get(_ context.Context, cid string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	data, ok := m.objects[cid]
	if !ok {
		return nil, fmt.Errorf("cid %s: %w", cid, ErrNotFound)
	}
	return data, nil
}

type testHost struct {
	key     *ecdsa.PrivateKey
	address ethcommon.Address
}

func newTestHost(t *testing.T) *testHost {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &testHost{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

// signedDelta builds a plaintext delta whose proof hash recomputes from its
// content and whose host signature covers the commitment digest.
func (h *testHost) signedDelta(t *testing.T, index, start, end uint64, messages []checkpoint.Message) checkpoint.CheckpointDelta {
	t.Helper()
	proofHash, err := sigverify.CommitmentHash(messages, end-start)
	require.NoError(t, err)
	sig, err := crypto.Sign(proofHash.Bytes(), h.key)
	require.NoError(t, err)

	return checkpoint.CheckpointDelta{
		SessionID:       "sess-1",
		CheckpointIndex: index,
		ProofHash:       proofHash,
		StartToken:      start,
		EndToken:        end,
		Messages:        messages,
		HostSignature:   sig,
	}
}

func entryFor(delta checkpoint.CheckpointDelta, cid string) checkpoint.CheckpointIndexEntry {
	return checkpoint.CheckpointIndexEntry{
		Index:      delta.CheckpointIndex,
		ProofHash:  delta.ProofHash,
		DeltaCID:   cid,
		StartToken: delta.StartToken,
		EndToken:   delta.EndToken,
	}
}

func storeWith(t *testing.T, payloads map[string]interface{}) *memStore {
	t.Helper()
	objects := make(map[string][]byte, len(payloads))
	for cid, payload := range payloads {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		objects[cid] = raw
	}
	return &memStore{objects: objects}
}

func TestFetchAllPlaintext(t *testing.T) {
	host := newTestHost(t)

	first := host.signedDelta(t, 0, 0, 1000, []checkpoint.Message{
		{Role: checkpoint.RoleUser, Content: "question", Tokens: 400},
		{Role: checkpoint.RoleAssistant, Content: "answer part one", Tokens: 600},
	})
	second := host.signedDelta(t, 1, 1000, 1563, []checkpoint.Message{
		{Role: checkpoint.RoleAssistant, Content: " and part two", Tokens: 563, Continuation: true},
	})

	store := storeWith(t, map[string]interface{}{"cid-0": first, "cid-1": second})
	fetcher := NewFetcher(store, 4, time.Second, zerolog.Nop())

	deltas, err := fetcher.FetchAll(context.Background(),
		[]checkpoint.CheckpointIndexEntry{entryFor(first, "cid-0"), entryFor(second, "cid-1")},
		host.address, nil)
	require.NoError(t, err)
	require.Len(t, deltas, 2)
	require.Equal(t, uint64(0), deltas[0].CheckpointIndex)
	require.Equal(t, uint64(1), deltas[1].CheckpointIndex)
	require.Equal(t, 2, store.gets)
}

func TestFetchAllEncrypted(t *testing.T) {
	host := newTestHost(t)
	priv, pub, err := deltacrypt.GenerateKeyPair()
	require.NoError(t, err)

	plain := host.signedDelta(t, 0, 0, 100, []checkpoint.Message{
		{Role: checkpoint.RoleAssistant, Content: "secret answer", Tokens: 100},
	})
	enc, err := deltacrypt.Encrypt(&plain, pub)
	require.NoError(t, err)

	// The host signs the ciphertext digest.
	ctSig, err := crypto.Sign(crypto.Keccak256Hash(enc.Ciphertext).Bytes(), host.key)
	require.NoError(t, err)
	enc.HostSignature = ctSig

	store := storeWith(t, map[string]interface{}{"cid-enc": enc})
	entries := []checkpoint.CheckpointIndexEntry{entryFor(plain, "cid-enc")}

	t.Run("decrypts with the recipient key", func(t *testing.T) {
		fetcher := NewFetcher(store, 2, time.Second, zerolog.Nop())
		deltas, err := fetcher.FetchAll(context.Background(), entries, host.address, priv)
		require.NoError(t, err)
		require.Len(t, deltas, 1)
		require.Equal(t, plain.Messages, deltas[0].Messages)
	})

	t.Run("fails without a key", func(t *testing.T) {
		fetcher := NewFetcher(store, 2, time.Second, zerolog.Nop())
		_, err := fetcher.FetchAll(context.Background(), entries, host.address, nil)
		require.True(t, rcerrors.IsKind(err, rcerrors.KindDecryptionKeyRequired))
	})

	t.Run("rejects a ciphertext signed by someone else", func(t *testing.T) {
		intruder := newTestHost(t)
		forged := *enc
		forgedSig, err := crypto.Sign(crypto.Keccak256Hash(forged.Ciphertext).Bytes(), intruder.key)
		require.NoError(t, err)
		forged.HostSignature = forgedSig

		forgedStore := storeWith(t, map[string]interface{}{"cid-enc": &forged})
		fetcher := NewFetcher(forgedStore, 2, time.Second, zerolog.Nop())
		_, err = fetcher.FetchAll(context.Background(), entries, host.address, priv)
		require.True(t, rcerrors.IsKind(err, rcerrors.KindInvalidDeltaSignature))
	})
}

func TestFetchAllFailures(t *testing.T) {
	host := newTestHost(t)
	delta := host.signedDelta(t, 0, 0, 100, []checkpoint.Message{
		{Role: checkpoint.RoleUser, Content: "q", Tokens: 100},
	})

	t.Run("missing content", func(t *testing.T) {
		fetcher := NewFetcher(&memStore{objects: map[string][]byte{}}, 2, time.Second, zerolog.Nop())
		_, err := fetcher.FetchAll(context.Background(),
			[]checkpoint.CheckpointIndexEntry{entryFor(delta, "cid-missing")}, host.address, nil)
		require.True(t, rcerrors.IsKind(err, rcerrors.KindDeltaFetchFailed))
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("empty content identifier", func(t *testing.T) {
		fetcher := NewFetcher(&memStore{objects: map[string][]byte{}}, 2, time.Second, zerolog.Nop())
		_, err := fetcher.FetchAll(context.Background(),
			[]checkpoint.CheckpointIndexEntry{entryFor(delta, "")}, host.address, nil)
		require.True(t, rcerrors.IsKind(err, rcerrors.KindInvalidDeltaStructure))
	})

	t.Run("wrong signer", func(t *testing.T) {
		intruder := newTestHost(t)
		store := storeWith(t, map[string]interface{}{"cid-0": delta})
		fetcher := NewFetcher(store, 2, time.Second, zerolog.Nop())

		_, err := fetcher.FetchAll(context.Background(),
			[]checkpoint.CheckpointIndexEntry{entryFor(delta, "cid-0")}, intruder.address, nil)
		require.True(t, rcerrors.IsKind(err, rcerrors.KindInvalidDeltaSignature))
	})

	t.Run("entry proof hash mismatch", func(t *testing.T) {
		store := storeWith(t, map[string]interface{}{"cid-0": delta})
		entry := entryFor(delta, "cid-0")
		entry.ProofHash = crypto.Keccak256Hash([]byte("forged"))

		fetcher := NewFetcher(store, 2, time.Second, zerolog.Nop())
		_, err := fetcher.FetchAll(context.Background(),
			[]checkpoint.CheckpointIndexEntry{entry}, host.address, nil)
		require.True(t, rcerrors.IsKind(err, rcerrors.KindProofHashMismatch))
	})

	t.Run("content does not recompute to its proof hash", func(t *testing.T) {
		tampered := delta
		tampered.Messages = []checkpoint.Message{
			{Role: checkpoint.RoleUser, Content: "edited", Tokens: 100},
		}
		store := storeWith(t, map[string]interface{}{"cid-0": tampered})

		fetcher := NewFetcher(store, 2, time.Second, zerolog.Nop())
		_, err := fetcher.FetchAll(context.Background(),
			[]checkpoint.CheckpointIndexEntry{entryFor(tampered, "cid-0")}, host.address, nil)
		require.True(t, rcerrors.IsKind(err, rcerrors.KindProofHashMismatch))
	})

	t.Run("index mismatch between entry and delta", func(t *testing.T) {
		store := storeWith(t, map[string]interface{}{"cid-0": delta})
		entry := entryFor(delta, "cid-0")
		entry.Index = 5

		fetcher := NewFetcher(store, 2, time.Second, zerolog.Nop())
		_, err := fetcher.FetchAll(context.Background(),
			[]checkpoint.CheckpointIndexEntry{entry}, host.address, nil)
		require.True(t, rcerrors.IsKind(err, rcerrors.KindInvalidDeltaStructure))
	})

	t.Run("cancellation aborts the batch", func(t *testing.T) {
		store := storeWith(t, map[string]interface{}{"cid-0": delta})
		fetcher := NewFetcher(store, 1, time.Second, zerolog.Nop())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := fetcher.FetchAll(ctx,
			[]checkpoint.CheckpointIndexEntry{entryFor(delta, "cid-0")}, host.address, nil)
		require.Error(t, err)
	})

	t.Run("empty entry list yields no deltas", func(t *testing.T) {
		fetcher := NewFetcher(&memStore{}, 2, time.Second, zerolog.Nop())
		deltas, err := fetcher.FetchAll(context.Background(), nil, host.address, nil)
		require.NoError(t, err)
		require.Empty(t, deltas)
	})
}
