// Package deltacrypt implements the authenticated-encryption codec for
// per-checkpoint delta payloads: X25519 key agreement, HKDF-SHA256 key
// derivation with a versioned context string, and ChaCha20-Poly1305.
//
// The constants here are a bit-exact contract with the host-side encryptor; a
// unilateral change breaks all decryption. The host uses a fresh ephemeral
// keypair per checkpoint, so one leaked checkpoint key exposes nothing else.
package deltacrypt

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"github.com/axonmesh/axon-go/checkpoint"
	rcerrors "github.com/axonmesh/axon-go/errors"
)

const (
	// Version is the encryption scheme version carried on the wire.
	Version uint8 = 1

	// KeySize is the X25519 key length.
	KeySize = curve25519.ScalarSize

	// NonceSize is the ChaCha20-Poly1305 nonce length.
	NonceSize = chacha20poly1305.NonceSize

	// kdfContext is the fixed HKDF info string. Versioned so a future scheme
	// can rotate keys without ambiguity.
	kdfContext = "checkpoint-delta-encryption:v1"
)

// GenerateKeyPair returns a fresh X25519 (private, public) key pair.
func GenerateKeyPair() ([]byte, []byte, error) {
	priv := make([]byte, KeySize)
	if _, err := rand.Read(priv); err != nil {
		return nil, nil, fmt.Errorf("failed to generate private key: %w", err)
	}
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to derive public key: %w", err)
	}
	return priv, pub, nil
}

// deriveKey expands an X25519 shared secret into the AEAD key.
func deriveKey(shared []byte) ([]byte, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, shared, nil, []byte(kdfContext))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}
	return key, nil
}

// Decrypt performs key agreement with the payload's ephemeral public key,
// derives the symmetric key, and authenticated-decrypts the ciphertext into
// a plaintext delta.
//
// Returns DecryptionKeyRequired when no private key is supplied and
// DecryptionFailed on any authentication or key-agreement failure (wrong key
// or tampered ciphertext).
func Decrypt(enc *checkpoint.EncryptedCheckpointDelta, recipientPrivateKey []byte) (*checkpoint.CheckpointDelta, error) {
	if len(recipientPrivateKey) == 0 {
		return nil, rcerrors.New(rcerrors.KindDecryptionKeyRequired,
			"delta is encrypted but no decryption key was supplied")
	}
	if len(recipientPrivateKey) != KeySize {
		return nil, rcerrors.Newf(rcerrors.KindDecryptionFailed,
			"private key must be %d bytes, got %d", KeySize, len(recipientPrivateKey))
	}
	if enc.Version != Version {
		return nil, rcerrors.Newf(rcerrors.KindDecryptionFailed,
			"unsupported encryption version %d", enc.Version).WithField("version")
	}
	if len(enc.Nonce) != NonceSize {
		return nil, rcerrors.Newf(rcerrors.KindDecryptionFailed,
			"nonce must be %d bytes, got %d", NonceSize, len(enc.Nonce)).WithField("nonce")
	}

	shared, err := curve25519.X25519(recipientPrivateKey, enc.EphemeralPublicKey)
	if err != nil {
		return nil, rcerrors.New(rcerrors.KindDecryptionFailed, "key agreement failed").
			WithField("ephemeralPublicKey").WithCause(err)
	}

	key, err := deriveKey(shared)
	if err != nil {
		return nil, rcerrors.New(rcerrors.KindDecryptionFailed, "key derivation failed").
			WithCause(err)
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, rcerrors.New(rcerrors.KindDecryptionFailed, "failed to initialize cipher").
			WithCause(err)
	}

	plaintext, err := aead.Open(nil, enc.Nonce, enc.Ciphertext, nil)
	if err != nil {
		// Authentication tag mismatch: wrong recipient key or tampered payload.
		return nil, rcerrors.New(rcerrors.KindDecryptionFailed,
			"authenticated decryption failed").WithField("ciphertext").WithCause(err)
	}

	var delta checkpoint.CheckpointDelta
	if err := json.Unmarshal(plaintext, &delta); err != nil {
		return nil, rcerrors.New(rcerrors.KindInvalidDeltaStructure,
			"decrypted payload is not a valid delta").WithCause(err)
	}
	return &delta, nil
}

// Encrypt is the host-side counterpart of Decrypt, kept in this package so
// the two stay bit-exact by construction. It generates a fresh ephemeral
// keypair and nonce per call. The host signature over the ciphertext is left
// for the caller to attach.
func Encrypt(delta *checkpoint.CheckpointDelta, recipientPublicKey []byte) (*checkpoint.EncryptedCheckpointDelta, error) {
	if len(recipientPublicKey) != KeySize {
		return nil, fmt.Errorf("recipient public key must be %d bytes, got %d", KeySize, len(recipientPublicKey))
	}

	plaintext, err := json.Marshal(delta)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize delta: %w", err)
	}

	ephPriv, ephPub, err := GenerateKeyPair()
	if err != nil {
		return nil, err
	}

	shared, err := curve25519.X25519(ephPriv, recipientPublicKey)
	if err != nil {
		return nil, fmt.Errorf("key agreement failed: %w", err)
	}

	key, err := deriveKey(shared)
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return &checkpoint.EncryptedCheckpointDelta{
		Encrypted:          true,
		Version:            Version,
		RecipientPublicKey: recipientPublicKey,
		EphemeralPublicKey: ephPub,
		Nonce:              nonce,
		Ciphertext:         aead.Seal(nil, nonce, plaintext, nil),
	}, nil
}
