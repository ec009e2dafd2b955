package recovery

import (
	"github.com/axonmesh/axon-go/discovery"
)

// Options carries per-call knobs of RecoverConversation.
type Options struct {
	// DecryptionKey is the recipient's X25519 private key for encrypted
	// deltas. Leaving it nil fails encrypted sessions with
	// DecryptionKeyRequired; plaintext sessions don't need it.
	DecryptionKey []byte

	// Strategy overrides discovery selection. Empty or ModeAuto applies the
	// default policy (ledger preferred, host fallback for legacy sessions).
	Strategy discovery.Mode
}
