package recovery

import (
	"context"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// SessionMetadata is what the SDK's session layer knows about a session:
// which host served it and, when available, where that host answers
// checkpoint-index queries.
type SessionMetadata struct {
	HostAddress ethcommon.Address
	// HostEndpoint is the base URL of the host's query endpoint. Empty when
	// unknown, in which case only ledger-derived discovery is possible.
	HostEndpoint string
}

// SessionMetadataProvider supplies session metadata. Implementations return
// (nil, nil) when no metadata exists for the session; errors are reserved
// for lookup failures.
type SessionMetadataProvider interface {
	GetSessionMetadata(ctx context.Context, sessionID string) (*SessionMetadata, error)
}
