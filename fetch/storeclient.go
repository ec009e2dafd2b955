package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrNotFound is returned by a ContentStore when no object exists for the
// identifier, as distinct from a transport failure.
var ErrNotFound = errors.New("content not found")

// maxDeltaBytes caps a single delta payload read from the store.
const maxDeltaBytes = 64 << 20

// ContentStore retrieves payloads from a content-addressed object store. The
// store derives addresses from content, so a successful fetch by identifier
// is self-verifying against substitution.
type ContentStore interface {
	Get(ctx context.Context, cid string) ([]byte, error)
}

// GatewayStore reads content through an HTTP content-addressed gateway.
type GatewayStore struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewGatewayStore creates a gateway-backed content store with a per-request
// timeout.
func NewGatewayStore(baseURL string, timeout time.Duration, logger zerolog.Logger) *GatewayStore {
	return &GatewayStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "gateway_store").Logger(),
	}
}

// Get implements ContentStore.
func (g *GatewayStore) Get(ctx context.Context, cid string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/ipfs/%s", g.baseURL, url.PathEscape(cid))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build store request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("store fetch for %s failed: %w", cid, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("cid %s: %w", cid, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("store returned status %d for %s", resp.StatusCode, cid)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDeltaBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read store response for %s: %w", cid, err)
	}
	return data, nil
}
