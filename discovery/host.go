package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/axonmesh/axon-go/checkpoint"
	rcerrors "github.com/axonmesh/axon-go/errors"
)

// maxIndexResponseBytes caps how much of a host response is read; a
// checkpoint index is small and an unbounded read trusts the host too much.
const maxIndexResponseBytes = 4 << 20

// HostStrategy queries the host's own checkpoint-index endpoint. Known
// limitation: the host must be reachable, which is exactly what cannot be
// assumed after an interrupted session. Used only when the ledger carries no
// delta identifiers for the session.
type HostStrategy struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewHostStrategy creates a host-served discovery strategy with a bounded
// query timeout.
func NewHostStrategy(baseURL string, timeout time.Duration, logger zerolog.Logger) *HostStrategy {
	return &HostStrategy{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "host_discovery").Logger(),
	}
}

// Name implements Strategy.
func (h *HostStrategy) Name() string {
	return string(OriginHost)
}

// Discover fetches the session's checkpoint index from the host. A 404 is
// the normal "no checkpoints" outcome; transport failures and malformed
// responses are CheckpointFetchFailed.
func (h *HostStrategy) Discover(ctx context.Context, sessionID string) (*Result, error) {
	endpoint := fmt.Sprintf("%s/v1/sessions/%s/checkpoint-index", h.baseURL, url.PathEscape(sessionID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, rcerrors.New(rcerrors.KindCheckpointFetchFailed,
			"failed to build host index request").WithCause(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, rcerrors.Newf(rcerrors.KindCheckpointFetchFailed,
			"host index query to %s failed", h.baseURL).WithCause(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		// Host reports no checkpoints for the session. Valid empty outcome.
		h.logger.Debug().Str("session_id", sessionID).Msg("host has no checkpoint index")
		return &Result{Origin: OriginHost}, nil
	case resp.StatusCode != http.StatusOK:
		return nil, rcerrors.Newf(rcerrors.KindCheckpointFetchFailed,
			"host index query returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxIndexResponseBytes))
	if err != nil {
		return nil, rcerrors.New(rcerrors.KindCheckpointFetchFailed,
			"failed to read host index response").WithCause(err)
	}

	var index checkpoint.CheckpointIndex
	if err := json.Unmarshal(body, &index); err != nil {
		return nil, rcerrors.New(rcerrors.KindCheckpointFetchFailed,
			"host returned a malformed checkpoint index").WithCause(err)
	}

	h.logger.Debug().
		Str("session_id", sessionID).
		Int("entries", len(index.Checkpoints)).
		Msg("fetched host checkpoint index")

	return &Result{
		Origin:  OriginHost,
		Entries: index.Checkpoints,
		Index:   &index,
	}, nil
}
