package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"aiostreams/pkg/models"
)

// manifests larger than this are not add-on manifests
const maxManifestBytes = 2 << 20

// ManifestSource fetches the manifest of an upstream add-on.
type ManifestSource interface {
	FetchManifest(ctx context.Context, manifestURL string) (*models.Manifest, error)
}

// HTTPSource fetches manifests over HTTP.
type HTTPSource struct {
	Client *http.Client
}

func NewHTTPSource(timeout time.Duration) *HTTPSource {
	return &HTTPSource{Client: &http.Client{Timeout: timeout}}
}

func (s *HTTPSource) FetchManifest(ctx context.Context, manifestURL string) (*models.Manifest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var m models.Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if m.ID == "" {
		return nil, fmt.Errorf("decode: manifest has no id")
	}
	return &m, nil
}
