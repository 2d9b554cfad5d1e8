// internal/mediaserver/jellyfin.go
package mediaserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// JellyfinClient interacts with the Jellyfin API. Jellyfin exposes no
// per-item refresh endpoint, so this client is library-refresh only.
type JellyfinClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *slog.Logger
}

// NewJellyfinClient creates a new Jellyfin client.
func NewJellyfinClient(baseURL, apiKey string, log *slog.Logger) *JellyfinClient {
	return &JellyfinClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		log:     componentLogger(log, "jellyfin"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Ping checks server reachability via /System/Info.
func (c *JellyfinClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/System/Info", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Emby-Token", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var info systemInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if c.log != nil {
		c.log.Debug("jellyfin reachable", "name", info.ServerName, "version", info.Version)
	}
	return nil
}

// RefreshLibrary triggers a full library refresh.
func (c *JellyfinClient) RefreshLibrary(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/Library/Refresh", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Emby-Token", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("library refresh returned %d", resp.StatusCode)
	}
	return nil
}

// Ensure JellyfinClient supports whole-library refresh only.
var _ LibraryRefresher = (*JellyfinClient)(nil)
