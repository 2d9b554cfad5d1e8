// internal/mediaserver/emby.go
package mediaserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// EmbyClient interacts with the Emby Server API.
type EmbyClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *slog.Logger
}

// NewEmbyClient creates a new Emby client.
func NewEmbyClient(baseURL, apiKey string, log *slog.Logger) *EmbyClient {
	return &EmbyClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		log:     componentLogger(log, "emby"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// systemInfo is the subset of /System/Info we care about.
type systemInfo struct {
	ServerName string `json:"ServerName"`
	Version    string `json:"Version"`
}

// Ping checks server reachability via /System/Info.
func (c *EmbyClient) Ping(ctx context.Context) error {
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
		c.log.Debug("emby reachable", "name", info.ServerName, "version", info.Version)
	}
	return nil
}

// mediaUpdate is one entry in a /Library/Media/Updated request.
type mediaUpdate struct {
	Path       string `json:"Path"`
	UpdateType string `json:"UpdateType"`
}

type mediaUpdatedRequest struct {
	Updates []mediaUpdate `json:"Updates"`
}

// RefreshItems notifies Emby of updated media paths so it rescans just
// the affected directories.
func (c *EmbyClient) RefreshItems(ctx context.Context, items []RefreshItem) error {
	updates := make([]mediaUpdate, len(items))
	for i, item := range items {
		updates[i] = mediaUpdate{Path: item.TargetPath, UpdateType: "Created"}
	}

	body, err := json.Marshal(mediaUpdatedRequest{Updates: updates})
	if err != nil {
		return fmt.Errorf("marshal updates: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/Library/Media/Updated", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Emby-Token", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("media update returned %d", resp.StatusCode)
	}

	if c.log != nil {
		c.log.Debug("media update sent", "paths", len(updates))
	}
	return nil
}

// RefreshLibrary triggers a full library refresh.
func (c *EmbyClient) RefreshLibrary(ctx context.Context) error {
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

// Ensure EmbyClient supports item-scoped refresh.
var _ ItemRefresher = (*EmbyClient)(nil)
