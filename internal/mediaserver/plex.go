// internal/mediaserver/plex.go
package mediaserver

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// PlexClient interacts with the Plex Media Server API.
type PlexClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *slog.Logger
}

// NewPlexClient creates a new Plex client.
func NewPlexClient(baseURL, token string, log *slog.Logger) *PlexClient {
	return &PlexClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		log:     componentLogger(log, "plex"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func componentLogger(log *slog.Logger, component string) *slog.Logger {
	if log == nil {
		return nil
	}
	return log.With("component", component)
}

// identityResponse is the XML response from the root endpoint.
type identityResponse struct {
	XMLName      xml.Name `xml:"MediaContainer"`
	FriendlyName string   `xml:"friendlyName,attr"`
	Version      string   `xml:"version,attr"`
}

// Section represents a Plex library section.
type Section struct {
	Key       string     `xml:"key,attr"`
	Title     string     `xml:"title,attr"`
	Type      string     `xml:"type,attr"`
	Locations []Location `xml:"Location"`
}

// Location represents a library section's filesystem location.
type Location struct {
	Path string `xml:"path,attr"`
}

// sectionsResponse is the XML response from /library/sections.
type sectionsResponse struct {
	XMLName  xml.Name  `xml:"MediaContainer"`
	Sections []Section `xml:"Directory"`
}

// Ping checks server reachability via the identity endpoint.
func (c *PlexClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Plex-Token", c.token)
	req.Header.Set("Accept", "application/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result identityResponse
	if err := xml.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if c.log != nil {
		c.log.Debug("plex reachable", "name", result.FriendlyName, "version", result.Version)
	}
	return nil
}

// GetSections returns all library sections.
func (c *PlexClient) GetSections(ctx context.Context) ([]Section, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/library/sections", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Plex-Token", c.token)
	req.Header.Set("Accept", "application/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result sectionsResponse
	if err := xml.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return result.Sections, nil
}

// RefreshItems triggers a partial scan of each item's target directory.
// The owning section is located by path prefix against section locations.
func (c *PlexClient) RefreshItems(ctx context.Context, items []RefreshItem) error {
	sections, err := c.GetSections(ctx)
	if err != nil {
		return fmt.Errorf("get sections: %w", err)
	}

	for _, item := range items {
		sectionKey := ""
		for _, section := range sections {
			for _, loc := range section.Locations {
				if strings.HasPrefix(item.TargetPath, loc.Path) {
					sectionKey = section.Key
					break
				}
			}
			if sectionKey != "" {
				break
			}
		}

		if sectionKey == "" {
			return fmt.Errorf("no library section found for path: %s", item.TargetPath)
		}

		scanURL := fmt.Sprintf("%s/library/sections/%s/refresh?path=%s",
			c.baseURL, sectionKey, url.QueryEscape(item.TargetPath))

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, scanURL, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("X-Plex-Token", c.token)

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		_ = resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("scan failed with status: %d", resp.StatusCode)
		}

		if c.log != nil {
			c.log.Debug("scan triggered", "section", sectionKey, "path", item.TargetPath,
				"duration_ms", time.Since(start).Milliseconds())
		}
	}

	return nil
}

// RefreshLibrary triggers a full scan of every library section.
func (c *PlexClient) RefreshLibrary(ctx context.Context) error {
	sections, err := c.GetSections(ctx)
	if err != nil {
		return fmt.Errorf("get sections: %w", err)
	}

	for _, section := range sections {
		scanURL := fmt.Sprintf("%s/library/sections/%s/refresh", c.baseURL, section.Key)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, scanURL, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("X-Plex-Token", c.token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		_ = resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("refresh failed with status: %d", resp.StatusCode)
		}
	}

	return nil
}

// Ensure PlexClient supports item-scoped refresh.
var _ ItemRefresher = (*PlexClient)(nil)
