package jellyfin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sydlexius/artbrowser/internal/remoteimage"
)

// maxErrorBody caps how much of an error response is echoed into errors.
const maxErrorBody = 4096

// Client communicates with a Jellyfin server.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *slog.Logger
}

var _ remoteimage.Client = (*Client)(nil)

// New creates a Jellyfin client with default HTTP settings.
func New(baseURL, apiKey string, logger *slog.Logger) *Client {
	return NewWithHTTPClient(baseURL, apiKey, &http.Client{Timeout: 30 * time.Second}, logger)
}

// NewWithHTTPClient creates a Jellyfin client with a custom HTTP client (for testing).
func NewWithHTTPClient(baseURL, apiKey string, httpClient *http.Client, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		logger:     logger.With(slog.String("integration", "jellyfin")),
	}
}

// TestConnection verifies connectivity by calling GET /System/Info.
func (c *Client) TestConnection(ctx context.Context) error {
	var info SystemInfo
	if err := c.get(ctx, "/System/Info", nil, &info); err != nil {
		return fmt.Errorf("testing connection: %w", err)
	}
	c.logger.Debug("jellyfin connection ok", "server", info.ServerName, "version", info.Version)
	return nil
}

// GetItem returns the name and type of a library item.
func (c *Client) GetItem(ctx context.Context, itemID string) (*BaseItem, error) {
	var item BaseItem
	if err := c.get(ctx, "/Items/"+url.PathEscape(itemID), nil, &item); err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return &item, nil
}

// ItemType returns the item's type name (Movie, Episode, MusicAlbum, ...).
func (c *Client) ItemType(ctx context.Context, itemID string) (string, error) {
	item, err := c.GetItem(ctx, itemID)
	if err != nil {
		return "", err
	}
	return item.Type, nil
}

// ListRemoteImages calls GET /Items/{id}/RemoteImages.
func (c *Client) ListRemoteImages(ctx context.Context, q remoteimage.Query) (*remoteimage.Page, error) {
	params := listParams(q)

	var result RemoteImageResult
	path := "/Items/" + url.PathEscape(q.ItemID) + "/RemoteImages"
	if err := c.get(ctx, path, params, &result); err != nil {
		return nil, &remoteimage.NetworkError{Op: remoteimage.OpList, Cause: err}
	}

	c.logger.Debug("listed remote images",
		slog.String("item_id", q.ItemID),
		slog.Int("count", len(result.Images)),
		slog.Int("total", result.TotalRecordCount))

	return toPage(&result), nil
}

// DownloadRemoteImage calls POST /Items/{id}/RemoteImages/Download.
func (c *Client) DownloadRemoteImage(ctx context.Context, commit remoteimage.Commit) error {
	params := url.Values{
		"type":     {string(commit.Type)},
		"imageUrl": {commit.ImageURL},
	}
	if commit.ProviderName != "" {
		params.Set("providerName", commit.ProviderName)
	}

	path := "/Items/" + url.PathEscape(commit.ItemID) + "/RemoteImages/Download"
	if err := c.post(ctx, path, params); err != nil {
		return &remoteimage.NetworkError{Op: remoteimage.OpDownload, Cause: err}
	}
	return nil
}

// RemoteImageURL returns the server's proxy URL for a provider image.
func (c *Client) RemoteImageURL(imageURL string) string {
	return c.baseURL + "/Images/Remote?" + url.Values{"imageUrl": {imageURL}}.Encode()
}

// Authorize sets the Jellyfin auth header on a request built outside the client.
func (c *Client) Authorize(req *http.Request) {
	c.setAuth(req)
}

func listParams(q remoteimage.Query) url.Values {
	params := url.Values{
		"startIndex":          {strconv.Itoa(q.StartIndex)},
		"limit":               {strconv.Itoa(q.Limit)},
		"includeAllLanguages": {strconv.FormatBool(q.IncludeAllLanguages)},
	}
	if q.Type != "" {
		params.Set("type", string(q.Type))
	}
	if q.ProviderName != "" {
		params.Set("providerName", q.ProviderName)
	}
	return params
}

func toPage(r *RemoteImageResult) *remoteimage.Page {
	page := &remoteimage.Page{
		Images:           make([]remoteimage.Record, 0, len(r.Images)),
		TotalRecordCount: r.TotalRecordCount,
		Providers:        r.Providers,
	}
	for _, img := range r.Images {
		page.Images = append(page.Images, remoteimage.Record{
			URL:             img.URL,
			ThumbnailURL:    img.ThumbnailURL,
			ProviderName:    img.ProviderName,
			Type:            remoteimage.ImageType(img.Type),
			Width:           img.Width,
			Height:          img.Height,
			Language:        img.Language,
			CommunityRating: img.CommunityRating,
			VoteCount:       img.VoteCount,
			RatingType:      remoteimage.RatingType(img.RatingType),
		})
	}
	return page
}

func (c *Client) get(ctx context.Context, path string, params url.Values, result any) error {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setAuth(req)

	resp, err := c.httpClient.Do(req) //nolint:gosec // URL constructed from trusted base + API path
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, params url.Values) error {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setAuth(req)

	resp, err := c.httpClient.Do(req) //nolint:gosec // URL constructed from trusted base + API path
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func (c *Client) setAuth(req *http.Request) {
	req.Header.Set("Authorization", fmt.Sprintf(`MediaBrowser Token="%s"`, c.apiKey))
}
