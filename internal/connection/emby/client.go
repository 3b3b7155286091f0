package emby

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

// Client communicates with an Emby server.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *slog.Logger
}

var _ remoteimage.Client = (*Client)(nil)

// New creates an Emby client with default HTTP settings.
func New(baseURL, apiKey string, logger *slog.Logger) *Client {
	return NewWithHTTPClient(baseURL, apiKey, &http.Client{Timeout: 30 * time.Second}, logger)
}

// NewWithHTTPClient creates an Emby client with a custom HTTP client (for testing).
func NewWithHTTPClient(baseURL, apiKey string, httpClient *http.Client, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		logger:     logger.With(slog.String("integration", "emby")),
	}
}

// TestConnection verifies connectivity by calling GET /System/Info.
func (c *Client) TestConnection(ctx context.Context) error {
	var info SystemInfo
	if err := c.do(ctx, http.MethodGet, "/System/Info", nil, &info); err != nil {
		return fmt.Errorf("testing connection: %w", err)
	}
	c.logger.Debug("emby connection ok", "server", info.ServerName, "version", info.Version)
	return nil
}

// ItemType looks up the type name of a library item.
func (c *Client) ItemType(ctx context.Context, itemID string) (string, error) {
	var item BaseItem
	if err := c.do(ctx, http.MethodGet, "/Items/"+url.PathEscape(itemID), nil, &item); err != nil {
		return "", fmt.Errorf("getting item: %w", err)
	}
	return item.Type, nil
}

// ListRemoteImages calls GET /Items/{id}/RemoteImages.
func (c *Client) ListRemoteImages(ctx context.Context, q remoteimage.Query) (*remoteimage.Page, error) {
	params := url.Values{}
	params.Set("StartIndex", strconv.Itoa(q.StartIndex))
	params.Set("Limit", strconv.Itoa(q.Limit))
	params.Set("IncludeAllLanguages", strconv.FormatBool(q.IncludeAllLanguages))
	if q.Type != "" {
		params.Set("Type", string(q.Type))
	}
	if q.ProviderName != "" {
		params.Set("ProviderName", q.ProviderName)
	}

	var result RemoteImageResult
	if err := c.do(ctx, http.MethodGet, "/Items/"+url.PathEscape(q.ItemID)+"/RemoteImages", params, &result); err != nil {
		return nil, &remoteimage.NetworkError{Op: remoteimage.OpList, Cause: err}
	}

	page := &remoteimage.Page{
		TotalRecordCount: result.TotalRecordCount,
		Providers:        result.Providers,
		Images:           make([]remoteimage.Record, len(result.Images)),
	}
	for i, img := range result.Images {
		page.Images[i] = img.toRecord()
	}
	return page, nil
}

// DownloadRemoteImage calls POST /Items/{id}/RemoteImages/Download.
func (c *Client) DownloadRemoteImage(ctx context.Context, commit remoteimage.Commit) error {
	params := url.Values{}
	params.Set("Type", string(commit.Type))
	params.Set("ImageUrl", commit.ImageURL)
	if commit.ProviderName != "" {
		params.Set("ProviderName", commit.ProviderName)
	}

	path := "/Items/" + url.PathEscape(commit.ItemID) + "/RemoteImages/Download"
	if err := c.do(ctx, http.MethodPost, path, params, nil); err != nil {
		return &remoteimage.NetworkError{Op: remoteimage.OpDownload, Cause: err}
	}
	c.logger.Info("remote image downloaded",
		slog.String("item_id", commit.ItemID),
		slog.String("type", string(commit.Type)),
		slog.String("provider", commit.ProviderName))
	return nil
}

// RemoteImageURL returns the server's proxy URL for a provider image.
func (c *Client) RemoteImageURL(imageURL string) string {
	return c.baseURL + "/Images/Remote?ImageUrl=" + url.QueryEscape(imageURL)
}

// Authorize sets the Emby auth header on a request built outside the client.
func (c *Client) Authorize(req *http.Request) {
	req.Header.Set("X-Emby-Token", c.apiKey)
}

func (r RemoteImageInfo) toRecord() remoteimage.Record {
	return remoteimage.Record{
		URL:             r.URL,
		ThumbnailURL:    r.ThumbnailURL,
		ProviderName:    r.ProviderName,
		Type:            remoteimage.ImageType(r.Type),
		Width:           r.Width,
		Height:          r.Height,
		Language:        r.Language,
		CommunityRating: r.CommunityRating,
		VoteCount:       r.VoteCount,
		RatingType:      remoteimage.RatingType(r.RatingType),
	}
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, result any) error {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.Authorize(req)

	resp, err := c.httpClient.Do(req) //nolint:gosec // URL constructed from trusted base + API path
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
