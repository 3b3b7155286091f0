package connection

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sydlexius/artbrowser/internal/connection/emby"
	"github.com/sydlexius/artbrowser/internal/connection/jellyfin"
	"github.com/sydlexius/artbrowser/internal/remoteimage"
)

// MediaClient is what both the Jellyfin and Emby clients offer.
type MediaClient interface {
	remoteimage.Client
	TestConnection(ctx context.Context) error
	ItemType(ctx context.Context, itemID string) (string, error)
	Authorize(req *http.Request)
}

var (
	_ MediaClient = (*jellyfin.Client)(nil)
	_ MediaClient = (*emby.Client)(nil)
)

// ConnectionGetter loads a connection by ID.
type ConnectionGetter interface {
	GetByID(ctx context.Context, id string) (*Connection, error)
}

// Resolver turns a server ID into a rate-limited media server client.
type Resolver struct {
	connections ConnectionGetter
	limiters    *RateLimiterMap
	logger      *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(connections ConnectionGetter, limiters *RateLimiterMap, logger *slog.Logger) *Resolver {
	return &Resolver{
		connections: connections,
		limiters:    limiters,
		logger:      logger,
	}
}

// ClientFor returns the client for serverID. Disabled connections are refused.
func (r *Resolver) ClientFor(ctx context.Context, serverID string) (MediaClient, error) {
	c, err := r.connections.GetByID(ctx, serverID)
	if err != nil {
		return nil, err
	}
	if !c.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrDisabled, c.Name)
	}
	client, err := NewClient(c, r.logger)
	if err != nil {
		return nil, err
	}
	return &limitedClient{MediaClient: client, id: c.ID, limiters: r.limiters}, nil
}

// NewClient builds an unthrottled client for a connection.
func NewClient(c *Connection, logger *slog.Logger) (MediaClient, error) {
	switch c.Type {
	case TypeJellyfin:
		return jellyfin.New(c.URL, c.APIKey, logger), nil
	case TypeEmby:
		return emby.New(c.URL, c.APIKey, logger), nil
	default:
		return nil, fmt.Errorf("unsupported connection type: %s", c.Type)
	}
}

// limitedClient waits on the per-connection limiter before each remote call.
type limitedClient struct {
	MediaClient
	id       string
	limiters *RateLimiterMap
}

func (l *limitedClient) ListRemoteImages(ctx context.Context, q remoteimage.Query) (*remoteimage.Page, error) {
	if err := l.limiters.Wait(ctx, l.id); err != nil {
		return nil, &remoteimage.NetworkError{Op: remoteimage.OpList, Cause: fmt.Errorf("rate limiter: %w", err)}
	}
	return l.MediaClient.ListRemoteImages(ctx, q)
}

func (l *limitedClient) DownloadRemoteImage(ctx context.Context, c remoteimage.Commit) error {
	if err := l.limiters.Wait(ctx, l.id); err != nil {
		return &remoteimage.NetworkError{Op: remoteimage.OpDownload, Cause: fmt.Errorf("rate limiter: %w", err)}
	}
	return l.MediaClient.DownloadRemoteImage(ctx, c)
}

func (l *limitedClient) ItemType(ctx context.Context, itemID string) (string, error) {
	if err := l.limiters.Wait(ctx, l.id); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}
	return l.MediaClient.ItemType(ctx, itemID)
}
