package remoteimage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ImageType is the slot a remote image fills on a library item.
type ImageType string

// Known image types, using the media server's own spelling.
const (
	TypePrimary    ImageType = "Primary"
	TypeArt        ImageType = "Art"
	TypeBackdrop   ImageType = "Backdrop"
	TypeBanner     ImageType = "Banner"
	TypeLogo       ImageType = "Logo"
	TypeThumb      ImageType = "Thumb"
	TypeDisc       ImageType = "Disc"
	TypeBox        ImageType = "Box"
	TypeScreenshot ImageType = "Screenshot"
	TypeMenu       ImageType = "Menu"
	TypeBoxRear    ImageType = "BoxRear"
)

// AllImageTypes returns every browsable image type in selector order.
func AllImageTypes() []ImageType {
	return []ImageType{
		TypePrimary,
		TypeArt,
		TypeBackdrop,
		TypeBanner,
		TypeBox,
		TypeBoxRear,
		TypeDisc,
		TypeLogo,
		TypeMenu,
		TypeScreenshot,
		TypeThumb,
	}
}

// ErrUnknownImageType is returned by ParseImageType.
var ErrUnknownImageType = errors.New("unknown image type")

// ParseImageType matches s case-insensitively against the known types.
func ParseImageType(s string) (ImageType, error) {
	for _, t := range AllImageTypes() {
		if strings.EqualFold(string(t), s) {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownImageType, s)
}

// RatingType tells how CommunityRating should be read.
type RatingType string

// Rating types reported by the media server.
const (
	RatingScore RatingType = "Score"
	RatingLikes RatingType = "Likes"
)

// Record is one candidate image offered by a remote provider.
type Record struct {
	URL             string     `json:"url"`
	ThumbnailURL    string     `json:"thumbnail_url,omitempty"`
	ProviderName    string     `json:"provider_name"`
	Type            ImageType  `json:"type"`
	Width           int        `json:"width,omitempty"`
	Height          int        `json:"height,omitempty"`
	Language        string     `json:"language,omitempty"`
	CommunityRating *float64   `json:"community_rating,omitempty"`
	VoteCount       int        `json:"vote_count,omitempty"`
	RatingType      RatingType `json:"rating_type,omitempty"`
}

// Page is one page of listing results. It always replaces the previous page.
type Page struct {
	Images           []Record `json:"images"`
	TotalRecordCount int      `json:"total_record_count"`
	Providers        []string `json:"providers"`
}

// Query selects a page of remote images for an item.
type Query struct {
	ItemID              string
	Type                ImageType
	ProviderName        string
	IncludeAllLanguages bool
	StartIndex          int
	Limit               int
}

// Commit asks the media server to download ImageURL as the item's Type image.
type Commit struct {
	ItemID       string
	Type         ImageType
	ImageURL     string
	ProviderName string
}

// Client is the media server API surface the image browser needs.
type Client interface {
	// ListRemoteImages returns one page of candidate images.
	ListRemoteImages(ctx context.Context, q Query) (*Page, error)

	// DownloadRemoteImage makes the server fetch and store the chosen image.
	DownloadRemoteImage(ctx context.Context, c Commit) error

	// RemoteImageURL returns an absolute URL that serves imageURL through
	// the media server.
	RemoteImageURL(imageURL string) string
}

// Operation names used in NetworkError.
const (
	OpList     = "list"
	OpDownload = "download"
)

// NetworkError reports a failed listing or commit request.
type NetworkError struct {
	Op    string
	Cause error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("remote images %s failed: %v", e.Op, e.Cause)
}

func (e *NetworkError) Unwrap() error { return e.Cause }

// IsNetworkError reports whether err wraps a NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
