package browser

import (
	"strconv"

	"github.com/sydlexius/artbrowser/internal/remoteimage"
)

// Shape is the aspect-ratio class of a card.
type Shape string

// Card shapes.
const (
	ShapePortrait Shape = "portrait"
	ShapeBackdrop Shape = "backdrop"
	ShapeBanner   Shape = "banner"
	ShapeSquare   Shape = "square"
)

// Translator looks up user-facing strings.
type Translator interface {
	T(key string, args ...any) string
}

// ShapeFor picks the card shape. The image type filter wins; the item type
// only decides when the filter does not imply a shape.
func ShapeFor(filter remoteimage.ImageType, itemType string) Shape {
	switch filter {
	case remoteimage.TypeBackdrop, remoteimage.TypeArt, remoteimage.TypeThumb, remoteimage.TypeLogo:
		return ShapeBackdrop
	case remoteimage.TypeBanner:
		return ShapeBanner
	case remoteimage.TypeDisc:
		return ShapeSquare
	}

	switch itemType {
	case "Episode":
		return ShapeBackdrop
	case "MusicAlbum", "MusicArtist":
		return ShapeSquare
	default:
		return ShapePortrait
	}
}

// Card is the view model of one candidate image.
type Card struct {
	ImageURL     string                `json:"image_url"`
	ProviderName string                `json:"provider_name"`
	Type         remoteimage.ImageType `json:"type"`
	Shape        Shape                 `json:"shape"`
	DisplayURL   string                `json:"display_url"`
	FullURL      string                `json:"full_url,omitempty"`
	Detail       string                `json:"detail,omitempty"`
	Rating       string                `json:"rating"`

	// AsButton makes the whole card the activation target (TV layout).
	// Otherwise ShowDownloadButton is set and the card holds one button.
	AsButton           bool `json:"as_button"`
	ShowDownloadButton bool `json:"show_download_button"`
	ExternalLink       bool `json:"external_link"`
}

// CardContext carries the session values a card depends on.
type CardContext struct {
	ImageType remoteimage.ImageType
	ItemType  string
	Layout    Layout
	// DisplayURL maps a provider image URL to the URL embedded in markup.
	DisplayURL func(imageURL string) string
	// FullURL maps a provider image URL to the external link target.
	FullURL func(imageURL string) string
}

// NewCard maps a remote image record to its card view model.
func NewCard(rec remoteimage.Record, cc CardContext, tr Translator) Card {
	c := Card{
		ImageURL:           rec.URL,
		ProviderName:       rec.ProviderName,
		Type:               rec.Type,
		Shape:              ShapeFor(cc.ImageType, cc.ItemType),
		Detail:             DetailText(rec),
		Rating:             RatingText(rec, tr),
		AsButton:           cc.Layout.TV,
		ShowDownloadButton: !cc.Layout.TV,
		ExternalLink:       !cc.Layout.TV && cc.Layout.ExternalLinks,
	}

	c.DisplayURL = rec.URL
	if cc.DisplayURL != nil {
		c.DisplayURL = cc.DisplayURL(rec.URL)
	}
	if c.ExternalLink {
		c.FullURL = c.DisplayURL
		if cc.FullURL != nil {
			c.FullURL = cc.FullURL(rec.URL)
		}
	}
	return c
}

// DetailText returns "W x H • Language" or whichever part is known.
// Dimensions are only shown when both are known.
func DetailText(rec remoteimage.Record) string {
	hasDims := rec.Width > 0 && rec.Height > 0
	switch {
	case hasDims && rec.Language != "":
		return strconv.Itoa(rec.Width) + " x " + strconv.Itoa(rec.Height) + " • " + rec.Language
	case hasDims:
		return strconv.Itoa(rec.Width) + " x " + strconv.Itoa(rec.Height)
	default:
		return rec.Language
	}
}

// RatingText formats the community rating line of a card.
func RatingText(rec remoteimage.Record, tr Translator) string {
	if rec.RatingType == remoteimage.RatingLikes {
		var n float64
		if rec.CommunityRating != nil {
			n = *rec.CommunityRating
		}
		count := strconv.FormatFloat(n, 'f', -1, 64)
		if n == 1 {
			return tr.T("LikeCount", count)
		}
		return tr.T("LikesCount", count)
	}

	if rec.CommunityRating == nil || *rec.CommunityRating == 0 {
		return tr.T("Unrated")
	}

	s := strconv.FormatFloat(*rec.CommunityRating, 'f', 1, 64)
	switch {
	case rec.VoteCount == 1:
		s += " • " + tr.T("VoteCount", rec.VoteCount)
	case rec.VoteCount > 1:
		s += " • " + tr.T("VotesCount", rec.VoteCount)
	}
	return s
}
