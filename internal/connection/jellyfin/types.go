package jellyfin

// SystemInfo represents the response from GET /System/Info.
type SystemInfo struct {
	ServerName string `json:"ServerName"`
	Version    string `json:"Version"`
	ID         string `json:"Id"`
}

// BaseItem is the subset of GET /Items/{id} the image browser reads.
type BaseItem struct {
	Name string `json:"Name"`
	ID   string `json:"Id"`
	Type string `json:"Type"`
}

// RemoteImageInfo is one entry of the RemoteImages listing.
type RemoteImageInfo struct {
	ProviderName    string   `json:"ProviderName"`
	URL             string   `json:"Url"`
	ThumbnailURL    string   `json:"ThumbnailUrl"`
	Height          int      `json:"Height"`
	Width           int      `json:"Width"`
	CommunityRating *float64 `json:"CommunityRating"`
	VoteCount       int      `json:"VoteCount"`
	Language        string   `json:"Language"`
	Type            string   `json:"Type"`
	RatingType      string   `json:"RatingType"`
}

// RemoteImageResult wraps GET /Items/{id}/RemoteImages.
type RemoteImageResult struct {
	Images           []RemoteImageInfo `json:"Images"`
	TotalRecordCount int               `json:"TotalRecordCount"`
	Providers        []string          `json:"Providers"`
}
