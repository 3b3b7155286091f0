package emby

// SystemInfo represents the response from GET /System/Info.
type SystemInfo struct {
	ServerName string `json:"ServerName"`
	Version    string `json:"Version"`
	ID         string `json:"Id"`
}

// BaseItem is the part of an Emby item the browser needs.
type BaseItem struct {
	Name string `json:"Name"`
	ID   string `json:"Id"`
	Type string `json:"Type"`
}

// RemoteImageInfo mirrors Emby's RemoteImageInfo DTO.
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
