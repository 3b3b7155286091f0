package browser

import (
	"errors"
	"slices"

	"github.com/sydlexius/artbrowser/internal/remoteimage"
)

// Option is one entry of a select control.
type Option struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	Selected bool   `json:"selected,omitempty"`
}

// ViewError is a failure shown inline in the dialog.
type ViewError struct {
	Op      string `json:"op"`
	Message string `json:"message"`
	// Retry is set when re-fetching may recover, i.e. for listing failures.
	Retry bool `json:"retry"`
}

// View is everything needed to render the dialog for one session.
type View struct {
	SessionID           string      `json:"session_id"`
	ServerID            string      `json:"server_id"`
	ItemID              string      `json:"item_id"`
	ItemType            string      `json:"item_type,omitempty"`
	DialogSize          string      `json:"dialog_size"`
	Layout              Layout      `json:"layout"`
	ImageType           string      `json:"image_type"`
	Provider            string      `json:"provider"`
	ImageTypes          []Option    `json:"image_types"`
	Providers           []Option    `json:"providers"`
	IncludeAllLanguages bool        `json:"include_all_languages"`
	Paging              Paging      `json:"paging"`
	PagingText          string      `json:"paging_text"`
	Cards               []Card      `json:"cards"`
	Empty               bool        `json:"empty"`
	Loading             bool        `json:"loading"`
	Error               *ViewError  `json:"error,omitempty"`
	Closed              bool        `json:"closed"`
	Outcome             string      `json:"outcome,omitempty"`
	Labels              ViewLabels  `json:"-"`
}

// ViewLabels holds the translated static strings of the dialog.
type ViewLabels struct {
	Title               string
	ImageType           string
	Source              string
	IncludeAllLanguages string
	Previous            string
	Next                string
	Download            string
	Close               string
	Retry               string
	NoImages            string
}

// URLMapper maps provider image URLs for display and for external links.
type URLMapper struct {
	Display func(imageURL string) string
	Full    func(imageURL string) string
}

// BuildView maps a session snapshot to its view model.
func BuildView(snap Snapshot, tr Translator, urls URLMapper) View {
	st := snap.State
	v := View{
		SessionID:           snap.ID,
		ServerID:            snap.ServerID,
		ItemID:              snap.ItemID,
		ItemType:            snap.ItemType,
		DialogSize:          snap.Layout.DialogSize(),
		Layout:              snap.Layout,
		ImageType:           string(st.ImageType),
		Provider:            st.Provider,
		IncludeAllLanguages: st.IncludeAllLanguages,
		Loading:             snap.Loading,
		Closed:              snap.Closed,
		Labels:              labels(tr),
	}
	if snap.Closed {
		v.Outcome = snap.Outcome.String()
	}

	v.ImageTypes = imageTypeOptions(st.ImageType, tr)

	var providers []string
	if snap.Page != nil {
		providers = snap.Page.Providers
	}
	v.Providers = providerOptions(providers, st.Provider, tr)

	v.Paging = ComputePaging(st.StartIndex, st.PageSize, st.Total)
	v.PagingText = tr.T("ListPaging", v.Paging.StartDisplay, v.Paging.RecordsEnd, v.Paging.Total)

	v.Cards = []Card{}
	if snap.Page != nil {
		cc := CardContext{
			ImageType:  st.ImageType,
			ItemType:   snap.ItemType,
			Layout:     snap.Layout,
			DisplayURL: urls.Display,
			FullURL:    urls.Full,
		}
		for _, rec := range snap.Page.Images {
			v.Cards = append(v.Cards, NewCard(rec, cc, tr))
		}
	}
	v.Empty = snap.Page != nil && len(v.Cards) == 0

	if snap.Err != nil {
		v.Error = viewError(snap.Err, tr)
	}
	return v
}

func labels(tr Translator) ViewLabels {
	return ViewLabels{
		Title:               tr.T("BrowseOnlineImages"),
		ImageType:           tr.T("LabelImageType"),
		Source:              tr.T("LabelSource"),
		IncludeAllLanguages: tr.T("IncludeAllLanguages"),
		Previous:            tr.T("Previous"),
		Next:                tr.T("Next"),
		Download:            tr.T("Download"),
		Close:               tr.T("Close"),
		Retry:               tr.T("Retry"),
		NoImages:            tr.T("NoImagesFound"),
	}
}

func imageTypeOptions(current remoteimage.ImageType, tr Translator) []Option {
	types := remoteimage.AllImageTypes()
	opts := make([]Option, 0, len(types))
	for _, t := range types {
		opts = append(opts, Option{
			Value:    string(t),
			Label:    tr.T("ImageType" + string(t)),
			Selected: t == current,
		})
	}
	return opts
}

// providerOptions lists "All" first, then the page's providers. The current
// selection stays listed even if the latest page no longer reports it.
func providerOptions(providers []string, current string, tr Translator) []Option {
	opts := make([]Option, 0, len(providers)+2)
	opts = append(opts, Option{Value: "", Label: tr.T("All"), Selected: current == ""})
	for _, p := range providers {
		if p == "" {
			continue
		}
		opts = append(opts, Option{Value: p, Label: p, Selected: p == current})
	}
	if current != "" && !slices.Contains(providers, current) {
		opts = append(opts, Option{Value: current, Label: current, Selected: true})
	}
	return opts
}

func viewError(err error, tr Translator) *ViewError {
	op := remoteimage.OpList
	msg := err.Error()
	var ne *remoteimage.NetworkError
	if errors.As(err, &ne) {
		op = ne.Op
		if ne.Cause != nil {
			msg = ne.Cause.Error()
		}
	}
	if op == remoteimage.OpDownload {
		return &ViewError{Op: op, Message: tr.T("ErrorDownloadingImage", msg)}
	}
	return &ViewError{Op: op, Message: tr.T("ErrorLoadingImages", msg), Retry: true}
}
