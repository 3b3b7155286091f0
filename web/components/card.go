package components

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/sydlexius/artbrowser/internal/browser"
)

// ImageCard renders one candidate image. On TV layouts the whole card is a
// button that downloads the image; otherwise the card carries a single
// download button and, when allowed, a link to the full-size original.
func ImageCard(c browser.Card, sessionID, downloadLabel string, routes Routes) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTML(ctx, w)
		post := routes.Session(sessionID) + "/download"
		vals := hxVals("image_url", c.ImageURL, "type", string(c.Type), "provider_name", c.ProviderName)

		class := "card card-" + string(c.Shape)
		if c.AsButton {
			h.raw(`<button type="button"`)
			h.attr("class", class+" card-button")
			h.attr("hx-post", post)
			h.attr("hx-vals", vals)
			h.raw(">")
		} else {
			h.raw("<div")
			h.attr("class", class)
			h.raw(">")
		}

		h.raw(`<div class="card-image">`)
		if c.ExternalLink && c.FullURL != "" {
			h.raw("<a")
			h.url("href", c.FullURL)
			h.raw(` target="_blank" rel="noopener noreferrer">`)
		}
		h.raw("<img")
		h.url("src", c.DisplayURL)
		h.attr("alt", c.ProviderName)
		h.raw(` loading="lazy">`)
		if c.ExternalLink && c.FullURL != "" {
			h.raw("</a>")
		}
		h.raw(`</div>`)

		h.raw(`<div class="card-footer"><div class="card-text card-provider">`)
		h.text(c.ProviderName)
		h.raw(`</div>`)
		if c.Detail != "" {
			h.raw(`<div class="card-text card-detail">`)
			h.text(c.Detail)
			h.raw(`</div>`)
		}
		h.raw(`<div class="card-text card-rating">`)
		h.text(c.Rating)
		h.raw(`</div>`)
		if c.ShowDownloadButton {
			h.raw(`<button type="button" class="card-download"`)
			h.attr("hx-post", post)
			h.attr("hx-vals", vals)
			h.attr("title", downloadLabel)
			h.raw(">")
			h.text(downloadLabel)
			h.raw(`</button>`)
		}
		h.raw(`</div>`)

		if c.AsButton {
			h.raw(`</button>`)
		} else {
			h.raw(`</div>`)
		}
		return h.err
	})
}
