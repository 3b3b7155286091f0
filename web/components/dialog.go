package components

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/sydlexius/artbrowser/internal/browser"
)

// DialogID is the DOM id of a session's dialog element.
func DialogID(sessionID string) string {
	return "browse-" + sessionID
}

// BrowseDialog renders the whole dialog for one session. Every control
// swaps the dialog element with the server's response.
func BrowseDialog(v browser.View, routes Routes) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTML(ctx, w)
		id := DialogID(v.SessionID)
		target := "#" + id

		h.raw("<dialog open")
		h.attr("id", id)
		h.attr("class", "browse-dialog dialog-"+v.DialogSize)
		h.attr("hx-target", target)
		h.attr("hx-swap", "outerHTML")
		h.attr("hx-indicator", target+" .browse-busy")
		h.raw(">")

		h.raw(`<div class="dialog-header">`)
		h.raw(`<h3 class="dialog-title">`)
		h.text(v.Labels.Title)
		h.raw(`</h3>`)
		h.raw(`<button type="button" class="dialog-close"`)
		h.attr("hx-post", routes.Session(v.SessionID)+"/close")
		h.attr("title", v.Labels.Close)
		h.attr("aria-label", v.Labels.Close)
		h.raw(`>&times;</button></div>`)

		h.raw(`<div class="dialog-content">`)
		h.render(filters(v, routes))
		h.raw(`<div class="browse-busy htmx-indicator" aria-hidden="true"></div>`)
		if v.Error != nil {
			h.render(errorPanel(v, routes))
		}
		h.render(pagingBar(v, routes))
		h.render(grid(v, routes))
		h.render(pagingBar(v, routes))
		h.raw(`</div></dialog>`)
		return h.err
	})
}

func filters(v browser.View, routes Routes) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTML(ctx, w)
		put := routes.Session(v.SessionID) + "/filters"

		h.raw(`<div class="browse-filters">`)

		h.raw(`<label class="browse-filter">`)
		h.text(v.Labels.ImageType)
		h.raw(`<select name="image_type" hx-trigger="change"`)
		h.attr("hx-put", put)
		h.attr("hx-vals", hxVals("filter", "image_type"))
		h.raw(">")
		h.render(options(v.ImageTypes))
		h.raw(`</select></label>`)

		h.raw(`<label class="browse-filter">`)
		h.text(v.Labels.Source)
		h.raw(`<select name="provider" hx-trigger="change"`)
		h.attr("hx-put", put)
		h.attr("hx-vals", hxVals("filter", "provider"))
		h.raw(">")
		h.render(options(v.Providers))
		h.raw(`</select></label>`)

		h.raw(`<label class="browse-filter browse-checkbox">`)
		h.raw(`<input type="checkbox" name="include_all_languages" value="true" hx-trigger="change"`)
		h.attr("hx-put", put)
		h.attr("hx-vals", hxVals("filter", "include_all_languages"))
		h.flag("checked", v.IncludeAllLanguages)
		h.raw(">")
		h.text(v.Labels.IncludeAllLanguages)
		h.raw(`</label>`)

		h.raw(`</div>`)
		return h.err
	})
}

func options(opts []browser.Option) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTML(ctx, w)
		for _, o := range opts {
			h.raw("<option")
			h.attr("value", o.Value)
			h.flag("selected", o.Selected)
			h.raw(">")
			h.text(o.Label)
			h.raw("</option>")
		}
		return h.err
	})
}

func errorPanel(v browser.View, routes Routes) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTML(ctx, w)
		h.raw(`<div class="browse-error" role="alert"`)
		h.attr("data-op", v.Error.Op)
		h.raw(`><span>`)
		h.text(v.Error.Message)
		h.raw(`</span>`)
		if v.Error.Retry {
			h.raw(`<button type="button" class="browse-retry"`)
			h.attr("hx-post", routes.Session(v.SessionID)+"/retry")
			h.raw(">")
			h.text(v.Labels.Retry)
			h.raw(`</button>`)
		}
		h.raw(`</div>`)
		return h.err
	})
}

// pagingBar renders "1-5 of 42" and, when there is more than one page,
// the previous and next buttons.
func pagingBar(v browser.View, routes Routes) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTML(ctx, w)
		h.raw(`<div class="browse-paging"><span class="paging-text">`)
		h.text(v.PagingText)
		h.raw(`</span>`)
		if v.Paging.ShowControls {
			base := routes.Session(v.SessionID) + "/page/"
			h.raw(`<button type="button" class="paging-previous"`)
			h.attr("hx-post", base+"previous")
			h.flag("disabled", v.Paging.PreviousDisabled)
			h.raw(">")
			h.text(v.Labels.Previous)
			h.raw(`</button><button type="button" class="paging-next"`)
			h.attr("hx-post", base+"next")
			h.flag("disabled", v.Paging.NextDisabled)
			h.raw(">")
			h.text(v.Labels.Next)
			h.raw(`</button>`)
		}
		h.raw(`</div>`)
		return h.err
	})
}

func grid(v browser.View, routes Routes) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTML(ctx, w)
		h.raw(`<div class="browse-grid">`)
		if v.Empty {
			h.raw(`<p class="browse-empty">`)
			h.text(v.Labels.NoImages)
			h.raw(`</p>`)
		}
		for _, c := range v.Cards {
			h.render(ImageCard(c, v.SessionID, v.Labels.Download, routes))
		}
		h.raw(`</div>`)
		return h.err
	})
}
