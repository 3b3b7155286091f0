// Package templates renders the full HTML pages. Dialog fragments live in
// web/components.
package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// AssetPaths holds cache-busted static asset URLs.
type AssetPaths struct {
	CSS  string
	HTMX string
	App  string
}

// PageMeta is shared by every page.
type PageMeta struct {
	Title     string
	BasePath  string
	CSRFToken string
	Assets    AssetPaths
}

// base wraps body in the document shell. The CSRF token rides on hx-headers
// so every htmx request echoes it without client script.
func base(m PageMeta, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var err error
		write := func(s string) {
			if err == nil {
				_, err = io.WriteString(w, s)
			}
		}
		attr := func(name, value string) {
			write(" " + name + `="` + templ.EscapeString(value) + `"`)
		}

		write("<!DOCTYPE html>\n<html lang=\"en\"><head><meta charset=\"utf-8\">")
		write(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		write("<title>" + templ.EscapeString(m.Title) + "</title>")
		write(`<link rel="stylesheet"`)
		attr("href", m.Assets.CSS)
		write(`><script defer`)
		attr("src", m.Assets.HTMX)
		write(`></script><script defer`)
		attr("src", m.Assets.App)
		write(`></script></head><body`)
		attr("data-base-path", m.BasePath)
		if m.CSRFToken != "" {
			attr("hx-headers", `{"X-CSRF-Token":"`+m.CSRFToken+`"}`)
		}
		write(">")
		if err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		write(`<div id="toast" role="status" aria-live="polite"></div></body></html>`)
		return err
	})
}
