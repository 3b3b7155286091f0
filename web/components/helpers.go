package components

import (
	"context"
	"encoding/json"
	"io"
	"net/url"

	"github.com/a-h/templ"
)

// escapeJSONValue escapes special characters in a string for safe embedding
// in a JSON value within an HTML attribute.
func escapeJSONValue(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return s
	}
	// json.Marshal wraps the string in quotes; strip them for embedding in hx-vals.
	return string(b[1 : len(b)-1])
}

// hxVals builds an hx-vals JSON object from ordered key/value pairs.
func hxVals(kv ...string) string {
	s := "{"
	for i := 0; i+1 < len(kv); i += 2 {
		if i > 0 {
			s += ","
		}
		s += `"` + escapeJSONValue(kv[i]) + `":"` + escapeJSONValue(kv[i+1]) + `"`
	}
	return s + "}"
}

// Routes builds the URLs the dialog markup points at.
type Routes struct {
	BasePath string
}

// Session returns the API root of one browse session.
func (r Routes) Session(id string) string {
	return r.BasePath + "/api/v1/browse/" + url.PathEscape(id)
}

// Preview returns the proxied display URL of a provider image.
func (r Routes) Preview(id, imageURL string) string {
	return r.Session(id) + "/preview?url=" + url.QueryEscape(imageURL)
}

// html writes markup and remembers the first write error, so component
// bodies read top to bottom without checking every call.
type html struct {
	ctx context.Context
	w   io.Writer
	err error
}

func newHTML(ctx context.Context, w io.Writer) *html {
	return &html{ctx: ctx, w: w}
}

func (h *html) raw(s string) {
	if h.err != nil {
		return
	}
	_, h.err = io.WriteString(h.w, s)
}

func (h *html) text(s string) {
	h.raw(templ.EscapeString(s))
}

func (h *html) attr(name, value string) {
	h.raw(" " + name + `="` + templ.EscapeString(value) + `"`)
}

// url writes an href or src attribute, replacing unsafe schemes.
func (h *html) url(name, value string) {
	h.attr(name, string(templ.URL(value)))
}

func (h *html) flag(name string, on bool) {
	if on {
		h.raw(" " + name)
	}
}

func (h *html) render(c templ.Component) {
	if h.err != nil {
		return
	}
	h.err = c.Render(h.ctx, h.w)
}
