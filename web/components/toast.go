package components

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// ErrorToast renders a dismissable notification. kind is a CSS modifier
// such as "error" or "info".
func ErrorToast(kind, message string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTML(ctx, w)
		h.raw("<div")
		h.attr("class", "toast toast-"+kind)
		h.raw(` role="alert">`)
		h.text(message)
		h.raw(`</div>`)
		return h.err
	})
}

// ClosedDialog replaces a dialog once its session has closed. The empty
// element keeps the htmx target valid for late responses.
func ClosedDialog(sessionID, outcome string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTML(ctx, w)
		h.raw("<div")
		h.attr("id", DialogID(sessionID))
		h.attr("class", "browse-closed")
		h.attr("data-outcome", outcome)
		h.raw(` hidden></div>`)
		return h.err
	})
}
