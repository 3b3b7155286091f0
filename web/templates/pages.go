package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/sydlexius/artbrowser/internal/browser"
	"github.com/sydlexius/artbrowser/web/components"
)

// BrowsePage hosts the image browser dialog of one session.
func BrowsePage(m PageMeta, v browser.View) templ.Component {
	return base(m, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<main class="browse-page">`); err != nil {
			return err
		}
		if err := components.BrowseDialog(v, components.Routes{BasePath: m.BasePath}).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</main>`)
		return err
	}))
}

// LoginPage renders the sign-in form. oidc adds a single sign-on link.
func LoginPage(m PageMeta, oidc bool) templ.Component {
	return base(m, authForm(m.BasePath+"/api/v1/auth/login", "Sign in", oidc, m.BasePath))
}

// SetupPage renders the first-run admin account form.
func SetupPage(m PageMeta) templ.Component {
	return base(m, authForm(m.BasePath+"/api/v1/auth/setup", "Create admin account", false, m.BasePath))
}

// IndexPage is shown to signed-in users who did not arrive from a media
// server item.
func IndexPage(m PageMeta) templ.Component {
	return base(m, templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<main class="index-page"><h1>artbrowser</h1>`+
			`<p>Open <code>/items/{itemId}/images/browse?server_id=...</code> to browse images for an item.</p>`+
			`<button type="button" hx-post="`+templ.EscapeString(m.BasePath)+`/api/v1/auth/logout">Sign out</button></main>`)
		return err
	}))
}

func authForm(action, submit string, oidc bool, basePath string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		s := `<main class="auth-page"><form class="auth-form" hx-post="` + templ.EscapeString(action) + `" hx-target="#auth-result">` +
			`<label>Username<input name="username" autocomplete="username" required></label>` +
			`<label>Password<input name="password" type="password" autocomplete="current-password" required></label>` +
			`<button type="submit">` + templ.EscapeString(submit) + `</button>` +
			`<div id="auth-result"></div></form>`
		if oidc {
			s += `<a class="oidc-login" href="` + templ.EscapeString(basePath) + `/auth/oidc/login">Sign in with single sign-on</a>`
		}
		s += `</main>`
		_, err := io.WriteString(w, s)
		return err
	})
}
