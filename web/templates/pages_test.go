package templates

import (
	"context"
	"strings"
	"testing"

	"github.com/sydlexius/artbrowser/internal/browser"
	"github.com/sydlexius/artbrowser/internal/i18n"
	"github.com/sydlexius/artbrowser/internal/remoteimage"
)

func TestBrowsePage(t *testing.T) {
	v := browser.BuildView(browser.Snapshot{
		ID:     "s9",
		ItemID: "item",
		Layout: browser.ParseLayout("tv"),
		State:  browser.State{ImageType: remoteimage.TypeBackdrop, PageSize: 30},
		Page:   &remoteimage.Page{},
	}, i18n.MustDefault(), browser.URLMapper{})

	m := PageMeta{
		Title:     "Browse",
		BasePath:  "/ab",
		CSRFToken: "tok",
		Assets:    AssetPaths{CSS: "/ab/static/css/styles.css?v=1", HTMX: "/ab/static/js/htmx.min.js", App: "/ab/static/js/app.js"},
	}
	var sb strings.Builder
	if err := BrowsePage(m, v).Render(context.Background(), &sb); err != nil {
		t.Fatal(err)
	}
	out := sb.String()
	for _, want := range []string{
		"<!DOCTYPE html>",
		`hx-headers="{&#34;X-CSRF-Token&#34;:&#34;tok&#34;}"`,
		`id="browse-s9"`,
		"dialog-fullscreen",
		"0-0 of 0",
		`src="/ab/static/js/htmx.min.js"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in\n%s", want, out)
		}
	}
}

func TestLoginPage_OIDCLink(t *testing.T) {
	var with, without strings.Builder
	m := PageMeta{BasePath: "/ab"}
	if err := LoginPage(m, true).Render(context.Background(), &with); err != nil {
		t.Fatal(err)
	}
	if err := LoginPage(m, false).Render(context.Background(), &without); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(with.String(), `/ab/auth/oidc/login`) {
		t.Error("oidc link missing")
	}
	if strings.Contains(without.String(), "oidc") {
		t.Error("oidc link shown without provider")
	}
}
