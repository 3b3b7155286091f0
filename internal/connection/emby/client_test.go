package emby

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"

	"github.com/sydlexius/artbrowser/internal/remoteimage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestTestConnection_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/System/Info" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("X-Emby-Token") != "test-key" {
			t.Errorf("missing or wrong auth header: %s", r.Header.Get("X-Emby-Token"))
		}
		http.ServeFile(w, r, "testdata/system_info.json")
	}))
	defer srv.Close()

	c := NewWithHTTPClient(srv.URL, "test-key", srv.Client(), testLogger())
	if err := c.TestConnection(context.Background()); err != nil {
		t.Fatalf("TestConnection failed: %v", err)
	}
}

func TestTestConnection_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
	}))
	defer srv.Close()

	c := NewWithHTTPClient(srv.URL, "bad-key", srv.Client(), testLogger())
	if err := c.TestConnection(context.Background()); err == nil {
		t.Fatal("expected error for unauthorized")
	}
}

func TestListRemoteImages(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Items/42/RemoteImages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		gotQuery = r.URL.Query()
		http.ServeFile(w, r, "testdata/remote_images.json")
	}))
	defer srv.Close()

	c := NewWithHTTPClient(srv.URL, "key", srv.Client(), testLogger())
	page, err := c.ListRemoteImages(context.Background(), remoteimage.Query{
		ItemID:              "42",
		Type:                remoteimage.TypePrimary,
		IncludeAllLanguages: true,
		StartIndex:          0,
		Limit:               6,
	})
	if err != nil {
		t.Fatalf("ListRemoteImages: %v", err)
	}

	tests := []struct{ key, want string }{
		{"Type", "Primary"},
		{"StartIndex", "0"},
		{"Limit", "6"},
		{"IncludeAllLanguages", "true"},
		{"ProviderName", ""},
	}
	for _, tt := range tests {
		if got := gotQuery.Get(tt.key); got != tt.want {
			t.Errorf("query %s = %q, want %q", tt.key, got, tt.want)
		}
	}

	if page.TotalRecordCount != 3 || len(page.Images) != 3 {
		t.Fatalf("page = %+v", page)
	}
	if page.Images[0].RatingType != remoteimage.RatingLikes || page.Images[0].ProviderName != "FanArt" {
		t.Errorf("image 0 = %+v", page.Images[0])
	}
	if img := page.Images[1]; img.Width != 2000 || img.Height != 3000 || img.VoteCount != 8 || img.ThumbnailURL == "" {
		t.Errorf("image 1 = %+v", img)
	}
	if page.Images[2].CommunityRating != nil {
		t.Errorf("missing rating decoded as %v", *page.Images[2].CommunityRating)
	}
}

func TestListRemoteImages_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewWithHTTPClient(srv.URL, "key", srv.Client(), testLogger())
	_, err := c.ListRemoteImages(context.Background(), remoteimage.Query{ItemID: "42", Limit: 30})
	if !remoteimage.IsNetworkError(err) {
		t.Fatalf("err = %v, want NetworkError", err)
	}
}

func TestDownloadRemoteImage(t *testing.T) {
	var gotMethod, gotPath string
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewWithHTTPClient(srv.URL, "key", srv.Client(), testLogger())
	err := c.DownloadRemoteImage(context.Background(), remoteimage.Commit{
		ItemID:       "42",
		Type:         remoteimage.TypeBackdrop,
		ImageURL:     "https://image.tmdb.org/t/p/original/b.jpg",
		ProviderName: "TheMovieDb",
	})
	if err != nil {
		t.Fatalf("DownloadRemoteImage: %v", err)
	}
	if gotMethod != http.MethodPost || gotPath != "/Items/42/RemoteImages/Download" {
		t.Errorf("request = %s %s", gotMethod, gotPath)
	}
	if gotQuery.Get("Type") != "Backdrop" || gotQuery.Get("ImageUrl") != "https://image.tmdb.org/t/p/original/b.jpg" || gotQuery.Get("ProviderName") != "TheMovieDb" {
		t.Errorf("query = %v", gotQuery)
	}
}

func TestDownloadRemoteImage_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("provider unreachable"))
	}))
	defer srv.Close()

	c := NewWithHTTPClient(srv.URL, "key", srv.Client(), testLogger())
	err := c.DownloadRemoteImage(context.Background(), remoteimage.Commit{ItemID: "42", Type: remoteimage.TypePrimary, ImageURL: "u"})
	var ne *remoteimage.NetworkError
	if !errors.As(err, &ne) || ne.Op != remoteimage.OpDownload {
		t.Fatalf("err = %v, want download NetworkError", err)
	}
}

func TestRemoteImageURL(t *testing.T) {
	c := New("http://emby.local:8096", "key", testLogger())
	want := "http://emby.local:8096/Images/Remote?ImageUrl=https%3A%2F%2Fimg%2Fa.jpg"
	if got := c.RemoteImageURL("https://img/a.jpg"); got != want {
		t.Errorf("RemoteImageURL = %q, want %q", got, want)
	}
}
