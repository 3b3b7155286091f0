package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sydlexius/artbrowser/internal/browser"
	"github.com/sydlexius/artbrowser/internal/connection"
	img "github.com/sydlexius/artbrowser/internal/image"
	"github.com/sydlexius/artbrowser/internal/remoteimage"
	"github.com/sydlexius/artbrowser/web/components"
	"github.com/sydlexius/artbrowser/web/templates"
)

const (
	previewTimeout     = 30 * time.Second
	defaultWaitTimeout = 30 * time.Second
	maxWaitTimeout     = 5 * time.Minute
)

type openRequest struct {
	ServerID  string `json:"server_id"`
	ItemID    string `json:"item_id"`
	ItemType  string `json:"item_type"`
	ImageType string `json:"image_type"`
	Layout    string `json:"layout"`
}

// filterRequest changes exactly one filter. Form posts name the field in
// "filter"; JSON bodies set exactly one of the pointer fields.
type filterRequest struct {
	ImageType           *string `json:"image_type"`
	Provider            *string `json:"provider"`
	IncludeAllLanguages *bool   `json:"include_all_languages"`
}

type downloadRequest struct {
	ImageURL     string `json:"image_url"`
	Type         string `json:"type"`
	ProviderName string `json:"provider_name"`
}

// decodeBody fills dst from a JSON body, or from form values via fromForm.
func decodeBody(req *http.Request, dst any, fromForm func(url.Values)) error {
	if strings.HasPrefix(req.Header.Get("Content-Type"), "application/json") {
		return json.NewDecoder(req.Body).Decode(dst)
	}
	if err := req.ParseForm(); err != nil {
		return err
	}
	fromForm(req.Form)
	return nil
}

func (r *Router) routes() components.Routes {
	return components.Routes{BasePath: r.basePath}
}

// buildView renders a session snapshot with image URLs routed through the
// preview proxy. External links point at the provider's original.
func (r *Router) buildView(s *browser.Session) browser.View {
	routes := r.routes()
	id := s.ID
	return browser.BuildView(s.Snapshot(), r.translator, browser.URLMapper{
		Display: func(u string) string { return routes.Preview(id, u) },
		Full:    func(u string) string { return u },
	})
}

// respondView writes the dialog for htmx callers and the view model as JSON
// otherwise. status applies to JSON responses only; htmx swaps need 2xx.
func (r *Router) respondView(w http.ResponseWriter, req *http.Request, s *browser.Session, status int) {
	v := r.buildView(s)
	if isHTMXRequest(req) {
		renderTempl(w, req, components.BrowseDialog(v, r.routes()))
		return
	}
	writeJSON(w, status, v)
}

// respondAfterFetch reports the outcome of an operation that may have
// re-fetched. Listing and download failures stay on the session and are
// shown inline, so the dialog is still rendered.
func (r *Router) respondAfterFetch(w http.ResponseWriter, req *http.Request, s *browser.Session, err error) {
	switch {
	case err == nil, errors.Is(err, browser.ErrStaleResponse):
		r.respondView(w, req, s, http.StatusOK)
	case remoteimage.IsNetworkError(err):
		r.respondView(w, req, s, http.StatusBadGateway)
	default:
		r.browseError(w, req, err)
	}
}

func (r *Router) respondClosed(w http.ResponseWriter, req *http.Request, id string, outcome browser.Outcome) {
	if isHTMXRequest(req) {
		renderTempl(w, req, components.ClosedDialog(id, outcome.String()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"session_id": id,
		"outcome":    outcome.String(),
	})
}

// browseError maps browser and connection errors to HTTP statuses.
func (r *Router) browseError(w http.ResponseWriter, req *http.Request, err error) {
	switch {
	case errors.Is(err, browser.ErrSessionNotFound):
		writeError(w, req, http.StatusNotFound, "browse session not found")
	case errors.Is(err, browser.ErrSessionClosed):
		writeError(w, req, http.StatusConflict, "browse session is closed")
	case errors.Is(err, browser.ErrInvalidRequest), errors.Is(err, remoteimage.ErrUnknownImageType):
		writeError(w, req, http.StatusBadRequest, err.Error())
	case errors.Is(err, connection.ErrNotFound):
		writeError(w, req, http.StatusNotFound, "server not found")
	case errors.Is(err, connection.ErrDisabled):
		writeError(w, req, http.StatusConflict, "server connection is disabled")
	case remoteimage.IsNetworkError(err):
		writeError(w, req, http.StatusBadGateway, err.Error())
	default:
		r.logger.Error("browse request failed", "path", req.URL.Path, "error", err)
		writeError(w, req, http.StatusInternalServerError, "internal error")
	}
}

func (r *Router) openParams(body openRequest) browser.OpenParams {
	layout := body.Layout
	if layout == "" {
		layout = r.defaultLayout
	}
	return browser.OpenParams{
		ItemID:    body.ItemID,
		ServerID:  body.ServerID,
		ItemType:  body.ItemType,
		ImageType: remoteimage.ImageType(body.ImageType),
		Layout:    browser.ParseLayout(layout),
	}
}

// open starts a session. A non-network error from the first fetch still
// leaves a usable session, so it is only logged.
func (r *Router) open(ctx context.Context, body openRequest) (*browser.Session, error) {
	s, err := r.browser.Open(ctx, r.openParams(body))
	if err != nil && s == nil {
		return nil, err
	}
	if err != nil {
		r.logger.Warn("first fetch failed", "session_id", s.ID, "error", err)
	}
	return s, nil
}

// handleBrowseOpen handles POST /api/v1/browse.
func (r *Router) handleBrowseOpen(w http.ResponseWriter, req *http.Request) {
	var body openRequest
	err := decodeBody(req, &body, func(f url.Values) {
		body = openRequest{
			ServerID:  f.Get("server_id"),
			ItemID:    f.Get("item_id"),
			ItemType:  f.Get("item_type"),
			ImageType: f.Get("image_type"),
			Layout:    f.Get("layout"),
		}
	})
	if err != nil {
		writeError(w, req, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.ServerID == "" {
		writeError(w, req, http.StatusBadRequest, "server_id is required")
		return
	}

	s, err := r.open(req.Context(), body)
	if err != nil {
		r.browseError(w, req, err)
		return
	}
	r.respondView(w, req, s, http.StatusCreated)
}

// handleBrowseGet handles GET /api/v1/browse/{id}.
func (r *Router) handleBrowseGet(w http.ResponseWriter, req *http.Request) {
	s, err := r.browser.Get(req.PathValue("id"))
	if err != nil {
		r.browseError(w, req, err)
		return
	}
	r.respondView(w, req, s, http.StatusOK)
}

// handleBrowseFilters handles PUT /api/v1/browse/{id}/filters.
func (r *Router) handleBrowseFilters(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	s, err := r.browser.Get(id)
	if err != nil {
		r.browseError(w, req, err)
		return
	}

	var body filterRequest
	err = decodeBody(req, &body, func(f url.Values) {
		switch f.Get("filter") {
		case "image_type":
			v := f.Get("image_type")
			body.ImageType = &v
		case "provider":
			v := f.Get("provider")
			body.Provider = &v
		case "include_all_languages":
			// Unchecked boxes are not submitted.
			v := f.Get("include_all_languages") == "true"
			body.IncludeAllLanguages = &v
		}
	})
	if err != nil {
		writeError(w, req, http.StatusBadRequest, "invalid request body")
		return
	}

	change, err := body.change()
	if err != nil {
		r.browseError(w, req, err)
		return
	}
	r.respondAfterFetch(w, req, s, r.browser.Apply(req.Context(), id, change))
}

func (f filterRequest) change() (browser.Change, error) {
	n := 0
	var change browser.Change
	if f.ImageType != nil {
		n++
		t, err := remoteimage.ParseImageType(*f.ImageType)
		if err != nil {
			return nil, err
		}
		change = browser.SetImageType(t)
	}
	if f.Provider != nil {
		n++
		change = browser.SetProvider(*f.Provider)
	}
	if f.IncludeAllLanguages != nil {
		n++
		change = browser.SetIncludeAllLanguages(*f.IncludeAllLanguages)
	}
	if n != 1 {
		return nil, fmt.Errorf("%w: exactly one filter must be set", browser.ErrInvalidRequest)
	}
	return change, nil
}

// handleBrowsePage handles POST /api/v1/browse/{id}/page/{dir}.
func (r *Router) handleBrowsePage(w http.ResponseWriter, req *http.Request) {
	var change browser.Change
	switch req.PathValue("dir") {
	case "next":
		change = browser.NextPage()
	case "previous":
		change = browser.PreviousPage()
	default:
		writeError(w, req, http.StatusBadRequest, "direction must be next or previous")
		return
	}

	id := req.PathValue("id")
	s, err := r.browser.Get(id)
	if err != nil {
		r.browseError(w, req, err)
		return
	}
	r.respondAfterFetch(w, req, s, r.browser.Apply(req.Context(), id, change))
}

// handleBrowseRetry handles POST /api/v1/browse/{id}/retry.
func (r *Router) handleBrowseRetry(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	s, err := r.browser.Get(id)
	if err != nil {
		r.browseError(w, req, err)
		return
	}
	r.respondAfterFetch(w, req, s, r.browser.Reload(req.Context(), id))
}

// handleBrowseDownload handles POST /api/v1/browse/{id}/download. Success
// closes the session as changed.
func (r *Router) handleBrowseDownload(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	s, err := r.browser.Get(id)
	if err != nil {
		r.browseError(w, req, err)
		return
	}

	var body downloadRequest
	err = decodeBody(req, &body, func(f url.Values) {
		body = downloadRequest{
			ImageURL:     f.Get("image_url"),
			Type:         f.Get("type"),
			ProviderName: f.Get("provider_name"),
		}
	})
	if err != nil {
		writeError(w, req, http.StatusBadRequest, "invalid request body")
		return
	}

	err = r.browser.Download(req.Context(), id, browser.DownloadRequest{
		ImageURL:     body.ImageURL,
		Type:         remoteimage.ImageType(body.Type),
		ProviderName: body.ProviderName,
	})
	if err != nil {
		r.respondAfterFetch(w, req, s, err)
		return
	}
	r.respondClosed(w, req, id, browser.OutcomeChanged)
}

// handleBrowseClose handles POST /api/v1/browse/{id}/close.
func (r *Router) handleBrowseClose(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	outcome, err := r.browser.Close(id)
	if err != nil {
		r.browseError(w, req, err)
		return
	}
	r.respondClosed(w, req, id, outcome)
}

// handleBrowseWait handles GET /api/v1/browse/{id}/wait. It blocks until the
// session closes or the timeout passes, answering 204 in the latter case.
func (r *Router) handleBrowseWait(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	s, err := r.browser.Get(id)
	if err != nil {
		r.browseError(w, req, err)
		return
	}

	timeout := defaultWaitTimeout
	if v := req.URL.Query().Get("timeout"); v != "" {
		secs, convErr := strconv.Atoi(v)
		if convErr != nil || secs < 1 {
			writeError(w, req, http.StatusBadRequest, "timeout must be a positive number of seconds")
			return
		}
		timeout = min(time.Duration(secs)*time.Second, maxWaitTimeout)
	}

	ctx, cancel := context.WithTimeout(req.Context(), timeout)
	defer cancel()
	outcome, err := s.Wait(ctx)
	if err != nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"session_id": id,
		"outcome":    outcome.String(),
	})
}

// handleBrowsePreview handles GET /api/v1/browse/{id}/preview?url=... It
// fetches a candidate image through the media server so the API key never
// reaches the browser. Only URLs on the session's current page are served.
func (r *Router) handleBrowsePreview(w http.ResponseWriter, req *http.Request) {
	s, err := r.browser.Get(req.PathValue("id"))
	if err != nil {
		r.browseError(w, req, err)
		return
	}

	imageURL := req.URL.Query().Get("url")
	snap := s.Snapshot()
	if imageURL == "" || !pageHasImage(snap.Page, imageURL) {
		http.NotFound(w, req)
		return
	}

	client, err := r.clients.ClientFor(req.Context(), snap.ServerID)
	if err != nil {
		r.browseError(w, req, err)
		return
	}

	ctx, cancel := context.WithTimeout(req.Context(), previewTimeout)
	defer cancel()
	data, err := img.Fetch(ctx, r.httpClient, client.RemoteImageURL(imageURL), client.Authorize)
	if err != nil {
		r.logger.Warn("preview fetch failed", "session_id", snap.ID, "error", err)
		http.Error(w, "image unavailable", http.StatusBadGateway)
		return
	}

	contentType := http.DetectContentType(data)
	if snap.Layout.Slow && r.previewMaxWidth > 0 && r.previewMaxHeight > 0 {
		p, err := img.Downscale(data, r.previewMaxWidth, r.previewMaxHeight)
		if err != nil {
			r.logger.Warn("preview downscale failed", "session_id", snap.ID, "error", err)
		} else {
			data, contentType = p.Data, p.ContentType
		}
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func pageHasImage(page *remoteimage.Page, imageURL string) bool {
	if page == nil {
		return false
	}
	for _, rec := range page.Images {
		if rec.URL == imageURL || (rec.ThumbnailURL != "" && rec.ThumbnailURL == imageURL) {
			return true
		}
	}
	return false
}

// handleBrowsePageView serves a full page hosting the dialog, for clients
// that open the browser in a frame or popup:
// GET /items/{itemId}/images/browse?server_id=...&image_type=...&layout=...
func (r *Router) handleBrowsePageView(w http.ResponseWriter, req *http.Request) {
	if r.needsLogin(w, req) {
		return
	}

	q := req.URL.Query()
	body := openRequest{
		ServerID:  q.Get("server_id"),
		ItemID:    req.PathValue("itemId"),
		ItemType:  q.Get("item_type"),
		ImageType: q.Get("image_type"),
		Layout:    q.Get("layout"),
	}
	if body.ServerID == "" {
		http.Error(w, "server_id is required", http.StatusBadRequest)
		return
	}

	s, err := r.open(req.Context(), body)
	if err != nil {
		r.browseError(w, req, err)
		return
	}
	v := r.buildView(s)
	renderTempl(w, req, templates.BrowsePage(r.pageMeta(req, v.Labels.Title), v))
}
