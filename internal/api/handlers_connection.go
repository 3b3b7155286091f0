package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/sydlexius/artbrowser/internal/connection"
)

const connectionTestTimeout = 15 * time.Second

// connectionResponse is what clients see of a Connection. The API key is
// reduced to whether one is stored.
type connectionResponse struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Type          string     `json:"type"`
	URL           string     `json:"url"`
	HasKey        bool       `json:"has_key"`
	Enabled       bool       `json:"enabled"`
	Status        string     `json:"status"`
	StatusMessage string     `json:"status_message,omitempty"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func newConnectionResponse(c *connection.Connection) connectionResponse {
	return connectionResponse{
		ID:            c.ID,
		Name:          c.Name,
		Type:          c.Type,
		URL:           c.URL,
		HasKey:        c.APIKey != "",
		Enabled:       c.Enabled,
		Status:        c.Status,
		StatusMessage: c.StatusMessage,
		LastCheckedAt: c.LastCheckedAt,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

// connectionInput is the create/update body. Empty strings and a nil
// Enabled leave the existing value alone on update.
type connectionInput struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	URL      string `json:"url"`
	APIKey   string `json:"api_key"` //nolint:gosec // G101: request field, not a credential
	Enabled  *bool  `json:"enabled"`
	SkipTest bool   `json:"skip_test"`
}

func readConnectionInput(req *http.Request) (connectionInput, error) {
	var in connectionInput
	err := decodeBody(req, &in, func(f url.Values) {
		in.Name = f.Get("name")
		in.Type = f.Get("type")
		in.URL = f.Get("url")
		in.APIKey = f.Get("api_key")
		in.SkipTest = f.Get("skip_test") == "true"
		if f.Has("enabled") {
			on := f.Get("enabled") == "true" || f.Get("enabled") == "on"
			in.Enabled = &on
		}
	})
	return in, err
}

func (in connectionInput) applyTo(c *connection.Connection) {
	for dst, v := range map[*string]string{&c.Name: in.Name, &c.Type: in.Type, &c.URL: in.URL, &c.APIKey: in.APIKey} {
		if v != "" {
			*dst = v
		}
	}
	if in.Enabled != nil {
		c.Enabled = *in.Enabled
	}
}

// loadConnection fetches the {id} connection, writing the error response
// itself when that fails.
func (r *Router) loadConnection(w http.ResponseWriter, req *http.Request) (*connection.Connection, bool) {
	c, err := r.connectionService.GetByID(req.Context(), req.PathValue("id"))
	if err != nil {
		r.connectionError(w, err)
		return nil, false
	}
	return c, true
}

func (r *Router) connectionError(w http.ResponseWriter, err error) {
	if errors.Is(err, connection.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "connection not found"})
		return
	}
	r.logger.Error("connection request failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

// probe dials a media server, saved or not.
func (r *Router) probe(ctx context.Context, c *connection.Connection) error {
	client, err := connection.NewClient(c, r.logger)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, connectionTestTimeout)
	defer cancel()
	return client.TestConnection(ctx)
}

func (r *Router) handleListConnections(w http.ResponseWriter, req *http.Request) {
	conns, err := r.connectionService.List(req.Context())
	if err != nil {
		r.connectionError(w, err)
		return
	}
	out := make([]connectionResponse, 0, len(conns))
	for i := range conns {
		out = append(out, newConnectionResponse(&conns[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (r *Router) handleGetConnection(w http.ResponseWriter, req *http.Request) {
	if c, ok := r.loadConnection(w, req); ok {
		writeJSON(w, http.StatusOK, newConnectionResponse(c))
	}
}

// handleCreateConnection stores a new server. Unless skip_test is set the
// server must answer first; a failed probe is reported with 200 and
// status test_failed so forms can show it inline.
func (r *Router) handleCreateConnection(w http.ResponseWriter, req *http.Request) {
	in, err := readConnectionInput(req)
	if err != nil {
		writeError(w, req, http.StatusBadRequest, "invalid request body")
		return
	}
	c := &connection.Connection{Enabled: true}
	in.applyTo(c)
	if err := c.Validate(); err != nil {
		writeError(w, req, http.StatusBadRequest, err.Error())
		return
	}

	if !in.SkipTest {
		if err := r.probe(req.Context(), c); err != nil {
			r.logger.Info("connection probe failed", "type", c.Type, "url", c.URL, "error", err)
			writeJSON(w, http.StatusOK, map[string]string{"status": "test_failed", "error": err.Error()})
			return
		}
		c.Status = connection.StatusOK
	}

	if err := r.connectionService.Create(req.Context(), c); err != nil {
		writeError(w, req, http.StatusBadRequest, err.Error())
		return
	}
	if c.Status == connection.StatusOK {
		if err := r.connectionService.UpdateStatus(req.Context(), c.ID, connection.StatusOK, ""); err != nil {
			r.logger.Warn("recording probe result", "connection_id", c.ID, "error", err)
		}
	}

	if isHTMXRequest(req) {
		w.Header().Set("HX-Refresh", "true")
		w.WriteHeader(http.StatusCreated)
		return
	}
	writeJSON(w, http.StatusCreated, newConnectionResponse(c))
}

func (r *Router) handleUpdateConnection(w http.ResponseWriter, req *http.Request) {
	c, ok := r.loadConnection(w, req)
	if !ok {
		return
	}
	in, err := readConnectionInput(req)
	if err != nil {
		writeError(w, req, http.StatusBadRequest, "invalid request body")
		return
	}
	in.applyTo(c)
	if err := c.Validate(); err != nil {
		writeError(w, req, http.StatusBadRequest, err.Error())
		return
	}
	if err := r.connectionService.Update(req.Context(), c); err != nil {
		r.connectionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newConnectionResponse(c))
}

// handleDeleteConnection removes a connection. Open browse sessions against
// it keep their client until they close.
func (r *Router) handleDeleteConnection(w http.ResponseWriter, req *http.Request) {
	if err := r.connectionService.Delete(req.Context(), req.PathValue("id")); err != nil {
		r.connectionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleTestConnection probes a saved connection and records the result.
func (r *Router) handleTestConnection(w http.ResponseWriter, req *http.Request) {
	c, ok := r.loadConnection(w, req)
	if !ok {
		return
	}
	status, msg := connection.StatusOK, ""
	if err := r.probe(req.Context(), c); err != nil {
		status, msg = connection.StatusError, err.Error()
	}
	if err := r.connectionService.UpdateStatus(req.Context(), c.ID, status, msg); err != nil {
		r.logger.Warn("recording probe result", "connection_id", c.ID, "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status, "message": msg})
}
