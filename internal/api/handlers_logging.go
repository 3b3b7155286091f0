package api

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/sydlexius/artbrowser/internal/database"
	"github.com/sydlexius/artbrowser/internal/logging"
	"github.com/sydlexius/artbrowser/web/components"
)

// loggingPatch is a partial logging config. Nil fields, and non-positive
// rotation limits, keep the running value.
type loggingPatch struct {
	Level          *string `json:"level"`
	Format         *string `json:"format"`
	FilePath       *string `json:"file_path"`
	FileMaxSizeMB  int     `json:"file_max_size_mb"`
	FileMaxFiles   int     `json:"file_max_files"`
	FileMaxAgeDays int     `json:"file_max_age_days"`
}

func (p *loggingPatch) fromForm(f url.Values) {
	for field, dst := range map[string]**string{"level": &p.Level, "format": &p.Format, "file_path": &p.FilePath} {
		if f.Has(field) {
			v := f.Get(field)
			*dst = &v
		}
	}
	p.FileMaxSizeMB, _ = strconv.Atoi(f.Get("file_max_size_mb"))
	p.FileMaxFiles, _ = strconv.Atoi(f.Get("file_max_files"))
	p.FileMaxAgeDays, _ = strconv.Atoi(f.Get("file_max_age_days"))
}

// apply merges p over cur, or explains which value is unacceptable.
func (p loggingPatch) apply(cur logging.Config) (logging.Config, string) {
	next := cur
	if p.Level != nil && *p.Level != "" {
		if !logging.ValidLevel(*p.Level) {
			return cur, "invalid level; must be debug, info, warn, or error"
		}
		next.Level = *p.Level
	}
	if p.Format != nil && *p.Format != "" {
		if !logging.ValidFormat(*p.Format) {
			return cur, "invalid format; must be text or json"
		}
		next.Format = *p.Format
	}
	if p.FilePath != nil {
		next.FilePath = *p.FilePath
	}
	for _, lim := range []struct {
		v   int
		dst *int
	}{{p.FileMaxSizeMB, &next.FileMaxSizeMB}, {p.FileMaxFiles, &next.FileMaxFiles}, {p.FileMaxAgeDays, &next.FileMaxAgeDays}} {
		if lim.v > 0 {
			*lim.dst = lim.v
		}
	}
	return next, ""
}

func (r *Router) handleGetLogging(w http.ResponseWriter, req *http.Request) {
	if r.logManager == nil {
		writeError(w, req, http.StatusServiceUnavailable, "logging manager not available")
		return
	}
	writeJSON(w, http.StatusOK, r.logManager.Config())
}

// handleUpdateLogging changes logging at runtime and persists the result
// so it survives restarts.
func (r *Router) handleUpdateLogging(w http.ResponseWriter, req *http.Request) {
	if r.logManager == nil {
		writeError(w, req, http.StatusServiceUnavailable, "logging manager not available")
		return
	}

	var patch loggingPatch
	if err := decodeBody(req, &patch, patch.fromForm); err != nil {
		writeError(w, req, http.StatusBadRequest, "invalid request body")
		return
	}
	cfg, problem := patch.apply(r.logManager.Config())
	if problem != "" {
		writeError(w, req, http.StatusBadRequest, problem)
		return
	}

	if r.db != nil {
		if err := database.SaveLogging(req.Context(), r.db, cfg); err != nil {
			r.logger.Error("persisting logging settings", "error", err)
			writeError(w, req, http.StatusInternalServerError, "failed to persist setting")
			return
		}
	}
	r.logManager.Reconfigure(cfg)
	r.logger.Info("logging reconfigured", "config", cfg.String())

	if isHTMXRequest(req) {
		renderTempl(w, req, components.ErrorToast("info", "Logging settings updated."))
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}
