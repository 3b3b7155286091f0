package api

import (
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// StaticAssets serves the stylesheet and scripts with content-hash cache
// busting. Paths carry a version query parameter, e.g.
// /static/css/styles.css?v=abc123, and a matching hash earns immutable
// cache headers.
type StaticAssets struct {
	dir      string
	basePath string
	logger   *slog.Logger

	mu     sync.RWMutex
	hashes map[string]string // path -> content hash
}

// NewStaticAssets creates a StaticAssets manager that scans dir.
func NewStaticAssets(dir, basePath string, logger *slog.Logger) *StaticAssets {
	sa := &StaticAssets{
		dir:      dir,
		basePath: basePath,
		logger:   logger,
		hashes:   make(map[string]string),
	}
	sa.scan()
	return sa
}

// Path returns a cache-busted URL for a static file, e.g. Path("/css/styles.css")
// returns "/static/css/styles.css?v=a1b2c3d4e5f6" under an empty base path.
func (sa *StaticAssets) Path(filePath string) string {
	sa.mu.RLock()
	hash, ok := sa.hashes[filePath]
	sa.mu.RUnlock()

	p := sa.basePath + "/static" + filePath
	if !ok {
		return p
	}
	return p + "?v=" + hash[:12]
}

// Handler serves files under the static directory with cache headers.
func (sa *StaticAssets) Handler() http.Handler {
	prefix := sa.basePath + "/static"
	stripped := http.StripPrefix(prefix+"/", http.FileServer(http.Dir(sa.dir)))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Directory listings are not part of the asset surface.
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}

		if v := r.URL.Query().Get("v"); v != "" {
			relativePath := strings.TrimPrefix(r.URL.Path, prefix)
			sa.mu.RLock()
			expectedHash, exists := sa.hashes[relativePath]
			sa.mu.RUnlock()

			if exists && strings.HasPrefix(expectedHash, v) {
				w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
			} else {
				w.Header().Set("Cache-Control", "public, max-age=3600")
			}
		} else {
			w.Header().Set("Cache-Control", "public, max-age=300")
		}

		stripped.ServeHTTP(w, r)
	})
}

// Rescan rehashes the directory, e.g. after the watcher sees a change.
func (sa *StaticAssets) Rescan() {
	sa.scan()
}

func (sa *StaticAssets) scan() {
	hashes := make(map[string]string)

	err := filepath.WalkDir(sa.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}

		data, err := os.ReadFile(path) //nolint:gosec // walking our own static dir
		if err != nil {
			sa.logger.Warn("failed to hash static file", "path", path, "error", err)
			return nil
		}

		rel, err := filepath.Rel(sa.dir, path)
		if err != nil {
			return nil
		}
		h := sha256.Sum256(data)
		hashes["/"+filepath.ToSlash(rel)] = hex.EncodeToString(h[:])
		return nil
	})
	if err != nil {
		sa.logger.Warn("scanning static dir", "dir", sa.dir, "error", err)
	}

	sa.mu.Lock()
	sa.hashes = hashes
	sa.mu.Unlock()

	sa.logger.Debug("static assets scanned", slog.Int("files", len(hashes)))
}
