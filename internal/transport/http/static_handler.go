package http

import (
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"fbcarch/internal/config"
	apierrors "fbcarch/internal/errors"
)

// StaticHandler serves the bundled single-page front end and the logo.
// Files are read from disk on each request.
type StaticHandler struct {
	distDir  string
	logoFile string
	logger   *slog.Logger
}

// NewStaticHandler creates a handler over distDir and logoFile
func NewStaticHandler(distDir, logoFile string, logger *slog.Logger) *StaticHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StaticHandler{
		distDir:  distDir,
		logoFile: logoFile,
		logger:   logger.With(slog.String("handler", "static")),
	}
}

// Available reports whether a front-end bundle exists
func (h *StaticHandler) Available() bool {
	return config.DirExists(h.distDir)
}

// Mount registers /assets/* and the catch-all on r. Nothing is registered
// when no bundle exists, so unknown paths stay 404.
func (h *StaticHandler) Mount(r chi.Router) {
	if !h.Available() {
		h.logger.Info("front-end bundle not found, static routes disabled",
			slog.String("dist_dir", h.distDir))
		return
	}

	assetsDir := filepath.Join(h.distDir, "assets")
	if config.DirExists(assetsDir) {
		r.Handle("/assets/*", http.StripPrefix("/assets", http.FileServer(http.Dir(assetsDir))))
	}
	r.Get("/*", h.ServeApp)
}

// Logo handles GET /api/logo. A missing logo is reported with status 200.
func (h *StaticHandler) Logo(w http.ResponseWriter, r *http.Request) {
	if !config.FileExists(h.logoFile) {
		apierrors.WriteError(w, r, apierrors.ErrNoLogo)
		return
	}
	serveFile(w, r, h.logoFile)
}

// ServeApp serves the requested file from the bundle, falling back to
// index.html so client-side routes resolve.
func (h *StaticHandler) ServeApp(w http.ResponseWriter, r *http.Request) {
	if target := h.resolve(r.URL.Path); target != "" && config.FileExists(target) {
		serveFile(w, r, target)
		return
	}

	index := filepath.Join(h.distDir, "index.html")
	if !config.FileExists(index) {
		http.NotFound(w, r)
		return
	}
	serveFile(w, r, index)
}

// resolve maps a URL path onto the bundle. Cleaning against "/" keeps the
// result inside distDir.
func (h *StaticHandler) resolve(urlPath string) string {
	cleaned := path.Clean("/" + urlPath)
	if cleaned == "/" {
		return ""
	}
	return filepath.Join(h.distDir, filepath.FromSlash(strings.TrimPrefix(cleaned, "/")))
}

// serveFile writes a file with a content type derived from its name.
// http.ServeFile is avoided because it redirects requests for index.html.
func serveFile(w http.ResponseWriter, r *http.Request, name string) {
	f, err := os.Open(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
