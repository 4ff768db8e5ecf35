package main

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Patrickog1992/CODELOVE1/internal/format"
	"github.com/Patrickog1992/CODELOVE1/internal/i18n"
	"github.com/Patrickog1992/CODELOVE1/internal/requestctx"
)

// views holds one template set per page: the shared layouts and partials plus that
// page's file. In dev mode the sets are rebuilt on every render.
type views struct {
	dir    string
	dev    bool
	bundle *i18n.Bundle

	mu    sync.RWMutex
	pages map[string]*template.Template
}

func newViews(dir string, dev bool, bundle *i18n.Bundle) (*views, error) {
	v := &views{dir: dir, dev: dev, bundle: bundle}
	pages, err := v.parse()
	if err != nil {
		return nil, err
	}
	v.pages = pages
	return v, nil
}

func (v *views) funcs() template.FuncMap {
	return template.FuncMap{
		"t": func(lang, key string) string { return v.bundle.T(lang, key) },
		"tf": func(lang, key string, args ...any) string {
			return v.bundle.Tf(lang, key, args...)
		},
		"fmtCount": func(n int, lang string) string { return format.FmtCount(int64(n), lang) },
		"fmtDate":  format.FmtLongDate,
		"fmtBytes": format.FmtBytes,
		"ldjson":   func(s string) template.JS { return template.JS(s) },
		"mediaURL": mediaURL,
		"add":      func(a, b int) int { return a + b },
		"year":     func() int { return time.Now().Year() },
		"join":     strings.Join,
		"list":     func(items ...string) []string { return items },
	}
}

// mediaURL lets photo and audio URLs through html/template's URL filter: http(s) links
// and image data URIs only.
func mediaURL(raw string) template.URL {
	s := strings.TrimSpace(raw)
	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "https://"), strings.HasPrefix(lower, "http://"):
		return template.URL(s)
	case strings.HasPrefix(lower, "data:image/"):
		return template.URL(s)
	case strings.HasPrefix(s, "/"):
		return template.URL(s)
	default:
		return template.URL("")
	}
}

func (v *views) parse() (map[string]*template.Template, error) {
	var shared, pageFiles []string
	if err := filepath.WalkDir(v.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".tmpl") {
			return nil
		}
		if filepath.Base(filepath.Dir(path)) == "pages" {
			pageFiles = append(pageFiles, path)
		} else {
			shared = append(shared, path)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	if len(pageFiles) == 0 {
		return nil, fmt.Errorf("no page templates found under %s", v.dir)
	}

	base := template.New("_root").Funcs(v.funcs())
	if len(shared) > 0 {
		if _, err := base.ParseFiles(shared...); err != nil {
			return nil, err
		}
	}
	pages := make(map[string]*template.Template, len(pageFiles))
	for _, file := range pageFiles {
		clone, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := clone.ParseFiles(file); err != nil {
			return nil, err
		}
		pages[strings.TrimSuffix(filepath.Base(file), ".tmpl")] = clone
	}
	return pages, nil
}

func (v *views) lookup(page string) (*template.Template, error) {
	if v.dev {
		pages, err := v.parse()
		if err != nil {
			return nil, fmt.Errorf("template parse error: %w", err)
		}
		v.mu.Lock()
		v.pages = pages
		v.mu.Unlock()
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	t, ok := v.pages[page]
	if !ok {
		return nil, fmt.Errorf("template %q not found", page)
	}
	return t, nil
}

// render executes name (a full page layout "base" or a fragment) from page's set.
// Output is buffered so a failing template never leaves a half-written response.
func (v *views) render(w http.ResponseWriter, r *http.Request, status int, page, name string, data any) {
	logger := requestctx.Logger(r.Context())
	t, err := v.lookup(page)
	if err != nil {
		logger.Error("template lookup failed", zap.String("page", page), zap.Error(err))
		http.Error(w, "template not initialized", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		logger.Error("template exec failed", zap.String("page", page), zap.String("template", name), zap.Error(err))
		http.Error(w, "template exec error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
