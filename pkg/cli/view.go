package cli

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/mchmarny/leadpulse/pkg/data"
)

func faviconHandler(w http.ResponseWriter, r *http.Request) {
	file, err := embedFS.ReadFile("assets/img/favicon.svg")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	if _, err = w.Write(file); err != nil {
		slog.Error("failed to write favicon", "error", err)
	}
}

func homeViewHandler(tmpl *template.Template, d *dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		industries, err := data.GetIndustries(d.cfg.DB)
		if err != nil {
			slog.Error("failed to list industries", "error", err)
			industries = data.Industries
		}
		v := map[string]any{
			"version":    version,
			"commit":     commit,
			"build_date": date,
			"err":        r.URL.Query().Get("err"),
			"industries": industries,
			"filter":     d.cfg.Config.Filter,
			"thresholds": d.cfg.Config.Thresholds,
		}
		if err := tmpl.ExecuteTemplate(w, "home", v); err != nil {
			slog.Error("template render failed", "error", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
	}
}
