package api

import (
	"embed"
	"net/http"
	"time"

	"github.com/osteele/liquid"

	"github.com/ignite/event-etl/internal/domain"
	"github.com/ignite/event-etl/internal/pkg/httputil"
	"github.com/ignite/event-etl/internal/pkg/logger"
	"github.com/ignite/event-etl/internal/service/events"
)

//go:embed templates/dashboard.liquid
var templates embed.FS

// Dashboard renders the HTML event browser.
type Dashboard struct {
	tpl *liquid.Template
}

// NewDashboard parses the embedded template.
func NewDashboard() (*Dashboard, error) {
	src, err := templates.ReadFile("templates/dashboard.liquid")
	if err != nil {
		return nil, err
	}
	engine := liquid.NewEngine()
	engine.RegisterFilter("format_date", FormatDate)
	tpl, serr := engine.ParseTemplate(src)
	if serr != nil {
		return nil, serr
	}
	return &Dashboard{tpl: tpl}, nil
}

// FormatDate renders an RFC 3339 date as "Mar 14, 2026 at 08:00 PM".
// Anything else is returned unchanged.
func FormatDate(s string) string {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return t.Format("Jan 02, 2006 at 03:04 PM")
}

// Render produces the page for a query result.
func (d *Dashboard) Render(q events.Query, res events.Result, processing bool) (string, error) {
	rows := make([]map[string]any, 0, len(res.Events))
	for _, ev := range res.Events {
		rows = append(rows, eventBinding(ev))
	}
	out, err := d.tpl.RenderString(liquid.Bindings{
		"events":            rows,
		"sources":           res.Sources,
		"categories":        res.Categories,
		"selected_source":   q.Source,
		"selected_category": q.Category,
		"search_term":       q.Search,
		"filtered":          q.Source != "" || q.Category != "" || q.Search != "",
		"page":              q.Page,
		"total_pages":       res.TotalPages,
		"total_events":      res.TotalCount,
		"processing":        processing,
		"pagination":        paginationBinding(q, res.TotalPages),
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

func eventBinding(ev domain.EventRow) map[string]any {
	url := ev.URL
	if url == "" {
		url = "#"
	}
	return map[string]any{
		"name":          ev.Name,
		"url":           url,
		"event_date":    ev.EventDate,
		"season":        ev.Season,
		"venue_name":    ev.VenueName,
		"venue_address": ev.VenueAddress,
		"source":        ev.Source,
	}
}

func paginationBinding(q events.Query, totalPages int) map[string]any {
	win := PaginationRange(q.Page, totalPages, DefaultVisiblePages)
	links := make([]map[string]any, 0, len(win.Pages))
	for _, p := range win.Pages {
		links = append(links, map[string]any{"number": p, "href": pageURL(q, p), "active": p == q.Page})
	}
	b := map[string]any{
		"links":               links,
		"show_first":          win.ShowFirst,
		"show_last":           win.ShowLast,
		"show_left_ellipsis":  win.ShowLeftEllipsis,
		"show_right_ellipsis": win.ShowRightEllipsis,
		"first_href":          pageURL(q, 1),
		"last_href":           pageURL(q, totalPages),
		"prev_href":           "",
		"next_href":           "",
	}
	if q.Page > 1 {
		b["prev_href"] = pageURL(q, q.Page-1)
	}
	if q.Page < totalPages {
		b["next_href"] = pageURL(q, q.Page+1)
	}
	return b
}

// handleDashboard renders the event browser. While background work is
// running the query is skipped and a notice is shown.
//
//	GET /?page=&source=&category=&search=
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	q := ParseQuery(r)
	processing := s.status.Get(r.Context()) == domain.StatusRunning

	res := events.Result{Page: q.Page}
	if !processing {
		res = s.events.Query(r.Context(), q)
	}
	html, err := s.dashboard.Render(q, res, processing)
	if err != nil {
		logger.Error("[API] dashboard render failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "could not render dashboard")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))
}
