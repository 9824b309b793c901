package api

import (
	"net/http"
	"strings"

	"github.com/ignite/event-etl/internal/domain"
	"github.com/ignite/event-etl/internal/pkg/httputil"
	"github.com/ignite/event-etl/internal/pkg/logger"
	"github.com/ignite/event-etl/internal/service/events"
)

// EventsResponse is one page of events plus the processing flag.
type EventsResponse struct {
	events.Result
	Processing bool `json:"processing"`
}

// handleEvents serves a page of events. While background work is running
// the query is deferred and an empty page is returned with processing set.
//
//	GET /api/events?page=&source=&category=&search=
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := ParseQuery(r)
	if s.status.Get(r.Context()) == domain.StatusRunning {
		httputil.OK(w, EventsResponse{Result: events.Result{
			Events:     []domain.EventRow{},
			Sources:    []string{},
			Categories: []string{},
			Page:       q.Page,
		}, Processing: true})
		return
	}
	httputil.OK(w, EventsResponse{Result: s.events.Query(r.Context(), q)})
}

// handleScrapeStatus reports the processing flag. Reading "complete"
// consumes it, so only one poller sees each completion.
//
//	GET /scrape_status
func (s *Server) handleScrapeStatus(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": string(s.status.Consume(r.Context()))})
}

// handleStatusPeek reports the flag without consuming it.
//
//	GET /api/status
func (s *Server) handleStatusPeek(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": string(s.status.Get(r.Context()))})
}

// handleLaunchScrape dispatches a batch run.
//
//	POST /launch_manual_scrape
func (s *Server) handleLaunchScrape(w http.ResponseWriter, r *http.Request) {
	id, err := s.dispatcher.DispatchBatch(r.Context())
	if err != nil {
		logger.Error("[API] manual batch dispatch failed", "error", err)
		if wantsHTML(r) {
			redirectHome(w, r)
			return
		}
		httputil.Error(w, http.StatusServiceUnavailable, "could not start batch run")
		return
	}
	logger.Info("[API] manual batch dispatched", "chain_id", id)
	if wantsHTML(r) {
		redirectHome(w, r)
		return
	}
	httputil.Accepted(w, map[string]string{"status": string(domain.StatusRunning), "chain_id": id})
}

// handleClear removes every event and raw record.
//
//	POST /clear
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.events.Clear(r.Context()); err != nil {
		if wantsHTML(r) {
			logger.Error("[API] clear failed", "error", err)
			redirectHome(w, r)
			return
		}
		httputil.InternalError(w, err)
		return
	}
	logger.Info("[API] all event data cleared")
	if wantsHTML(r) {
		redirectHome(w, r)
		return
	}
	httputil.OK(w, map[string]bool{"cleared": true})
}

// wantsHTML reports whether the request came from a dashboard form rather
// than an API client.
func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
