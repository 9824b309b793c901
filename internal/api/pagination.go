package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ignite/event-etl/internal/service/events"
)

// DefaultVisiblePages is how many page links the dashboard shows at once.
const DefaultVisiblePages = 5

// PageWindow is the run of page links shown around the current page.
type PageWindow struct {
	Pages             []int `json:"pages"`
	ShowFirst         bool  `json:"show_first"`
	ShowLast          bool  `json:"show_last"`
	ShowLeftEllipsis  bool  `json:"show_left_ellipsis"`
	ShowRightEllipsis bool  `json:"show_right_ellipsis"`
}

// PaginationRange centers a window of at most maxVisible pages on current,
// sliding it back when it would run past total. Zero total pages yields an
// empty window.
func PaginationRange(current, total, maxVisible int) PageWindow {
	if maxVisible < 1 {
		maxVisible = DefaultVisiblePages
	}
	start := max(1, current-maxVisible/2)
	end := min(total, start+maxVisible-1)
	if end-start+1 < maxVisible {
		start = max(1, end-maxVisible+1)
	}

	w := PageWindow{
		Pages:             []int{},
		ShowFirst:         start > 1,
		ShowLast:          end < total,
		ShowLeftEllipsis:  start > 2,
		ShowRightEllipsis: end < total-1,
	}
	for p := start; p <= end; p++ {
		w.Pages = append(w.Pages, p)
	}
	return w
}

// ParseQuery extracts the event query from page, source, category and
// search parameters. A missing or malformed page is page 1.
func ParseQuery(r *http.Request) events.Query {
	v := r.URL.Query()
	page, _ := strconv.Atoi(v.Get("page"))
	return events.Query{
		Page:     page,
		Source:   v.Get("source"),
		Category: v.Get("category"),
		Search:   v.Get("search"),
	}.Normalize()
}

// pageURL links to page of the dashboard with q's filters kept.
func pageURL(q events.Query, page int) string {
	v := url.Values{}
	v.Set("page", strconv.Itoa(page))
	if q.Source != "" {
		v.Set("source", q.Source)
	}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		v.Set("search", s)
	}
	return "/?" + v.Encode()
}
