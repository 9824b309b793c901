package extract

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"github.com/ignite/event-etl/internal/domain"
	"github.com/ignite/event-etl/internal/pkg/logger"
)

// Extension element names that carry event data in RSS event modules and
// common calendar feeds.
var (
	venueKeys = []string{"venue", "location"}
	dateKeys  = []string{"startdate", "start_date", "event_date", "dtstart"}
)

// FeedExtractor maps the items of one RSS or Atom feed to raw records.
type FeedExtractor struct {
	name   string
	url    string
	parser *gofeed.Parser
}

// NewFeedExtractor creates an extractor for the feed at url. A nil client
// uses a 30s timeout.
func NewFeedExtractor(name, url string, client *http.Client) *FeedExtractor {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	p := gofeed.NewParser()
	p.Client = client
	p.UserAgent = "event-etl/1.0"
	return &FeedExtractor{name: name, url: url, parser: p}
}

// WithUserAgent overrides the User-Agent sent with feed requests.
func (f *FeedExtractor) WithUserAgent(ua string) *FeedExtractor {
	if ua != "" {
		f.parser.UserAgent = ua
	}
	return f
}

func (f *FeedExtractor) Name() string { return f.name }

func (f *FeedExtractor) Extract(ctx context.Context) ([]domain.RawRecord, error) {
	feed, err := f.parser.ParseURLWithContext(f.url, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", f.url, err)
	}

	records := make([]domain.RawRecord, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		records = append(records, f.record(item))
	}
	logger.Info("[FeedExtractor] fetched feed", "extractor", f.name, "title", feed.Title, "items", len(records))
	return records, nil
}

func (f *FeedExtractor) record(item *gofeed.Item) domain.RawRecord {
	fields := map[string]any{
		domain.FieldName:        strings.TrimSpace(item.Title),
		domain.FieldURL:         strings.TrimSpace(item.Link),
		domain.FieldDescription: stripHTML(item.Description),
	}

	date := lookup(item, dateKeys)
	if date == "" {
		date = item.Published
	}
	if date == "" {
		date = item.Updated
	}
	if date != "" {
		fields[domain.FieldEventDate] = date
	}

	if venue := lookup(item, venueKeys); venue != "" {
		fields[domain.FieldVenueName] = venue
	}
	if len(item.Categories) > 0 {
		fields[domain.FieldCategory] = item.Categories[0]
	}
	if item.GUID != "" {
		fields["guid"] = item.GUID
	}
	if item.Image != nil && item.Image.URL != "" {
		fields["image_url"] = item.Image.URL
	}
	return domain.NewRawRecord(f.name, fields)
}

// lookup finds the first non-empty value for any of keys in the item's
// custom elements or namespaced extensions.
func lookup(item *gofeed.Item, keys []string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(item.Custom[k]); v != "" {
			return v
		}
	}
	for _, ns := range item.Extensions {
		for _, k := range keys {
			if v := firstExtensionValue(ns[k]); v != "" {
				return v
			}
		}
	}
	return ""
}

func firstExtensionValue(values []ext.Extension) string {
	for _, e := range values {
		if v := strings.TrimSpace(e.Value); v != "" {
			return v
		}
	}
	return ""
}
