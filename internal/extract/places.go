package extract

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/ignite/event-etl/internal/domain"
	"github.com/ignite/event-etl/internal/pkg/httpretry"
	"github.com/ignite/event-etl/internal/pkg/logger"
)

const (
	// DefaultPlacesURL is the nearby-search endpoint.
	DefaultPlacesURL = "https://maps.googleapis.com/maps/api/place/nearbysearch/json"

	placesStatusOK          = "OK"
	placesStatusZeroResults = "ZERO_RESULTS"
)

// DefaultPlaceCategories are the keywords searched when none are configured.
var DefaultPlaceCategories = []string{"restaurant", "hotel", "tourist_attraction", "park", "museum", "bar"}

// PlacesConfig configures a PlacesExtractor.
type PlacesConfig struct {
	Name       string
	APIKey     string
	BaseURL    string
	Latitude   float64
	Longitude  float64
	RadiusM    int
	City       string
	Categories []string
	MaxPages   int
	// PageDelay is the wait before requesting a next_page_token, which
	// the API does not honor immediately.
	PageDelay time.Duration
}

// PlacesExtractor searches a places API around a point for each keyword
// category and maps every place to a raw record.
type PlacesExtractor struct {
	cfg    PlacesConfig
	client *httpretry.Client
}

// NewPlacesExtractor creates a places extractor. A nil client gets a
// default retrying client.
func NewPlacesExtractor(cfg PlacesConfig, client *httpretry.Client) *PlacesExtractor {
	if cfg.Name == "" {
		cfg.Name = "google_places"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultPlacesURL
	}
	if len(cfg.Categories) == 0 {
		cfg.Categories = DefaultPlaceCategories
	}
	if cfg.RadiusM <= 0 {
		cfg.RadiusM = 15000
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 3
	}
	if client == nil {
		client = httpretry.New(nil, 3)
	}
	return &PlacesExtractor{cfg: cfg, client: client}
}

func (p *PlacesExtractor) Name() string { return p.cfg.Name }

type placesResponse struct {
	Status        string  `json:"status"`
	ErrorMessage  string  `json:"error_message"`
	NextPageToken string  `json:"next_page_token"`
	Results       []place `json:"results"`
}

type place struct {
	PlaceID          string   `json:"place_id"`
	Name             string   `json:"name"`
	FormattedAddress string   `json:"formatted_address"`
	Vicinity         string   `json:"vicinity"`
	Rating           *float64 `json:"rating"`
	UserRatingsTotal int      `json:"user_ratings_total"`
	Geometry         struct {
		Location *struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
}

// Extract searches every category. A failing category is logged and the
// rest still run; the call fails only when every category failed.
func (p *PlacesExtractor) Extract(ctx context.Context) ([]domain.RawRecord, error) {
	if p.cfg.APIKey == "" {
		return nil, errors.New("places extractor: API key not configured")
	}

	var (
		records []domain.RawRecord
		errs    []error
	)
	for _, category := range p.cfg.Categories {
		recs, err := p.searchCategory(ctx, category)
		records = append(records, recs...)
		if err != nil {
			logger.Error("[PlacesExtractor] category search failed", "category", category, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", category, err))
		}
		if ctx.Err() != nil {
			return records, ctx.Err()
		}
	}
	if len(errs) == len(p.cfg.Categories) {
		return nil, errors.Join(errs...)
	}
	return records, nil
}

func (p *PlacesExtractor) searchCategory(ctx context.Context, category string) ([]domain.RawRecord, error) {
	params := url.Values{}
	params.Set("location", fmt.Sprintf("%g,%g", p.cfg.Latitude, p.cfg.Longitude))
	params.Set("radius", strconv.Itoa(p.cfg.RadiusM))
	params.Set("keyword", category)
	params.Set("key", p.cfg.APIKey)

	var records []domain.RawRecord
	for page := 0; page < p.cfg.MaxPages; page++ {
		var resp placesResponse
		if err := p.client.GetJSON(ctx, p.cfg.BaseURL+"?"+params.Encode(), &resp); err != nil {
			return records, err
		}
		if resp.Status != placesStatusOK && resp.Status != placesStatusZeroResults {
			return records, fmt.Errorf("api status %s: %s", resp.Status, resp.ErrorMessage)
		}
		for _, pl := range resp.Results {
			records = append(records, p.record(pl, category))
		}
		if resp.NextPageToken == "" {
			break
		}

		if p.cfg.PageDelay > 0 {
			select {
			case <-time.After(p.cfg.PageDelay):
			case <-ctx.Done():
				return records, ctx.Err()
			}
		}
		params = url.Values{}
		params.Set("pagetoken", resp.NextPageToken)
		params.Set("key", p.cfg.APIKey)
	}
	return records, nil
}

func (p *PlacesExtractor) record(pl place, category string) domain.RawRecord {
	address := pl.FormattedAddress
	if address == "" {
		address = pl.Vicinity
	}
	rating := "N/A"
	if pl.Rating != nil {
		rating = strconv.FormatFloat(*pl.Rating, 'f', -1, 64)
	}

	fields := map[string]any{
		domain.FieldName:         pl.Name,
		domain.FieldVenueName:    pl.Name,
		domain.FieldVenueAddress: address,
		domain.FieldVenueCity:    p.cfg.City,
		domain.FieldCategory:     category,
		domain.FieldDescription:  fmt.Sprintf("Rating:%s (%d reviews)", rating, pl.UserRatingsTotal),
	}
	if pl.Rating != nil {
		fields["rating"] = *pl.Rating
	}
	if loc := pl.Geometry.Location; loc != nil {
		fields[domain.FieldLatitude] = loc.Lat
		fields[domain.FieldLongitude] = loc.Lng
		if pl.Name != "" && pl.PlaceID != "" {
			fields[domain.FieldURL] = fmt.Sprintf("https://www.google.com/maps/search/?api=1&query=%g,%g&query_place_id=%s",
				loc.Lat, loc.Lng, url.QueryEscape(pl.PlaceID))
		}
	}
	return domain.NewRawRecord(p.cfg.Name, fields)
}
