package rightmove

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"rightmove-scraper/config"
	"rightmove-scraper/models"
)

// SearchOptions are the fixed query parameters of the search API.
type SearchOptions struct {
	Channel        string
	CurrencyCode   string
	IncludeSSTC    bool
	Radius         string
	SortType       string
	ResultsPerPage int
	// MaxResults caps pagination: no page offset at or beyond it is requested.
	MaxResults int
}

// SearchOptionsFromConfig copies the search settings out of cfg.
func SearchOptionsFromConfig(cfg *config.Config) SearchOptions {
	return SearchOptions{
		Channel:        cfg.Channel,
		CurrencyCode:   cfg.CurrencyCode,
		IncludeSSTC:    cfg.IncludeSSTC,
		Radius:         cfg.Radius,
		SortType:       cfg.SortType,
		ResultsPerPage: cfg.ResultsPerPage,
		MaxResults:     cfg.MaxResults,
	}
}

// Query builds the search API query string for one page.
func (o SearchOptions) Query(locationID string, offset int) url.Values {
	return url.Values{
		"areaSizeUnit":              {"sqft"},
		"channel":                   {o.Channel},
		"currencyCode":              {o.CurrencyCode},
		"includeSSTC":               {strconv.FormatBool(o.IncludeSSTC)},
		"index":                     {strconv.Itoa(offset)},
		"isFetching":                {"false"},
		"locationIdentifier":        {locationID},
		"numberOfPropertiesPerPage": {strconv.Itoa(o.ResultsPerPage)},
		"radius":                    {o.Radius},
		"sortType":                  {o.SortType},
		"viewType":                  {"LIST"},
	}
}

// PageOffsets lists the page offsets to request: multiples of pageSize
// strictly below both total and limit. Offset 0 comes first.
func PageOffsets(total, pageSize, limit int) []int {
	if pageSize <= 0 {
		return nil
	}
	var offsets []int
	for off := 0; off < total && off < limit; off += pageSize {
		offsets = append(offsets, off)
	}
	return offsets
}

// ParseResultCount parses the declared total, which the API formats with
// thousands separators ("1,234").
func ParseResultCount(s string) (int, error) {
	cleaned := strings.NewReplacer(",", "", " ", "").Replace(strings.TrimSpace(s))
	n, err := strconv.Atoi(cleaned)
	if err != nil {
		return 0, fmt.Errorf("rightmove: result count %q: %w", s, err)
	}
	return n, nil
}

type searchPayload struct {
	ResultCount json.RawMessage          `json:"resultCount"`
	Properties  *[]models.ListingSummary `json:"properties"`
}

func (s *Scraper) searchURL(locationID string, offset int) string {
	return s.client.BaseURL() + "/api/_search?" + s.search.Query(locationID, offset).Encode()
}

func (s *Scraper) fetchSearchPage(ctx context.Context, locationID string, offset int) (*models.SearchResultPage, error) {
	var payload searchPayload
	if err := s.client.getJSON(ctx, s.searchURL(locationID, offset), &payload); err != nil {
		return nil, fmt.Errorf("rightmove: search page %d: %w", offset, err)
	}
	if payload.Properties == nil {
		return nil, fmt.Errorf("rightmove: search page %d: response has no properties", offset)
	}

	// resultCount is normally a string, but accept a bare number too.
	count := strings.Trim(string(payload.ResultCount), `"`)
	return &models.SearchResultPage{
		ResultCount: count,
		Properties:  *payload.Properties,
	}, nil
}

// Search pages through the results for locationID. Page 0 is fetched first
// to learn the total; the remaining pages are fetched concurrently and
// appended in the order they complete.
func (s *Scraper) Search(ctx context.Context, locationID string) ([]models.ListingSummary, error) {
	first, err := s.fetchSearchPage(ctx, locationID, 0)
	if err != nil {
		return nil, err
	}
	total, err := ParseResultCount(first.ResultCount)
	if err != nil {
		return nil, err
	}

	results := append([]models.ListingSummary(nil), first.Properties...)
	offsets := PageOffsets(total, s.search.ResultsPerPage, s.search.MaxResults)
	if len(offsets) > 0 {
		offsets = offsets[1:]
	}
	s.logger.Info("[rightmove] %s: %d results declared, fetching %d more pages",
		locationID, total, len(offsets))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	if s.maxConcurrency > 0 {
		g.SetLimit(s.maxConcurrency)
	}
	for _, offset := range offsets {
		offset := offset
		g.Go(func() error {
			page, err := s.fetchSearchPage(gctx, locationID, offset)
			if err != nil {
				return err
			}
			mu.Lock()
			results = append(results, page.Properties...)
			mu.Unlock()
			s.logger.Debug("[rightmove] Search page %d: %d results", offset, len(page.Properties))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}
