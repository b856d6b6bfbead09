package rightmove

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"rightmove-scraper/config"
	"rightmove-scraper/models"
	"rightmove-scraper/services"
	"rightmove-scraper/utils"
)

// Scraper drives location lookup, search pagination and listing extraction
// against one shared Client.
type Scraper struct {
	client    *Client
	fetcher   Fetcher
	projector *services.Projector
	logger    *utils.Logger
	search    SearchOptions

	maxConcurrency int
	preserveOrder  bool
}

// New creates a ready-to-use Scraper. When fetcher is nil listing pages are
// fetched with client.
func New(cfg *config.Config, client *Client, fetcher Fetcher, projector *services.Projector, logger *utils.Logger) *Scraper {
	if fetcher == nil {
		fetcher = client
	}
	return &Scraper{
		client:         client,
		fetcher:        fetcher,
		projector:      projector,
		logger:         logger,
		search:         SearchOptionsFromConfig(cfg),
		maxConcurrency: cfg.MaxConcurrency,
		preserveOrder:  cfg.PreserveOrder,
	}
}

// PropertyURL returns the listing page URL for a listing ID.
func (s *Scraper) PropertyURL(id string) string {
	return s.client.BaseURL() + "/properties/" + id + "#/"
}

// ScrapeProperty fetches one listing page and projects it. It returns nil
// without error for pages that are not listing pages.
func (s *Scraper) ScrapeProperty(ctx context.Context, url string) (*models.Record, error) {
	resp, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	detail, ok, err := ExtractPropertyData(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("rightmove: %s: %w", url, err)
	}
	if !ok {
		s.logger.Warn("[rightmove] Page %s is not a property listing page (HTTP %d)", url, resp.StatusCode)
		return nil, nil
	}

	return s.projector.Project(detail), nil
}

// ScrapeProperties fetches all urls concurrently, extracting and projecting
// each page as soon as it arrives. Pages without listing data produce no
// record. Any other failure aborts the batch.
//
// Records are returned in completion order, which need not match urls. With
// PRESERVE_ORDER set they follow urls instead.
func (s *Scraper) ScrapeProperties(ctx context.Context, urls []string) ([]*models.Record, error) {
	start := time.Now()
	defer s.logger.Since("scrape properties", start)

	var (
		mu        sync.Mutex
		completed []*models.Record
		slots     = make([]*models.Record, len(urls))
	)

	g, gctx := errgroup.WithContext(ctx)
	if s.maxConcurrency > 0 {
		g.SetLimit(s.maxConcurrency)
	}
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			rec, err := s.ScrapeProperty(gctx, u)
			if err != nil {
				return err
			}
			if rec == nil {
				return nil
			}
			mu.Lock()
			if s.preserveOrder {
				slots[i] = rec
			} else {
				completed = append(completed, rec)
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if !s.preserveOrder {
		return completed, nil
	}
	records := make([]*models.Record, 0, len(slots))
	for _, rec := range slots {
		if rec != nil {
			records = append(records, rec)
		}
	}
	return records, nil
}

// LocationResult is the outcome of an end-to-end location scrape.
type LocationResult struct {
	Location  models.Location
	Summaries []models.ListingSummary
	Records   []*models.Record
}

// ScrapeLocation resolves query, pages through its search results and
// scrapes every listing found.
func (s *Scraper) ScrapeLocation(ctx context.Context, query string) (*LocationResult, error) {
	locations, err := s.LookupLocations(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(locations) == 0 {
		return nil, fmt.Errorf("rightmove: %q: %w", query, ErrNoLocations)
	}
	location := locations[0]
	s.logger.Info("[rightmove] %q resolved to %s (%s)", query, location.Identifier, location.DisplayName)

	summaries, err := s.Search(ctx, location.Identifier)
	if err != nil {
		return nil, err
	}

	urls := s.listingURLs(summaries)
	s.logger.Info("[rightmove] %d search results, %d unique listings to scrape", len(summaries), len(urls))

	records, err := s.ScrapeProperties(ctx, urls)
	if err != nil {
		return nil, err
	}
	s.logger.Info("[rightmove] Scraped %d listing records", len(records))

	return &LocationResult{
		Location:  location,
		Summaries: summaries,
		Records:   records,
	}, nil
}

// listingURLs turns summaries into detail URLs, once per listing ID.
// Featured listings can show up on more than one results page.
func (s *Scraper) listingURLs(summaries []models.ListingSummary) []string {
	seen := make(map[string]struct{}, len(summaries))
	urls := make([]string, 0, len(summaries))
	for _, sum := range summaries {
		if sum.ID == "" {
			s.logger.Warn("[rightmove] Search result without id skipped")
			continue
		}
		if _, dup := seen[sum.ID]; dup {
			s.logger.Debug("[rightmove] Duplicate listing %s skipped", sum.ID)
			continue
		}
		seen[sum.ID] = struct{}{}
		urls = append(urls, s.PropertyURL(sum.ID))
	}
	return urls
}
