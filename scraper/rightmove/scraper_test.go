package rightmove

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rightmove-scraper/config"
	"rightmove-scraper/models"
)

func recordIDs(records []*models.Record) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.String("id")
	}
	return ids
}

func TestScrapePropertiesSkipsNonListingPages(t *testing.T) {
	s, logs := newTestScraper(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := propertyID(r.URL.Path)
		if id == "404" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(notListingPage))
			return
		}
		_, _ = w.Write([]byte(listingPage(id)))
	}), nil)

	urls := []string{s.PropertyURL("1"), s.PropertyURL("404"), s.PropertyURL("2")}
	records, err := s.ScrapeProperties(context.Background(), urls)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"1", "2"}, recordIDs(records))
	assert.Contains(t, logs.String(), "is not a property listing page")
	assert.Contains(t, logs.String(), "/properties/404")
}

func TestScrapePropertiesDecodeErrorAbortsBatch(t *testing.T) {
	s, _ := newTestScraper(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := propertyID(r.URL.Path)
		if id == "bad" {
			_, _ = w.Write([]byte(`<script>window.PAGE_MODEL = {"propertyData": {"id": </script>`))
			return
		}
		_, _ = w.Write([]byte(listingPage(id)))
	}), nil)

	urls := []string{s.PropertyURL("1"), s.PropertyURL("bad"), s.PropertyURL("2")}
	records, err := s.ScrapeProperties(context.Background(), urls)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode PAGE_MODEL")
	assert.Nil(t, records)
}

func TestScrapePropertiesTransportErrorAbortsBatch(t *testing.T) {
	s, _ := newTestScraper(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(listingPage(propertyID(r.URL.Path))))
	}), nil)

	urls := []string{s.PropertyURL("1"), "http://127.0.0.1:1/properties/2"}
	_, err := s.ScrapeProperties(context.Background(), urls)
	assert.Error(t, err)
}

// orderedPortal holds listing "slow" back until "fast" has been served, so
// the completion order is the reverse of the input order.
func orderedPortal() http.Handler {
	fastServed := make(chan struct{})
	var once sync.Once
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := propertyID(r.URL.Path)
		if id == "slow" {
			<-fastServed
			time.Sleep(150 * time.Millisecond)
		}
		_, _ = w.Write([]byte(listingPage(id)))
		if id == "fast" {
			once.Do(func() { close(fastServed) })
		}
	})
}

func TestScrapePropertiesCompletionOrder(t *testing.T) {
	s, _ := newTestScraper(t, orderedPortal(), nil)

	urls := []string{s.PropertyURL("slow"), s.PropertyURL("fast")}
	records, err := s.ScrapeProperties(context.Background(), urls)
	require.NoError(t, err)
	assert.Equal(t, []string{"fast", "slow"}, recordIDs(records))
}

func TestScrapePropertiesPreserveOrder(t *testing.T) {
	s, _ := newTestScraper(t, orderedPortal(), func(c *config.Config) { c.PreserveOrder = true })

	urls := []string{s.PropertyURL("slow"), s.PropertyURL("fast")}
	records, err := s.ScrapeProperties(context.Background(), urls)
	require.NoError(t, err)
	assert.Equal(t, []string{"slow", "fast"}, recordIDs(records))
}

func TestScrapePropertiesRespectsConcurrencyLimit(t *testing.T) {
	var inFlight, peak int64
	s, _ := newTestScraper(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&inFlight, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		_, _ = w.Write([]byte(listingPage(propertyID(r.URL.Path))))
	}), func(c *config.Config) { c.MaxConcurrency = 2 })

	var urls []string
	for _, id := range []string{"1", "2", "3", "4", "5", "6"} {
		urls = append(urls, s.PropertyURL(id))
	}
	records, err := s.ScrapeProperties(context.Background(), urls)
	require.NoError(t, err)
	assert.Len(t, records, 6)
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(2))
}

func TestScrapeLocationEndToEnd(t *testing.T) {
	var (
		mu          sync.Mutex
		pagesServed []int
		detailHits  = map[string]int{}
	)
	mux := http.NewServeMux()
	mux.HandleFunc("/typeAhead/uknostreet/CO/RN/WA/LL/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"typeAheadLocations": []map[string]string{
				{"locationIdentifier": "REGION^61294", "displayName": "Cornwall"},
			},
		})
	})
	mux.HandleFunc("/api/_search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "REGION^61294", r.URL.Query().Get("locationIdentifier"))
		offset := atoi(t, r.URL.Query().Get("index"))
		mu.Lock()
		pagesServed = append(pagesServed, offset)
		mu.Unlock()

		ids := []int{100 + offset, 101 + offset}
		if offset > 0 {
			// featured listing repeated on every page
			ids = append(ids, 100)
		}
		writeJSON(w, map[string]any{"resultCount": "1,234", "properties": summaries(ids...)})
	})
	mux.HandleFunc("/properties/", func(w http.ResponseWriter, r *http.Request) {
		id := propertyID(r.URL.Path)
		mu.Lock()
		detailHits[id]++
		mu.Unlock()
		if id == "105" {
			_, _ = w.Write([]byte(notListingPage))
			return
		}
		_, _ = w.Write([]byte(listingPage(id)))
	})

	s, _ := newTestScraper(t, mux, func(c *config.Config) {
		c.ResultsPerPage = 2
		c.MaxResults = 10
	})

	result, err := s.ScrapeLocation(context.Background(), "cornwall")
	require.NoError(t, err)

	assert.Equal(t, "REGION^61294", result.Location.Identifier)
	assert.ElementsMatch(t, []int{0, 2, 4, 6, 8}, pagesServed)
	assert.Len(t, result.Summaries, 14)

	assert.Len(t, detailHits, 10)
	for id, hits := range detailHits {
		assert.Equal(t, 1, hits, "listing %s fetched once", id)
	}

	require.Len(t, result.Records, 9)
	for _, rec := range result.Records {
		id, ok := rec.Get("id")
		require.True(t, ok)
		assert.NotEmpty(t, id)
		assert.Equal(t, "£250,000", rec.String("price"))
		assert.True(t, strings.HasPrefix(rec.String("photos"), `[{"url":"https://media.example/`))
	}
}

func TestScrapeLocationNoCandidates(t *testing.T) {
	s, _ := newTestScraper(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"typeAheadLocations": []any{}})
	}), nil)

	_, err := s.ScrapeLocation(context.Background(), "atlantis")
	assert.True(t, errors.Is(err, ErrNoLocations), "got %v", err)
}

func TestListingURLsSkipsMissingIDs(t *testing.T) {
	s, logs := newTestScraper(t, http.NotFoundHandler(), nil)

	urls := s.listingURLs([]models.ListingSummary{{ID: "1"}, {ID: ""}, {ID: "1"}, {ID: "2"}})
	assert.Equal(t, []string{s.PropertyURL("1"), s.PropertyURL("2")}, urls)
	assert.Contains(t, logs.String(), "without id")
}

func TestListingURLsBuildsEachListingOnce(t *testing.T) {
	s, _ := newTestScraper(t, http.NotFoundHandler(), nil)

	// featured listings repeat at the top of later pages
	var page []models.ListingSummary
	for _, id := range []string{"10", "11", "12", "10", "13", "11"} {
		page = append(page, models.ListingSummary{ID: id})
	}
	urls := s.listingURLs(page)

	assert.Equal(t, []string{
		s.PropertyURL("10"), s.PropertyURL("11"), s.PropertyURL("12"), s.PropertyURL("13"),
	}, urls)
}
