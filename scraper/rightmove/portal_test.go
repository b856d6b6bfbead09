package rightmove

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rightmove-scraper/config"
	"rightmove-scraper/services"
	"rightmove-scraper/utils"
)

// syncBuffer lets concurrent log writes be inspected safely.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		BaseURL:        baseURL,
		RequestTimeout: 5 * time.Second,
		UserAgent:      "rightmove-scraper-test",
		AcceptLanguage: "en-GB",
		ResultsPerPage: 24,
		MaxResults:     1000,
		Channel:        "BUY",
		CurrencyCode:   "GBP",
		Radius:         "0.0",
		SortType:       "6",
		FetchMode:      config.FetchModeHTTP,
	}
}

func newTestScraper(t *testing.T, handler http.Handler, mutate func(*config.Config)) (*Scraper, *syncBuffer) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := testConfig(srv.URL)
	if mutate != nil {
		mutate(cfg)
	}

	client, err := NewClient(ClientOptions{
		BaseURL:        cfg.BaseURL,
		UserAgent:      cfg.UserAgent,
		AcceptLanguage: cfg.AcceptLanguage,
		Timeout:        cfg.RequestTimeout,
	})
	require.NoError(t, err)

	logs := &syncBuffer{}
	logger := utils.NewLoggerWithWriter(logs, "debug")
	return New(cfg, client, nil, services.MustNewProjector(services.PropertyFields), logger), logs
}

func listingPage(id string) string {
	return `<!DOCTYPE html><html><head>
<script>window.dataLayer = window.dataLayer || [];</script>
</head><body><div id="root"></div>
<script>
    window.PAGE_MODEL = {"propertyData":{"id":"` + id + `","bedrooms":3,"transactionType":"BUY",` +
		`"propertySubType":"Terraced","prices":{"primaryPrice":"£250,000"},` +
		`"images":[{"url":"https://media.example/` + id + `.jpg","caption":"Front"}]},"metadata":{"backLink":null}}
</script>
</body></html>`
}

const notListingPage = `<!DOCTYPE html><html><head><title>Property removed</title>
<script>window.dataLayer = [];</script></head><body><h1>This property has been removed</h1></body></html>`

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func summaries(ids ...int) []map[string]any {
	out := make([]map[string]any, len(ids))
	for i, id := range ids {
		out[i] = map[string]any{"id": id, "bedrooms": 2, "displayAddress": fmt.Sprintf("%d High Street", id)}
	}
	return out
}

func propertyID(path string) string {
	return strings.TrimPrefix(path, "/properties/")
}

// atoi is safe to call from handler goroutines: it never stops the test.
func atoi(t *testing.T, s string) int {
	t.Helper()
	n, err := strconv.Atoi(s)
	assert.NoError(t, err)
	return n
}

func atoiString(n int) string {
	return strconv.Itoa(n)
}
