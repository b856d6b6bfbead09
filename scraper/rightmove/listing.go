package rightmove

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"rightmove-scraper/models"
)

// pageModelMarker introduces the embedded page state in a listing page.
const pageModelMarker = "PAGE_MODEL = "

// ErrMissingPropertyData means the page model decoded but carries no
// propertyData object.
var ErrMissingPropertyData = errors.New("page model has no propertyData")

// ExtractPropertyData finds the PAGE_MODEL script in a listing page and
// returns its propertyData object. ok is false when no such script exists,
// i.e. the page is not a listing page. A payload that is not valid JSON, or
// lacks propertyData, is an error.
func ExtractPropertyData(body []byte) (detail models.ListingDetail, ok bool, err error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("listing: parse html: %w", err)
	}

	var script string
	doc.Find("script").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := sel.Text()
		if strings.Contains(text, pageModelMarker) {
			script = text
			return false
		}
		return true
	})
	if script == "" {
		return nil, false, nil
	}

	_, payload, _ := strings.Cut(script, pageModelMarker)
	payload = strings.TrimSpace(payload)

	// Only the leading JSON value is decoded; a trailing ";" is tolerated.
	dec := json.NewDecoder(strings.NewReader(payload))
	dec.UseNumber()
	var model map[string]any
	if err := dec.Decode(&model); err != nil {
		return nil, true, fmt.Errorf("listing: decode PAGE_MODEL: %w", err)
	}

	data, found := model["propertyData"].(map[string]any)
	if !found {
		return nil, true, ErrMissingPropertyData
	}
	return models.ListingDetail(data), true, nil
}
