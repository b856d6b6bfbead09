package rightmove

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"rightmove-scraper/models"
)

var (
	// ErrEmptyQuery is returned for a blank location query.
	ErrEmptyQuery = errors.New("empty location query")
	// ErrNoLocations is returned when the typeahead has no candidate.
	ErrNoLocations = errors.New("no matching location")
)

// TokenizeQuery converts a place name into the typeahead path segment: the
// uppercased query cut into two-character groups joined by "/". An odd
// trailing character forms its own group, e.g. "edinburgh" -> "ED/IN/BU/RG/H".
func TokenizeQuery(query string) string {
	runes := []rune(strings.ToUpper(strings.TrimSpace(query)))
	groups := make([]string, 0, (len(runes)+1)/2)
	for i := 0; i < len(runes); i += 2 {
		end := min(i+2, len(runes))
		groups = append(groups, string(runes[i:end]))
	}
	return strings.Trim(strings.Join(groups, "/"), "/")
}

func (s *Scraper) typeaheadURL(query string) string {
	groups := strings.Split(TokenizeQuery(query), "/")
	for i, g := range groups {
		groups[i] = url.PathEscape(g)
	}
	return s.client.BaseURL() + "/typeAhead/uknostreet/" + strings.Join(groups, "/") + "/"
}

// LookupLocations asks the typeahead for candidates matching query, most
// likely first.
func (s *Scraper) LookupLocations(ctx context.Context, query string) ([]models.Location, error) {
	if TokenizeQuery(query) == "" {
		return nil, ErrEmptyQuery
	}

	var payload struct {
		Locations *[]models.Location `json:"typeAheadLocations"`
	}
	if err := s.client.getJSON(ctx, s.typeaheadURL(query), &payload); err != nil {
		return nil, fmt.Errorf("rightmove: typeahead %q: %w", query, err)
	}
	if payload.Locations == nil {
		return nil, fmt.Errorf("rightmove: typeahead %q: response has no typeAheadLocations", query)
	}

	locations := *payload.Locations
	s.logger.Debug("[rightmove] Typeahead %q returned %d candidates", query, len(locations))
	return locations, nil
}

// FindLocations returns the location identifiers matching query in
// relevance order. Callers conventionally take the first.
func (s *Scraper) FindLocations(ctx context.Context, query string) ([]string, error) {
	locations, err := s.LookupLocations(ctx, query)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(locations))
	for _, l := range locations {
		ids = append(ids, l.Identifier)
	}
	return ids, nil
}
