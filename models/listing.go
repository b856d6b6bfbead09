package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Location is one typeahead candidate. Candidates arrive in relevance order.
type Location struct {
	Identifier  string `json:"locationIdentifier"`
	DisplayName string `json:"displayName"`
}

// SearchResultPage is one page of the search API.
type SearchResultPage struct {
	ResultCount string           `json:"resultCount"`
	Properties  []ListingSummary `json:"properties"`
}

// ListingSummary is a lightweight search result. The full object is kept
// verbatim in Raw so raw-JSON dumps lose nothing.
type ListingSummary struct {
	ID  string
	Raw json.RawMessage
}

// UnmarshalJSON keeps the raw object and lifts out its id, which the API
// sends as a number.
func (s *ListingSummary) UnmarshalJSON(data []byte) error {
	var head struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	id := strings.Trim(string(bytes.TrimSpace(head.ID)), `"`)
	if id == "null" {
		id = ""
	}
	s.ID = id
	s.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON writes the summary back out unchanged.
func (s ListingSummary) MarshalJSON() ([]byte, error) {
	if len(s.Raw) == 0 {
		return json.Marshal(map[string]string{"id": s.ID})
	}
	return s.Raw, nil
}

// ListingDetail is the decoded propertyData object of a listing page.
type ListingDetail map[string]any

// Record is a NormalizedRecord: a fixed, ordered set of named fields. A field
// whose path did not resolve is absent rather than a zero value.
type Record struct {
	names  []string
	values map[string]any
	set    map[string]bool
}

// NewRecord creates a Record whose schema is exactly names, in order.
func NewRecord(names []string) *Record {
	return &Record{
		names:  append([]string(nil), names...),
		values: make(map[string]any, len(names)),
		set:    make(map[string]bool, len(names)),
	}
}

// Set stores a resolved value. Names outside the schema are ignored.
func (r *Record) Set(name string, value any) {
	if !r.has(name) {
		return
	}
	if value == nil {
		delete(r.values, name)
		delete(r.set, name)
		return
	}
	r.values[name] = value
	r.set[name] = true
}

// Get returns the value of a field and whether it was present.
func (r *Record) Get(name string) (any, bool) {
	if !r.set[name] {
		return nil, false
	}
	return r.values[name], true
}

// Names returns the schema in mapping order.
func (r *Record) Names() []string {
	return append([]string(nil), r.names...)
}

// String returns a present field as a string: strings verbatim, anything
// else as compact JSON. Absent fields return "".
func (r *Record) String(name string) string {
	v, ok := r.Get(name)
	if !ok {
		return ""
	}
	return FormatValue(v)
}

// MarshalJSON writes the record as a JSON object with keys in schema order
// and absent fields as null.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range r.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		v, _ := r.Get(name)
		if err := writeMember(&buf, name, v); err != nil {
			return nil, fmt.Errorf("record field %q: %w", name, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *Record) has(name string) bool {
	for _, n := range r.names {
		if n == name {
			return true
		}
	}
	return false
}

// FormatValue renders a decoded JSON value as a table cell.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	default:
		b, err := marshalRaw(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}

// Object is a JSON object that encodes its keys in Keys order. Keys without
// an entry in Values encode as null.
type Object struct {
	Keys   []string
	Values map[string]any
}

func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeMember(&buf, k, o.Values[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeMember(buf *bytes.Buffer, key string, v any) error {
	k, err := marshalRaw(key)
	if err != nil {
		return err
	}
	val, err := marshalRaw(v)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(val)
	return nil
}

// marshalRaw is json.Marshal without HTML escaping: listing text is HTML
// and must reach the outputs unchanged.
func marshalRaw(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// SummaryReport holds analytics computed over the records of one run.
type SummaryReport struct {
	TotalRecords   int
	PricedRecords  int
	AveragePrice   float64
	MinPrice       float64
	MaxPrice       float64
	MostExpensive  *Record
	ByPropertyType map[string]int
	ByTransaction  map[string]int
	MissingIDs     int
}
