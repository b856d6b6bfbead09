package services

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jmespath/go-jmespath"

	"rightmove-scraper/models"
)

type compiledField struct {
	name string
	expr *jmespath.JMESPath
	// key order of every multi-select hash in the path
	shapes [][]string
}

// Projector turns decoded listing objects into flat records through a fixed
// field table. It holds no mutable state and is safe for concurrent use.
type Projector struct {
	fields []compiledField
	names  []string
}

// NewProjector compiles every path in fields. Duplicate names and invalid
// expressions are rejected up front so projection itself cannot fail.
func NewProjector(fields []Field) (*Projector, error) {
	p := &Projector{
		fields: make([]compiledField, 0, len(fields)),
		names:  make([]string, 0, len(fields)),
	}
	seen := make(map[string]struct{}, len(fields))

	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("projector: field with empty name (path %q)", f.Path)
		}
		if _, dup := seen[f.Name]; dup {
			return nil, fmt.Errorf("projector: duplicate field %q", f.Name)
		}
		seen[f.Name] = struct{}{}

		expr, err := jmespath.Compile(f.Path)
		if err != nil {
			return nil, fmt.Errorf("projector: compile %q (%s): %w", f.Name, f.Path, err)
		}
		shapes, err := hashKeyOrders(f.Path)
		if err != nil {
			return nil, fmt.Errorf("projector: key order %q (%s): %w", f.Name, f.Path, err)
		}
		p.fields = append(p.fields, compiledField{name: f.Name, expr: expr, shapes: shapes})
		p.names = append(p.names, f.Name)
	}
	return p, nil
}

// MustNewProjector is NewProjector for static tables.
func MustNewProjector(fields []Field) *Projector {
	p, err := NewProjector(fields)
	if err != nil {
		panic(err)
	}
	return p
}

// Names returns the output schema in table order.
func (p *Projector) Names() []string {
	return append([]string(nil), p.names...)
}

// Project evaluates every path independently against detail. A path that does
// not resolve, or fails at evaluation, leaves its field absent.
func (p *Projector) Project(detail models.ListingDetail) *models.Record {
	rec := models.NewRecord(p.names)
	if detail == nil {
		return rec
	}

	// jmespath only walks plain maps, not named map types.
	root := map[string]any(detail)
	for _, f := range p.fields {
		value, err := f.expr.Search(root)
		if err != nil {
			continue
		}
		if len(f.shapes) > 0 {
			value = ordered(value, f.shapes)
		}
		rec.Set(f.name, value)
	}
	return rec
}

// hashKeyOrders returns the keys of each multi-select hash in path, in the
// order the expression lists them. go-jmespath evaluates hashes into plain
// maps and keeps its AST private, so the order is read from the parser's
// printed tree: a KeyValPair sits four columns right of its hash and its
// next line holds the quoted key.
func hashKeyOrders(path string) ([][]string, error) {
	ast, err := jmespath.NewParser().Parse(path)
	if err != nil {
		return nil, err
	}

	var shapes [][]string
	open := make(map[int]int) // indent of a hash -> index into shapes
	lines := strings.Split(ast.String(), "\n")
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " ")
		indent := len(line) - len(trimmed)
		switch trimmed {
		case "ASTMultiSelectHash {":
			open[indent] = len(shapes)
			shapes = append(shapes, nil)
		case "ASTKeyValPair {":
			idx, ok := open[indent-4]
			if !ok || i+1 >= len(lines) {
				return nil, fmt.Errorf("key/value pair outside a hash at line %d", i)
			}
			raw := strings.TrimPrefix(strings.TrimLeft(lines[i+1], " "), "value: ")
			key, err := strconv.Unquote(raw)
			if err != nil {
				return nil, fmt.Errorf("hash key %s: %w", raw, err)
			}
			shapes[idx] = append(shapes[idx], key)
		}
	}
	return shapes, nil
}

// ordered rewrites every object in v whose key set is exactly one of shapes
// as a models.Object in that shape's order. v itself is left untouched.
func ordered(v any, shapes [][]string) any {
	switch val := v.(type) {
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = ordered(e, shapes)
		}
		return out
	case map[string]any:
		for _, keys := range shapes {
			if !sameKeys(val, keys) {
				continue
			}
			values := make(map[string]any, len(val))
			for k, e := range val {
				values[k] = ordered(e, shapes)
			}
			return &models.Object{Keys: keys, Values: values}
		}
	}
	return v
}

func sameKeys(m map[string]any, keys []string) bool {
	if len(m) != len(keys) {
		return false
	}
	for _, k := range keys {
		if _, ok := m[k]; !ok {
			return false
		}
	}
	return true
}
