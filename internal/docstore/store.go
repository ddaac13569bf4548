// Package docstore provides a backing-store agnostic collection interface over
// JSON-shaped records. The same contract is implemented by an in-memory store,
// a single JSON file, MongoDB and a PostgreSQL JSONB table.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

// IDField is the name of the opaque string identifier carried by every document.
const IDField = "id"

// ErrDuplicate is returned when an insert or update would violate the uniqueness of
// the identifier or of a field declared unique in Options.
var ErrDuplicate = errors.New("duplicate key")

// Document is a JSON-normalized record: numbers are float64, nested objects are
// Documents or map[string]any, arrays are []any.
type Document map[string]any

// ID returns the identifier of the document, or "" when it has none.
func (d Document) ID() string {
	id, _ := d[IDField].(string)
	return id
}

// Collection is a named group of documents.
//
// FindOne and UpdateOne compare the whole field value for equality, so an array or
// object only matches an identical one. They return (nil, nil) when no document matches.
type Collection interface {
	Find(ctx context.Context) ([]Document, error)
	FindOne(ctx context.Context, field string, value any) (Document, error)
	InsertOne(ctx context.Context, doc Document) (Document, error)
	UpdateOne(ctx context.Context, field string, value any, patch Document) (Document, error)
}

// Store hands out collections and owns the connection to the backing medium.
type Store interface {
	Collection(name string) Collection
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Options configures seed content and unique fields of a store.
type Options struct {
	// Seed holds the starter documents a collection receives when it is first created.
	Seed map[string][]Document
	// Unique lists, per collection, the fields whose values must not repeat.
	Unique map[string][]string
}

func (o Options) uniqueFields(collection string) []string {
	if o.Unique == nil {
		return nil
	}
	return o.Unique[collection]
}

func (o Options) seedFor(collection string) ([]Document, error) {
	if o.Seed == nil {
		return nil, nil
	}
	out := make([]Document, 0, len(o.Seed[collection]))
	for _, doc := range o.Seed[collection] {
		n, err := normalizeDocument(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to normalize seed for %s: %w", collection, err)
		}
		out = append(out, n)
	}
	return out, nil
}

// Encode converts a value into a Document using its JSON representation.
func Encode(v any) (Document, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return doc, nil
}

// Decode fills out from the JSON representation of doc. Fields absent from doc
// keep the value out already had.
func Decode(doc Document, out any) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	return nil
}

func normalizeDocument(doc Document) (Document, error) {
	if doc == nil {
		return Document{}, nil
	}
	return Encode(doc)
}

func normalizeValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// matches reports whether doc holds value under field. value must already be normalized.
func matches(doc Document, field string, value any) bool {
	got, ok := doc[field]
	if !ok {
		return false
	}
	return reflect.DeepEqual(got, value)
}

// merge overlays patch onto base and returns a new document. The identifier is never
// taken from the patch.
func merge(base, patch Document) Document {
	out := make(Document, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		if k == IDField {
			continue
		}
		out[k] = v
	}
	return out
}

// violatesUnique reports whether candidate repeats a unique field value held by
// another document in docs. The document at index skip is ignored.
func violatesUnique(docs []Document, candidate Document, fields []string, skip int) bool {
	for _, field := range fields {
		v, ok := candidate[field]
		if !ok || v == nil {
			continue
		}
		for i, d := range docs {
			if i == skip {
				continue
			}
			if matches(d, field, v) {
				return true
			}
		}
	}
	return false
}

func indexOf(docs []Document, field string, value any) int {
	for i, d := range docs {
		if matches(d, field, value) {
			return i
		}
	}
	return -1
}

func copyDocuments(docs []Document) []Document {
	out := make([]Document, len(docs))
	for i, d := range docs {
		out[i] = copyDocument(d)
	}
	return out
}

func copyDocument(d Document) Document {
	if d == nil {
		return nil
	}
	out, err := normalizeDocument(d)
	if err != nil {
		// documents held by the store are always JSON-normalized
		panic(fmt.Sprintf("docstore: copy of normalized document failed: %v", err))
	}
	return out
}
