package db

import "context"

// Filter is an equality condition on a single document field.
type Filter struct {
	Field string
	Value interface{}
}

// Eq builds an equality filter.
func Eq(field string, value interface{}) Filter {
	return Filter{Field: field, Value: value}
}

// Document is a loosely typed record as returned by a document store.
// Values are normalized to string, bool, int64, float64, time.Time,
// map[string]interface{}, []interface{} or nil by every adapter.
type Document struct {
	ID     string
	Fields Fields
}

// DocumentStore is the query/update contract the fleet core relies on.
// Collection names may address nested collections as "parent/{id}/child".
//
// Transport failures are reported as *errs.StoreUnavailableError and a
// missing document as errs.ErrNotFound.
type DocumentStore interface {
	Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
	Get(ctx context.Context, collection, id string) (*Document, error)
	Update(ctx context.Context, collection, id string, fields map[string]interface{}) error
	Create(ctx context.Context, collection string, fields map[string]interface{}) (string, error)
}
