// Package dbtest provides a testify mock of db.DocumentStore.
package dbtest

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/ukydev/fleet-manager/internal/db"
)

// MockStore is a mock implementation of db.DocumentStore
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Query(ctx context.Context, collection string, filters ...db.Filter) ([]db.Document, error) {
	args := m.Called(ctx, collection, filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]db.Document), args.Error(1)
}

func (m *MockStore) Get(ctx context.Context, collection, id string) (*db.Document, error) {
	args := m.Called(ctx, collection, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*db.Document), args.Error(1)
}

func (m *MockStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	args := m.Called(ctx, collection, id, fields)
	return args.Error(0)
}

func (m *MockStore) Create(ctx context.Context, collection string, fields map[string]interface{}) (string, error) {
	args := m.Called(ctx, collection, fields)
	return args.String(0), args.Error(1)
}
