package db

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-manager/internal/errs"
)

func TestMemoryStore_QueryByEquality(t *testing.T) {
	store := NewMemoryStore()
	store.Put("vehicles", "v1", map[string]interface{}{"plateNumber": "MH12AB1234", "inMaintenance": true})
	store.Put("vehicles", "v2", map[string]interface{}{"plateNumber": "MH12AB1235", "inMaintenance": false})
	store.Put("vehicles", "v3", map[string]interface{}{"plateNumber": "MH12AB1236", "inMaintenance": true})

	docs, err := store.Query(context.Background(), "vehicles", Eq("inMaintenance", true))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "v1", docs[0].ID)
	assert.Equal(t, "v3", docs[1].ID)

	all, err := store.Query(context.Background(), "vehicles")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := store.Query(context.Background(), "drivers")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryStore_NumericFilterNormalized(t *testing.T) {
	store := NewMemoryStore()
	store.Put("drivers", "d1", map[string]interface{}{"age": 30})

	docs, err := store.Query(context.Background(), "drivers", Eq("age", int32(30)))
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestMemoryStore_CreateGetUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	id, err := store.Create(ctx, "pendingBills", map[string]interface{}{"status": "pending"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.NoError(t, store.Update(ctx, "pendingBills", id, map[string]interface{}{"status": "approved"}))

	doc, err := store.Get(ctx, "pendingBills", id)
	require.NoError(t, err)
	s, ok := doc.Fields.String("status")
	assert.True(t, ok)
	assert.Equal(t, "approved", s)

	// returned documents are copies
	doc.Fields["status"] = "tampered"
	again, _ := store.Get(ctx, "pendingBills", id)
	s, _ = again.Fields.String("status")
	assert.Equal(t, "approved", s)
}

func TestMemoryStore_NotFound(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Get(ctx, "pendingBills", "nope")
	assert.True(t, errors.Is(err, errs.ErrNotFound))

	err = store.Update(ctx, "pendingBills", "nope", map[string]interface{}{"status": "approved"})
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryStore().Query(ctx, "vehicles")
	assert.True(t, errors.Is(err, errs.ErrStoreUnavailable))
}
