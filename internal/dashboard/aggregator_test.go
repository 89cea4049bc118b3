package dashboard

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-manager/internal/db"
	"github.com/ukydev/fleet-manager/internal/errs"
	"github.com/ukydev/fleet-manager/internal/models"
)

// failingStore fails the queries selected by fail with a transport error.
type failingStore struct {
	*db.MemoryStore
	fail func(collection string, filters []db.Filter) bool
}

func (s *failingStore) Query(ctx context.Context, collection string, filters ...db.Filter) ([]db.Document, error) {
	if s.fail != nil && s.fail(collection, filters) {
		return nil, errs.Unavailable("query", collection, errors.New("connection reset by peer"))
	}
	return s.MemoryStore.Query(ctx, collection, filters...)
}

func isMaintenanceQuery(collection string, filters []db.Filter) bool {
	return collection == models.CollectionVehicles && len(filters) == 1 && filters[0].Field == "inMaintenance"
}

func putBooking(store *db.MemoryStore, id, status, driverID, driverName, plate string) {
	store.Put(models.CollectionBookingRequests, id, map[string]interface{}{
		"driverId":     driverID,
		"driverName":   driverName,
		"vehiclePlate": plate,
		"pickupName":   "Pune Station",
		"dropoffName":  "Hinjewadi Phase 3",
		"status":       status,
	})
}

// seedFleet stores 10 vehicles (2 in maintenance), 5 drivers, 3 in-progress
// bookings and 2 accepted bookings, one of which lacks a driver name.
func seedFleet(store *db.MemoryStore) {
	for i := 0; i < 10; i++ {
		store.Put(models.CollectionVehicles, fmt.Sprintf("v%d", i), map[string]interface{}{
			"plateNumber":   fmt.Sprintf("MH12AB%04d", i),
			"inMaintenance": i >= 8,
		})
	}
	for i := 0; i < 5; i++ {
		store.Put(models.CollectionDrivers, fmt.Sprintf("d%d", i), map[string]interface{}{"name": fmt.Sprintf("Driver %d", i)})
	}
	putBooking(store, "b1", "inProgress", "d0", "Driver 0", "MH12AB0000")
	putBooking(store, "b2", "inProgress", "d1", "Driver 1", "MH12AB0001")
	putBooking(store, "b3", "inProgress", "d2", "Driver 2", "MH12AB0002")
	putBooking(store, "b4", "accepted", "d3", "Driver 3", "MH12AB0003")
	putBooking(store, "b5", "accepted", "d4", "", "MH12AB0004")
	putBooking(store, "b6", "completed", "d4", "Driver 4", "MH12AB0004")
}

func TestRefresh_Counters(t *testing.T) {
	store := db.NewMemoryStore()
	seedFleet(store)
	agg := NewAggregator(store, NewHub())

	require.NoError(t, agg.Refresh(context.Background()))
	snap := agg.Hub().Current()

	assert.Equal(t, 2, snap.RunningTrips)
	assert.Equal(t, 2, snap.CarsInMaintenance)
	assert.Equal(t, 7, snap.IdleVehicles)
	assert.Equal(t, 3, snap.BusyVehicles)
	assert.Equal(t, 2, snap.IdleDrivers)
	assert.Equal(t, 3, snap.BusyDrivers)
	assert.Empty(t, snap.Stale)

	require.Len(t, snap.OngoingTrips, 1)
	assert.Equal(t, models.OngoingTrip{
		BookingID:    "b4",
		DriverName:   "Driver 3",
		VehiclePlate: "MH12AB0003",
		Route:        "Pune Station → Hinjewadi Phase 3",
	}, snap.OngoingTrips[0])
}

func TestRefresh_UnknownReferencesAreNotSubtracted(t *testing.T) {
	store := db.NewMemoryStore()
	seedFleet(store)
	putBooking(store, "ghost", "inProgress", "no-such-driver", "Ghost", "XX00XX0000")
	agg := NewAggregator(store, NewHub())

	require.NoError(t, agg.Refresh(context.Background()))
	snap := agg.Hub().Current()

	assert.Equal(t, 7, snap.IdleVehicles)
	assert.Equal(t, 2, snap.IdleDrivers)
	assert.Equal(t, 10, snap.IdleVehicles+snap.BusyVehicles)
	assert.Equal(t, 5, snap.IdleDrivers+snap.BusyDrivers)
}

func TestRefresh_PartialFailureKeepsPreviousValue(t *testing.T) {
	mem := db.NewMemoryStore()
	seedFleet(mem)
	store := &failingStore{MemoryStore: mem}
	agg := NewAggregator(store, NewHub())
	ctx := context.Background()

	require.NoError(t, agg.Refresh(ctx))

	// Change every source, then break the maintenance fetch.
	mem.Put(models.CollectionVehicles, "v0", map[string]interface{}{"plateNumber": "MH12AB0000", "inMaintenance": true})
	mem.Put(models.CollectionVehicles, "v10", map[string]interface{}{"plateNumber": "MH12AB0010"})
	mem.Put(models.CollectionDrivers, "d5", map[string]interface{}{"name": "Driver 5"})
	putBooking(mem, "b7", "accepted", "d5", "Driver 5", "MH12AB0010")
	store.fail = isMaintenanceQuery

	err := agg.Refresh(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrStoreUnavailable))

	var rerr *RefreshError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, []string{SourceCarsInMaintenance}, rerr.Sources())

	snap := agg.Hub().Current()
	assert.Equal(t, 2, snap.CarsInMaintenance, "failed counter keeps its previous value")
	assert.Equal(t, 3, snap.RunningTrips)
	assert.Equal(t, 8, snap.IdleVehicles)
	assert.Equal(t, 3, snap.IdleDrivers)
	assert.Equal(t, []string{SourceCarsInMaintenance}, snap.Stale)

	// Retrying once the store recovers updates the stale counter.
	store.fail = nil
	require.NoError(t, agg.Refresh(ctx))
	snap = agg.Hub().Current()
	assert.Equal(t, 3, snap.CarsInMaintenance)
	assert.Empty(t, snap.Stale)
}

func TestRefresh_InProgressFailureAffectsBothIdleCounters(t *testing.T) {
	mem := db.NewMemoryStore()
	seedFleet(mem)
	store := &failingStore{MemoryStore: mem, fail: func(collection string, filters []db.Filter) bool {
		return collection == models.CollectionBookingRequests && len(filters) == 1 && filters[0].Value == "inProgress"
	}}
	agg := NewAggregator(store, NewHub())

	err := agg.Refresh(context.Background())
	var rerr *RefreshError
	require.True(t, errors.As(err, &rerr))
	assert.ElementsMatch(t, []string{SourceIdleVehicles, SourceIdleDrivers}, rerr.Sources())

	snap := agg.Hub().Current()
	assert.Equal(t, 2, snap.RunningTrips)
	assert.Equal(t, 2, snap.CarsInMaintenance)
	assert.Equal(t, 0, snap.IdleVehicles)
	assert.Equal(t, 0, snap.IdleDrivers)
}

func TestRefresh_PublishesToSubscribers(t *testing.T) {
	store := db.NewMemoryStore()
	seedFleet(store)
	hub := NewHub()
	events, cancel := hub.Subscribe()
	defer cancel()

	require.NoError(t, NewAggregator(store, hub).Refresh(context.Background()))

	initial := <-events
	assert.Equal(t, 0, initial.Snapshot.RunningTrips)
	for i := 0; i < 4; i++ {
		ev := <-events
		assert.Equal(t, EventSnapshot, ev.Type)
	}
	assert.Equal(t, 7, hub.Current().IdleVehicles)
}

func TestIdleCount(t *testing.T) {
	set := func(ids ...string) map[string]struct{} {
		m := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			m[id] = struct{}{}
		}
		return m
	}

	tests := []struct {
		name       string
		all, busy  map[string]struct{}
		idle, held int
	}{
		{"nothing busy", set("a", "b", "c"), set(), 3, 0},
		{"some busy", set("a", "b", "c"), set("a", "c"), 1, 2},
		{"unknown busy ignored", set("a", "b"), set("a", "zz"), 1, 1},
		{"all busy", set("a"), set("a"), 0, 1},
		{"empty fleet", set(), set("a"), 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idle, busy := IdleCount(tt.all, tt.busy)
			assert.Equal(t, tt.idle, idle)
			assert.Equal(t, tt.held, busy)
			assert.Equal(t, len(tt.all), idle+busy)
		})
	}
}

func TestProjectOngoingTrip(t *testing.T) {
	doc := db.Document{ID: "b1", Fields: db.Fields{
		"driverName":   "Asha",
		"vehiclePlate": "KA01F0001",
		"pickupName":   "Airport",
		"dropoffName":  "MG Road",
		"driverImage":  "https://img.example/asha.png",
	}}
	trip, ok := ProjectOngoingTrip(doc)
	require.True(t, ok)
	assert.Equal(t, "Airport → MG Road", trip.Route)
	assert.Equal(t, "https://img.example/asha.png", trip.DriverImage)

	delete(doc.Fields, "dropoffName")
	_, ok = ProjectOngoingTrip(doc)
	assert.False(t, ok)
}

func TestRefresh_VehiclesSharingAPlateCountSeparately(t *testing.T) {
	store := db.NewMemoryStore()
	store.Put(models.CollectionVehicles, "v1", map[string]interface{}{"plateNumber": "MH12AB1234"})
	store.Put(models.CollectionVehicles, "v2", map[string]interface{}{"plateNumber": "MH12AB1234"})
	store.Put(models.CollectionVehicles, "v3", map[string]interface{}{"plateNumber": "MH12AB0003"})
	store.Put(models.CollectionVehicles, "v4", map[string]interface{}{})
	putBooking(store, "b1", "inProgress", "d0", "Driver 0", "MH12AB1234")
	putBooking(store, "b2", "inProgress", "d1", "Driver 1", "KA01XY9999")

	agg := NewAggregator(store, NewHub())
	require.NoError(t, agg.Refresh(context.Background()))
	snap := agg.Hub().Current()

	assert.Equal(t, 2, snap.BusyVehicles)
	assert.Equal(t, 2, snap.IdleVehicles)
	assert.Equal(t, 4, snap.IdleVehicles+snap.BusyVehicles)
}

func TestRefresh_OffRouteTripsAreBusy(t *testing.T) {
	store := db.NewMemoryStore()
	store.Put(models.CollectionVehicles, "v1", map[string]interface{}{"plateNumber": "MH12AB0001"})
	store.Put(models.CollectionVehicles, "v2", map[string]interface{}{"plateNumber": "MH12AB0002"})
	store.Put(models.CollectionDrivers, "d0", map[string]interface{}{"name": "Driver 0"})
	store.Put(models.CollectionDrivers, "d1", map[string]interface{}{"name": "Driver 1"})
	putBooking(store, "b1", "offRoute", "d0", "Driver 0", "MH12AB0001")

	agg := NewAggregator(store, NewHub())
	require.NoError(t, agg.Refresh(context.Background()))
	snap := agg.Hub().Current()

	assert.Equal(t, 1, snap.BusyVehicles)
	assert.Equal(t, 1, snap.IdleVehicles)
	assert.Equal(t, 1, snap.BusyDrivers)
	assert.Equal(t, 1, snap.IdleDrivers)
}
