package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-manager/internal/booking"
	"github.com/ukydev/fleet-manager/internal/db"
	"github.com/ukydev/fleet-manager/internal/fleet"
	"github.com/ukydev/fleet-manager/internal/metrics"
	"github.com/ukydev/fleet-manager/internal/models"
	"golang.org/x/sync/errgroup"
)

// SourceError is one failed aggregation fetch.
type SourceError struct {
	Source string
	Err    error
}

// RefreshError reports the fetches of one refresh that failed. Counters
// fed by them kept their previous values; calling Refresh again retries.
type RefreshError struct {
	Failures []SourceError
}

func (e *RefreshError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Source, f.Err))
	}
	return "dashboard refresh incomplete: " + strings.Join(parts, "; ")
}

// Unwrap exposes the underlying failures to errors.Is and errors.As.
func (e *RefreshError) Unwrap() []error {
	out := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		out = append(out, f.Err)
	}
	return out
}

// Sources lists the failed sources.
func (e *RefreshError) Sources() []string {
	out := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		out = append(out, f.Source)
	}
	return out
}

// Aggregator computes the dashboard counters from the document store.
type Aggregator struct {
	store db.DocumentStore
	hub   *Hub
	log   *log.Entry
}

// NewAggregator creates an Aggregator publishing into hub.
func NewAggregator(store db.DocumentStore, hub *Hub) *Aggregator {
	return &Aggregator{store: store, hub: hub, log: log.WithField("component", "dashboard")}
}

// Hub returns the hub the aggregator publishes into.
func (a *Aggregator) Hub() *Hub {
	return a.hub
}

// Refresh runs the four dashboard fetches concurrently. Each counter is
// published as soon as its own fetch settles; a failed fetch leaves its
// counter at the previous value. Refresh returns once all four settled,
// with a *RefreshError if any of them failed.
func (a *Aggregator) Refresh(ctx context.Context) error {
	start := time.Now()
	defer func() { metrics.DashboardRefreshDuration.Observe(time.Since(start).Seconds()) }()

	// The in-progress set is shared by the idle vehicle and idle driver
	// fetches and read once per refresh. Trips stored as off route are
	// still in progress.
	inProgress := sync.OnceValues(func() ([]db.Document, error) {
		docs, err := a.store.Query(ctx, models.CollectionBookingRequests,
			db.Eq(booking.FieldStatus, string(models.BookingInProgress)))
		if err != nil {
			return nil, err
		}
		offRoute, err := a.store.Query(ctx, models.CollectionBookingRequests,
			db.Eq(booking.FieldStatus, string(models.BookingOffRoute)))
		if err != nil {
			return nil, err
		}
		return append(docs, offRoute...), nil
	})

	var (
		mu       sync.Mutex
		failures []SourceError
		g        errgroup.Group
	)
	run := func(source string, fetch func() error) {
		g.Go(func() error {
			if err := fetch(); err != nil {
				a.hub.Update(func(s *Snapshot) { s.markStale(source, true) })
				metrics.DashboardFetchFailures.WithLabelValues(source).Inc()
				mu.Lock()
				failures = append(failures, SourceError{Source: source, Err: err})
				mu.Unlock()
			}
			// Failures are collected rather than returned so one fetch
			// never cancels the others.
			return nil
		})
	}

	run(SourceRunningTrips, func() error { return a.refreshRunningTrips(ctx) })
	run(SourceCarsInMaintenance, func() error { return a.refreshMaintenance(ctx) })
	run(SourceIdleVehicles, func() error { return a.refreshIdleVehicles(ctx, inProgress) })
	run(SourceIdleDrivers, func() error { return a.refreshIdleDrivers(ctx, inProgress) })
	_ = g.Wait()

	if len(failures) == 0 {
		return nil
	}
	sort.Slice(failures, func(i, j int) bool { return failures[i].Source < failures[j].Source })
	rerr := &RefreshError{Failures: failures}
	a.log.WithError(rerr).WithField("sources", rerr.Sources()).Error("Dashboard refresh incomplete, keeping previous values")
	return rerr
}

func (a *Aggregator) refreshRunningTrips(ctx context.Context) error {
	docs, err := a.store.Query(ctx, models.CollectionBookingRequests,
		db.Eq(booking.FieldStatus, string(models.BookingAccepted)))
	if err != nil {
		return err
	}

	trips := make([]models.OngoingTrip, 0, len(docs))
	for _, doc := range docs {
		trip, ok := ProjectOngoingTrip(doc)
		if !ok {
			a.log.WithField("booking_id", doc.ID).Debug("Accepted booking lacks display fields, not listed")
			continue
		}
		trips = append(trips, trip)
	}

	a.publish(SourceRunningTrips, len(docs), func(s *Snapshot) {
		s.RunningTrips = len(docs)
		s.OngoingTrips = trips
	})
	return nil
}

func (a *Aggregator) refreshMaintenance(ctx context.Context) error {
	docs, err := a.store.Query(ctx, models.CollectionVehicles, db.Eq(fleet.FieldInMaintenance, true))
	if err != nil {
		return err
	}
	a.publish(SourceCarsInMaintenance, len(docs), func(s *Snapshot) { s.CarsInMaintenance = len(docs) })
	return nil
}

func (a *Aggregator) refreshIdleVehicles(ctx context.Context, inProgress func() ([]db.Document, error)) error {
	vehicles, err := a.store.Query(ctx, models.CollectionVehicles)
	if err != nil {
		return err
	}
	busyDocs, err := inProgress()
	if err != nil {
		return err
	}

	// Bookings reference vehicles by plate; counting is by document id so
	// every vehicle document is either idle or busy.
	busyPlates := referencedIDs(busyDocs, booking.FieldVehiclePlate)
	all := make(map[string]struct{}, len(vehicles))
	busyIDs := make(map[string]struct{})
	seenPlate := make(map[string]string, len(vehicles))
	for _, v := range vehicles {
		all[v.ID] = struct{}{}
		plate, ok := v.Fields.String(fleet.FieldPlateNumber)
		if !ok || plate == "" {
			continue
		}
		if other, dup := seenPlate[plate]; dup {
			a.log.WithFields(log.Fields{"plate": plate, "vehicle_id": v.ID, "other_id": other}).
				Warn("Vehicles share a plate number")
		}
		seenPlate[plate] = v.ID
		if _, ok := busyPlates[plate]; ok {
			busyIDs[v.ID] = struct{}{}
		}
	}
	idle, busy := IdleCount(all, busyIDs)

	a.publish(SourceIdleVehicles, idle, func(s *Snapshot) {
		s.IdleVehicles = idle
		s.BusyVehicles = busy
	})
	return nil
}

func (a *Aggregator) refreshIdleDrivers(ctx context.Context, inProgress func() ([]db.Document, error)) error {
	drivers, err := a.store.Query(ctx, models.CollectionDrivers)
	if err != nil {
		return err
	}
	busyDocs, err := inProgress()
	if err != nil {
		return err
	}

	all := make(map[string]struct{}, len(drivers))
	for _, d := range drivers {
		all[d.ID] = struct{}{}
	}
	idle, busy := IdleCount(all, referencedIDs(busyDocs, booking.FieldDriverID))

	a.publish(SourceIdleDrivers, idle, func(s *Snapshot) {
		s.IdleDrivers = idle
		s.BusyDrivers = busy
	})
	return nil
}

// publish applies fn and clears the stale mark of counter in one update.
func (a *Aggregator) publish(counter string, value int, fn func(*Snapshot)) {
	a.hub.Update(func(s *Snapshot) {
		fn(s)
		s.markStale(counter, false)
	})
	metrics.DashboardCounter.WithLabelValues(counter).Set(float64(value))
}

// referencedIDs collects the string values of field across docs.
// Documents without it reference nothing.
func referencedIDs(docs []db.Document, field string) map[string]struct{} {
	ids := make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		if id, ok := doc.Fields.String(field); ok && id != "" {
			ids[id] = struct{}{}
		}
	}
	return ids
}

// IdleCount returns |all| - |all ∩ busy| and |all ∩ busy|. A busy id that
// is not in all is ignored.
func IdleCount(all, busy map[string]struct{}) (idle, busyKnown int) {
	for id := range busy {
		if _, ok := all[id]; ok {
			busyKnown++
		}
	}
	return len(all) - busyKnown, busyKnown
}

// ProjectOngoingTrip builds the dashboard row of an accepted booking. It
// needs the driver name, vehicle plate and both place names.
func ProjectOngoingTrip(doc db.Document) (models.OngoingTrip, bool) {
	driver, _ := doc.Fields.String(booking.FieldDriverName)
	plate, _ := doc.Fields.String(booking.FieldVehiclePlate)
	pickup, _ := doc.Fields.String(booking.FieldPickupName)
	dropoff, _ := doc.Fields.String(booking.FieldDropoffName)
	if driver == "" || plate == "" || pickup == "" || dropoff == "" {
		return models.OngoingTrip{}, false
	}

	trip := models.OngoingTrip{
		BookingID:    doc.ID,
		DriverName:   driver,
		VehiclePlate: plate,
		Route:        pickup + " → " + dropoff,
	}
	trip.DriverImage, _ = doc.Fields.String(booking.FieldDriverImage)
	return trip, true
}
