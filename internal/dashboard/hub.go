// Package dashboard computes the fleet dashboard counters and publishes
// them to subscribers.
package dashboard

import (
	"sync"
	"time"

	"github.com/ukydev/fleet-manager/internal/models"
)

// Counter names, also used as metric labels and fetch source names.
const (
	SourceRunningTrips      = "running_trips"
	SourceCarsInMaintenance = "cars_in_maintenance"
	SourceIdleVehicles      = "idle_vehicles"
	SourceIdleDrivers       = "idle_drivers"
)

// Snapshot is the published dashboard state. Stale lists the counters whose
// last fetch failed and which still show an earlier value.
type Snapshot struct {
	RunningTrips      int                  `json:"runningTrips"`
	CarsInMaintenance int                  `json:"carsInMaintenance"`
	IdleVehicles      int                  `json:"idleVehicles"`
	IdleDrivers       int                  `json:"idleDrivers"`
	BusyVehicles      int                  `json:"busyVehicles"`
	BusyDrivers       int                  `json:"busyDrivers"`
	OngoingTrips      []models.OngoingTrip `json:"ongoingTrips"`
	Stale             []string             `json:"stale,omitempty"`
	UpdatedAt         time.Time            `json:"updatedAt"`
}

func (s Snapshot) clone() Snapshot {
	c := s
	c.OngoingTrips = append([]models.OngoingTrip(nil), s.OngoingTrips...)
	c.Stale = append([]string(nil), s.Stale...)
	if c.OngoingTrips == nil {
		c.OngoingTrips = []models.OngoingTrip{}
	}
	return c
}

func (s *Snapshot) markStale(source string, stale bool) {
	kept := s.Stale[:0]
	for _, name := range s.Stale {
		if name != source {
			kept = append(kept, name)
		}
	}
	if stale {
		kept = append(kept, source)
	}
	s.Stale = kept
}

// EventType tells subscribers what an Event carries.
type EventType string

const (
	EventSnapshot EventType = "snapshot"
	EventOffRoute EventType = "offRoute"
)

// Event is delivered to hub subscribers.
type Event struct {
	Type     EventType             `json:"type"`
	Snapshot *Snapshot             `json:"snapshot,omitempty"`
	Alert    *models.OffRouteAlert `json:"alert,omitempty"`
}

// subscriberBuffer bounds how far a slow subscriber may fall behind
// before its oldest event is discarded.
const subscriberBuffer = 8

// Hub holds the current Snapshot. The aggregator is its only writer.
type Hub struct {
	mu     sync.Mutex
	state  Snapshot
	subs   map[int]chan Event
	nextID int
	now    func() time.Time
}

// NewHub creates a hub with zeroed counters.
func NewHub() *Hub {
	return &Hub{
		state: Snapshot{OngoingTrips: []models.OngoingTrip{}},
		subs:  make(map[int]chan Event),
		now:   time.Now,
	}
}

// Current returns a copy of the latest snapshot.
func (h *Hub) Current() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state.clone()
}

// Update applies fn to the snapshot and broadcasts the result.
func (h *Hub) Update(fn func(*Snapshot)) Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	fn(&h.state)
	h.state.UpdatedAt = h.now().UTC()
	snap := h.state.clone()
	h.broadcast(Event{Type: EventSnapshot, Snapshot: &snap})
	return snap
}

// PublishAlert forwards an off-route alert to subscribers.
func (h *Hub) PublishAlert(alert models.OffRouteAlert) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcast(Event{Type: EventOffRoute, Alert: &alert})
}

// Subscribe registers a subscriber. The returned channel first receives the
// current snapshot. cancel must be called to release the subscription.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Event, subscriberBuffer)
	snap := h.state.clone()
	ch <- Event{Type: EventSnapshot, Snapshot: &snap}
	h.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// broadcast never blocks: a full subscriber loses its oldest event.
// Callers hold h.mu.
func (h *Hub) broadcast(ev Event) {
	for _, ch := range h.subs {
		select {
		case ch <- ev:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}
}
