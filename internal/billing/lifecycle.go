package billing

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-manager/internal/db"
	"github.com/ukydev/fleet-manager/internal/errs"
	"github.com/ukydev/fleet-manager/internal/metrics"
	"github.com/ukydev/fleet-manager/internal/models"
)

// Lifecycle reads bills and writes manager decisions. Only the status
// field of a bill is ever written.
type Lifecycle struct {
	store db.DocumentStore
	log   *log.Entry
}

// NewLifecycle creates a Lifecycle on store.
func NewLifecycle(store db.DocumentStore) *Lifecycle {
	return &Lifecycle{store: store, log: log.WithField("component", "billing")}
}

// Get reads and parses one bill.
func (l *Lifecycle) Get(ctx context.Context, id string) (*models.BillRequest, error) {
	doc, err := l.store.Get(ctx, models.CollectionPendingBills, id)
	if err != nil {
		return nil, err
	}
	return Parse(*doc)
}

// List returns the bills with status. Malformed bills are logged and skipped.
func (l *Lifecycle) List(ctx context.Context, status models.BillStatus) ([]models.BillRequest, error) {
	docs, err := l.store.Query(ctx, models.CollectionPendingBills, db.Eq(FieldStatus, string(status)))
	if err != nil {
		return nil, err
	}
	bills := make([]models.BillRequest, 0, len(docs))
	for _, doc := range docs {
		b, err := Parse(doc)
		if err != nil {
			metrics.MalformedRecords.WithLabelValues(models.CollectionPendingBills).Inc()
			l.log.WithError(err).WithField("bill_id", doc.ID).Warn("Skipping malformed bill")
			continue
		}
		if b.DroppedItems > 0 {
			l.log.WithFields(log.Fields{"bill_id": b.ID, "dropped_items": b.DroppedItems}).Warn("Bill has invalid line items")
		}
		bills = append(bills, *b)
	}
	return bills, nil
}

// Decide records outcome on bill id. Deciding the outcome the bill already
// has writes nothing. Concurrent decisions on one bill are last-write-wins.
func (l *Lifecycle) Decide(ctx context.Context, id string, outcome models.BillStatus) error {
	if !models.IsDecision(outcome) {
		return fmt.Errorf("%q: %w", outcome, errs.ErrInvalidDecision)
	}

	doc, err := l.store.Get(ctx, models.CollectionPendingBills, id)
	if err != nil {
		return err
	}
	if current, _ := doc.Fields.String(FieldStatus); current == string(outcome) {
		return nil
	}

	if err := l.store.Update(ctx, models.CollectionPendingBills, id, map[string]interface{}{
		FieldStatus: string(outcome),
	}); err != nil {
		return err
	}
	metrics.BillDecisions.WithLabelValues(string(outcome)).Inc()
	l.log.WithFields(log.Fields{"bill_id": id, "outcome": outcome}).Info("Bill decided")
	return nil
}
