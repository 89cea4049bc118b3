package fleet

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-manager/internal/db"
	"github.com/ukydev/fleet-manager/internal/errs"
	"github.com/ukydev/fleet-manager/internal/metrics"
	"github.com/ukydev/fleet-manager/internal/models"
)

// Service creates and lists vehicles and drivers.
type Service struct {
	store db.DocumentStore
	log   *log.Entry
	now   func() time.Time
}

// NewService creates a Service on store.
func NewService(store db.DocumentStore) *Service {
	return &Service{
		store: store,
		log:   log.WithField("component", "fleet"),
		now:   time.Now,
	}
}

// CreateVehicle validates f and stores the vehicle. A plate already on
// the roster is a validation failure.
func (s *Service) CreateVehicle(ctx context.Context, f VehicleForm) (*models.Vehicle, error) {
	v, err := ValidateVehicle(f)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.Query(ctx, models.CollectionVehicles, db.Eq(FieldPlateNumber, v.PlateNumber))
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		verr := &errs.ValidationError{}
		verr.Add(FieldPlateNumber, "is already registered")
		return nil, verr
	}

	v.CreatedAt = s.now().UTC()
	id, err := s.store.Create(ctx, models.CollectionVehicles, map[string]interface{}{
		FieldPlateNumber:    v.PlateNumber,
		FieldCategory:       string(v.Category),
		FieldType:           string(v.Type),
		FieldModel:          v.Model,
		FieldEngineNumber:   v.EngineNumber,
		FieldChassisNumber:  v.ChassisNumber,
		FieldLicenseRenewal: v.LicenseRenewal,
		FieldDistanceKm:     v.DistanceKm,
		FieldMileage:        v.Mileage,
		FieldInMaintenance:  false,
		FieldCreatedAt:      v.CreatedAt,
	})
	if err != nil {
		return nil, err
	}
	v.ID = id
	s.log.WithFields(log.Fields{"vehicle_id": id, "plate": v.PlateNumber}).Info("Vehicle added")
	return v, nil
}

// CreateDriver validates f and stores the driver with zeroed trip totals.
func (s *Service) CreateDriver(ctx context.Context, f DriverForm) (*models.Driver, error) {
	d, err := ValidateDriver(f)
	if err != nil {
		return nil, err
	}

	d.CreatedAt = s.now().UTC()
	fields := map[string]interface{}{
		FieldName:            d.Name,
		FieldAge:             int64(d.Age),
		FieldLicenseNumber:   d.LicenseNumber,
		FieldLicenseType:     string(d.LicenseType),
		FieldContactNumber:   d.ContactNumber,
		FieldExperienceYears: int64(d.ExperienceYears),
		FieldTotalTrips:      int64(0),
		FieldTotalTripHours:  0.0,
		FieldTotalDistanceKm: 0.0,
		FieldCreatedAt:       d.CreatedAt,
	}
	if d.ImageURL != "" {
		fields[FieldImageURL] = d.ImageURL
	}
	id, err := s.store.Create(ctx, models.CollectionDrivers, fields)
	if err != nil {
		return nil, err
	}
	d.ID = id
	s.log.WithField("driver_id", id).Info("Driver added")
	return d, nil
}

// SetMaintenance flags or clears a vehicle's maintenance state.
func (s *Service) SetMaintenance(ctx context.Context, vehicleID string, inMaintenance bool) error {
	if err := s.store.Update(ctx, models.CollectionVehicles, vehicleID, map[string]interface{}{
		FieldInMaintenance: inMaintenance,
	}); err != nil {
		return fmt.Errorf("set maintenance on %s: %w", vehicleID, err)
	}
	s.log.WithFields(log.Fields{"vehicle_id": vehicleID, "in_maintenance": inMaintenance}).Info("Vehicle maintenance updated")
	return nil
}

// ListVehicles returns the roster, skipping malformed documents.
func (s *Service) ListVehicles(ctx context.Context) ([]models.Vehicle, error) {
	docs, err := s.store.Query(ctx, models.CollectionVehicles)
	if err != nil {
		return nil, err
	}
	vehicles := make([]models.Vehicle, 0, len(docs))
	for _, doc := range docs {
		v, err := ParseVehicle(doc)
		if err != nil {
			s.skip(models.CollectionVehicles, doc.ID, err)
			continue
		}
		vehicles = append(vehicles, *v)
	}
	return vehicles, nil
}

// ListDrivers returns the driver roster, skipping malformed documents.
func (s *Service) ListDrivers(ctx context.Context) ([]models.Driver, error) {
	docs, err := s.store.Query(ctx, models.CollectionDrivers)
	if err != nil {
		return nil, err
	}
	drivers := make([]models.Driver, 0, len(docs))
	for _, doc := range docs {
		d, err := ParseDriver(doc)
		if err != nil {
			s.skip(models.CollectionDrivers, doc.ID, err)
			continue
		}
		drivers = append(drivers, *d)
	}
	return drivers, nil
}

func (s *Service) skip(collection, id string, err error) {
	metrics.MalformedRecords.WithLabelValues(collection).Inc()
	s.log.WithError(err).WithFields(log.Fields{"collection": collection, "id": id}).Warn("Skipping malformed record")
}
