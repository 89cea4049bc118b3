// Package inspection records driver inspections and emergencies. Records
// are attributed to the authenticated caller and never modified.
package inspection

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-manager/internal/auth"
	"github.com/ukydev/fleet-manager/internal/db"
	"github.com/ukydev/fleet-manager/internal/errs"
	"github.com/ukydev/fleet-manager/internal/models"
)

// Document fields shared by inspections and emergencies.
const (
	FieldDriverID      = "driverId"
	FieldVehicleID     = "vehicleId"
	FieldSubmittedBy   = "submittedBy"
	FieldTimestamp     = "timestamp"
	FieldChecklist     = "checklist"
	FieldNotes         = "notes"
	FieldFlaggedIssues = "flaggedIssues"
	FieldIssue         = "issue"
	FieldInspectionID  = "inspectionId"
)

// InspectionForm is a driver's checklist submission.
type InspectionForm struct {
	VehicleID     string          `json:"vehicleId"`
	Checklist     map[string]bool `json:"checklist"`
	Notes         string          `json:"notes"`
	FlaggedIssues []string        `json:"flaggedIssues"`
}

// EmergencyForm is a driver's emergency report.
type EmergencyForm struct {
	VehicleID     string          `json:"vehicleId"`
	Issue         string          `json:"issue"`
	Checklist     map[string]bool `json:"checklist"`
	Notes         string          `json:"notes"`
	FlaggedIssues []string        `json:"flaggedIssues"`
	InspectionID  string          `json:"inspectionId"`
}

// Service writes inspection and emergency records.
type Service struct {
	store db.DocumentStore
	log   *log.Entry
	now   func() time.Time
}

// NewService creates a Service on store.
func NewService(store db.DocumentStore) *Service {
	return &Service{store: store, log: log.WithField("component", "inspection"), now: time.Now}
}

// Submit stores an inspection under the vehicle. Failed checklist items
// are added to the flagged issues.
func (s *Service) Submit(ctx context.Context, f InspectionForm) (*models.Inspection, error) {
	userID, driverID, err := attribution(ctx)
	if err != nil {
		return nil, err
	}

	verr := &errs.ValidationError{}
	vehicleID := strings.TrimSpace(f.VehicleID)
	if vehicleID == "" {
		verr.Add(FieldVehicleID, "is required")
	}
	if len(f.Checklist) == 0 {
		verr.Add(FieldChecklist, "must contain at least one item")
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}
	if _, err := s.store.Get(ctx, models.CollectionVehicles, vehicleID); err != nil {
		return nil, fmt.Errorf("inspected vehicle: %w", err)
	}

	in := &models.Inspection{
		DriverID:      driverID,
		VehicleID:     vehicleID,
		Timestamp:     s.now().UTC(),
		Checklist:     f.Checklist,
		Notes:         strings.TrimSpace(f.Notes),
		FlaggedIssues: FlaggedIssues(f.Checklist, f.FlaggedIssues),
	}
	fields := recordFields(userID, in.DriverID, in.VehicleID, in.Timestamp, in.Checklist, in.Notes, in.FlaggedIssues)

	id, err := s.store.Create(ctx, models.InspectionsCollection(vehicleID), fields)
	if err != nil {
		return nil, err
	}
	in.ID = id

	entry := s.log.WithFields(log.Fields{"inspection_id": id, "vehicle_id": vehicleID, "driver_id": driverID})
	if len(in.FlaggedIssues) > 0 {
		entry.WithField("flagged", in.FlaggedIssues).Warn("Inspection flagged issues")
	} else {
		entry.Info("Inspection submitted")
	}
	return in, nil
}

// RaiseEmergency stores an emergency request, optionally linked to an
// inspection of the same vehicle.
func (s *Service) RaiseEmergency(ctx context.Context, f EmergencyForm) (*models.EmergencyRequest, error) {
	userID, driverID, err := attribution(ctx)
	if err != nil {
		return nil, err
	}

	verr := &errs.ValidationError{}
	vehicleID := strings.TrimSpace(f.VehicleID)
	issue := strings.TrimSpace(f.Issue)
	if vehicleID == "" {
		verr.Add(FieldVehicleID, "is required")
	}
	if issue == "" {
		verr.Add(FieldIssue, "is required")
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	inspectionID := strings.TrimSpace(f.InspectionID)
	if inspectionID != "" {
		if _, err := s.store.Get(ctx, models.InspectionsCollection(vehicleID), inspectionID); err != nil {
			return nil, fmt.Errorf("linked inspection: %w", err)
		}
	}

	er := &models.EmergencyRequest{
		DriverID:      driverID,
		VehicleID:     vehicleID,
		Timestamp:     s.now().UTC(),
		Issue:         issue,
		Checklist:     f.Checklist,
		Notes:         strings.TrimSpace(f.Notes),
		FlaggedIssues: FlaggedIssues(f.Checklist, f.FlaggedIssues),
		InspectionID:  inspectionID,
	}
	fields := recordFields(userID, er.DriverID, er.VehicleID, er.Timestamp, er.Checklist, er.Notes, er.FlaggedIssues)
	fields[FieldIssue] = er.Issue
	if inspectionID != "" {
		fields[FieldInspectionID] = inspectionID
	}

	id, err := s.store.Create(ctx, models.CollectionEmergencyRequests, fields)
	if err != nil {
		return nil, err
	}
	er.ID = id
	s.log.WithFields(log.Fields{"emergency_id": id, "vehicle_id": vehicleID, "driver_id": driverID, "issue": issue}).Warn("Emergency raised")
	return er, nil
}

// ListInspections returns the inspections of a vehicle.
func (s *Service) ListInspections(ctx context.Context, vehicleID string) ([]models.Inspection, error) {
	docs, err := s.store.Query(ctx, models.InspectionsCollection(vehicleID))
	if err != nil {
		return nil, err
	}
	out := make([]models.Inspection, 0, len(docs))
	for _, doc := range docs {
		in := models.Inspection{ID: doc.ID, VehicleID: vehicleID}
		in.DriverID, _ = doc.Fields.String(FieldDriverID)
		in.Timestamp, _ = doc.Fields.Time(FieldTimestamp)
		in.Checklist = checklist(doc.Fields)
		in.Notes, _ = doc.Fields.String(FieldNotes)
		in.FlaggedIssues = stringList(doc.Fields, FieldFlaggedIssues)
		out = append(out, in)
	}
	return out, nil
}

// ListEmergencies returns the emergencies raised for a vehicle.
func (s *Service) ListEmergencies(ctx context.Context, vehicleID string) ([]models.EmergencyRequest, error) {
	docs, err := s.store.Query(ctx, models.CollectionEmergencyRequests, db.Eq(FieldVehicleID, vehicleID))
	if err != nil {
		return nil, err
	}
	out := make([]models.EmergencyRequest, 0, len(docs))
	for _, doc := range docs {
		er := models.EmergencyRequest{ID: doc.ID, VehicleID: vehicleID}
		er.DriverID, _ = doc.Fields.String(FieldDriverID)
		er.Timestamp, _ = doc.Fields.Time(FieldTimestamp)
		er.Issue, _ = doc.Fields.String(FieldIssue)
		er.Checklist = checklist(doc.Fields)
		er.Notes, _ = doc.Fields.String(FieldNotes)
		er.FlaggedIssues = stringList(doc.Fields, FieldFlaggedIssues)
		er.InspectionID, _ = doc.Fields.String(FieldInspectionID)
		out = append(out, er)
	}
	return out, nil
}

// FlaggedIssues merges the failed checklist items with issues flagged by
// hand, sorted and without duplicates.
func FlaggedIssues(checklist map[string]bool, extra []string) []string {
	seen := make(map[string]struct{})
	for item, passed := range checklist {
		if !passed {
			seen[item] = struct{}{}
		}
	}
	for _, issue := range extra {
		if issue = strings.TrimSpace(issue); issue != "" {
			seen[issue] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for issue := range seen {
		out = append(out, issue)
	}
	sort.Strings(out)
	return out
}

// attribution resolves the caller. Drivers are recorded under their driver
// record when the token carries one.
func attribution(ctx context.Context) (userID, driverID string, err error) {
	userID, err = auth.CurrentUserID(ctx)
	if err != nil {
		return "", "", err
	}
	driverID = userID
	if claims, ok := auth.ClaimsFromContext(ctx); ok && claims.DriverID != "" {
		driverID = claims.DriverID
	}
	return userID, driverID, nil
}

func recordFields(userID, driverID, vehicleID string, at time.Time, list map[string]bool, notes string, flagged []string) map[string]interface{} {
	fields := map[string]interface{}{
		FieldDriverID:    driverID,
		FieldVehicleID:   vehicleID,
		FieldSubmittedBy: userID,
		FieldTimestamp:   at,
	}
	if len(list) > 0 {
		fields[FieldChecklist] = list
	}
	if notes != "" {
		fields[FieldNotes] = notes
	}
	if len(flagged) > 0 {
		fields[FieldFlaggedIssues] = flagged
	}
	return fields
}

func checklist(f db.Fields) map[string]bool {
	m, ok := f.Map(FieldChecklist)
	if !ok {
		return nil
	}
	out := make(map[string]bool, len(m))
	for item := range m {
		if passed, ok := m.Bool(item); ok {
			out[item] = passed
		}
	}
	return out
}

func stringList(f db.Fields, key string) []string {
	raw, _ := f.Slice(key)
	var out []string
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
