// Package fleet manages the vehicle and driver rosters.
package fleet

import (
	"github.com/ukydev/fleet-manager/internal/db"
	"github.com/ukydev/fleet-manager/internal/errs"
	"github.com/ukydev/fleet-manager/internal/models"
)

// Vehicle document fields.
const (
	FieldPlateNumber    = "plateNumber"
	FieldCategory       = "category"
	FieldType           = "type"
	FieldModel          = "model"
	FieldEngineNumber   = "engineNumber"
	FieldChassisNumber  = "chassisNumber"
	FieldLicenseRenewal = "licenseRenewal"
	FieldDistanceKm     = "distanceKm"
	FieldMileage        = "mileage"
	FieldInMaintenance  = "inMaintenance"
	FieldCreatedAt      = "createdAt"
)

// Driver document fields.
const (
	FieldName            = "name"
	FieldAge             = "age"
	FieldLicenseNumber   = "licenseNumber"
	FieldLicenseType     = "licenseType"
	FieldContactNumber   = "contactNumber"
	FieldExperienceYears = "experienceYears"
	FieldImageURL        = "imageUrl"
	FieldTotalTrips      = "totalTrips"
	FieldTotalTripHours  = "totalTripHours"
	FieldTotalDistanceKm = "totalDistanceKm"
)

// ParseVehicle converts a vehicles document. Only the plate number is
// required; everything else defaults to its zero value.
func ParseVehicle(doc db.Document) (*models.Vehicle, error) {
	plate, ok := doc.Fields.String(FieldPlateNumber)
	if !ok || plate == "" {
		return nil, errs.Malformed(models.CollectionVehicles, doc.ID, FieldPlateNumber, "is missing")
	}
	v := &models.Vehicle{ID: doc.ID, PlateNumber: plate}
	f := doc.Fields

	category, _ := f.String(FieldCategory)
	v.Category = models.VehicleCategory(category)
	vtype, _ := f.String(FieldType)
	v.Type = models.VehicleType(vtype)
	v.Model, _ = f.String(FieldModel)
	v.EngineNumber, _ = f.String(FieldEngineNumber)
	v.ChassisNumber, _ = f.String(FieldChassisNumber)
	v.LicenseRenewal, _ = f.Time(FieldLicenseRenewal)
	v.DistanceKm, _ = f.Float(FieldDistanceKm)
	v.Mileage, _ = f.Float(FieldMileage)
	v.InMaintenance, _ = f.Bool(FieldInMaintenance)
	v.CreatedAt, _ = f.Time(FieldCreatedAt)
	return v, nil
}

// ParseDriver converts a fleetDrivers document. The name is required.
func ParseDriver(doc db.Document) (*models.Driver, error) {
	name, ok := doc.Fields.String(FieldName)
	if !ok || name == "" {
		return nil, errs.Malformed(models.CollectionDrivers, doc.ID, FieldName, "is missing")
	}
	d := &models.Driver{ID: doc.ID, Name: name}
	f := doc.Fields

	age, _ := f.Int(FieldAge)
	d.Age = int(age)
	d.LicenseNumber, _ = f.String(FieldLicenseNumber)
	licenseType, _ := f.String(FieldLicenseType)
	d.LicenseType = models.VehicleCategory(licenseType)
	d.ContactNumber, _ = f.String(FieldContactNumber)
	exp, _ := f.Int(FieldExperienceYears)
	d.ExperienceYears = int(exp)
	d.ImageURL, _ = f.String(FieldImageURL)
	d.TotalTrips, _ = f.Int(FieldTotalTrips)
	d.TotalTripHours, _ = f.Float(FieldTotalTripHours)
	d.TotalDistanceKm, _ = f.Float(FieldTotalDistanceKm)
	d.CreatedAt, _ = f.Time(FieldCreatedAt)
	return d, nil
}
