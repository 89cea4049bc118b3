package fleet

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ukydev/fleet-manager/internal/errs"
	"github.com/ukydev/fleet-manager/internal/models"
)

var (
	platePattern   = regexp.MustCompile(`^[A-Z]{2}[0-9]{1,2}[A-Z]{0,3}[0-9]{4}$`)
	contactPattern = regexp.MustCompile(`^[0-9]{10}$`)
)

// Limits enforced on vehicle and driver forms.
const (
	MaxMileage       = 50.0
	MinDriverAge     = 18
	MaxDriverAge     = 75
	MaxExperience    = 60
	licenseDateShape = "2006-01-02"
)

// VehicleForm is the input of the add-vehicle flow.
type VehicleForm struct {
	PlateNumber    string  `json:"plateNumber"`
	Category       string  `json:"category"`
	Type           string  `json:"type"`
	Model          string  `json:"model"`
	EngineNumber   string  `json:"engineNumber"`
	ChassisNumber  string  `json:"chassisNumber"`
	LicenseRenewal string  `json:"licenseRenewal"` // YYYY-MM-DD or RFC3339
	DistanceKm     float64 `json:"distanceKm"`
	Mileage        float64 `json:"mileage"`
}

// DriverForm is the input of the add-driver flow.
type DriverForm struct {
	Name            string `json:"name"`
	Age             int    `json:"age"`
	LicenseNumber   string `json:"licenseNumber"`
	LicenseType     string `json:"licenseType"`
	ContactNumber   string `json:"contactNumber"`
	ExperienceYears int    `json:"experienceYears"`
	ImageURL        string `json:"imageUrl"`
}

// NormalizePlate strips spaces and dashes and upper-cases a plate number.
func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(plate)))
}

// ValidateVehicle checks every field of f and returns the vehicle it
// describes. All violations are reported together.
func ValidateVehicle(f VehicleForm) (*models.Vehicle, error) {
	verr := &errs.ValidationError{}
	v := &models.Vehicle{
		PlateNumber:   NormalizePlate(f.PlateNumber),
		Category:      models.VehicleCategory(strings.ToUpper(strings.TrimSpace(f.Category))),
		Type:          models.VehicleType(strings.ToLower(strings.TrimSpace(f.Type))),
		Model:         strings.TrimSpace(f.Model),
		EngineNumber:  strings.TrimSpace(f.EngineNumber),
		ChassisNumber: strings.TrimSpace(f.ChassisNumber),
		DistanceKm:    f.DistanceKm,
		Mileage:       f.Mileage,
	}

	switch {
	case v.PlateNumber == "":
		verr.Add(FieldPlateNumber, "is required")
	case !platePattern.MatchString(v.PlateNumber):
		verr.Add(FieldPlateNumber, "must look like MH12AB1234")
	}
	if !models.IsValidCategory(v.Category) {
		verr.Add(FieldCategory, "must be HMV or LMV")
	}
	if !models.IsValidVehicleType(v.Type) {
		verr.Add(FieldType, "must be car, truck or bus")
	}
	if v.Model == "" {
		verr.Add(FieldModel, "is required")
	}
	if v.EngineNumber == "" {
		verr.Add(FieldEngineNumber, "is required")
	}
	if v.ChassisNumber == "" {
		verr.Add(FieldChassisNumber, "is required")
	}
	if renewal, err := parseDate(f.LicenseRenewal); err != nil {
		verr.Add(FieldLicenseRenewal, err.Error())
	} else {
		v.LicenseRenewal = renewal
	}
	if v.DistanceKm < 0 {
		verr.Add(FieldDistanceKm, "must not be negative")
	}
	if v.Mileage <= 0 || v.Mileage > MaxMileage {
		verr.Add(FieldMileage, fmt.Sprintf("must be greater than 0 and at most %g", MaxMileage))
	}

	if err := verr.Err(); err != nil {
		return nil, err
	}
	return v, nil
}

// ValidateDriver checks every field of f and returns the driver it describes.
func ValidateDriver(f DriverForm) (*models.Driver, error) {
	verr := &errs.ValidationError{}
	d := &models.Driver{
		Name:            strings.TrimSpace(f.Name),
		Age:             f.Age,
		LicenseNumber:   strings.TrimSpace(f.LicenseNumber),
		LicenseType:     models.VehicleCategory(strings.ToUpper(strings.TrimSpace(f.LicenseType))),
		ContactNumber:   strings.TrimSpace(f.ContactNumber),
		ExperienceYears: f.ExperienceYears,
		ImageURL:        strings.TrimSpace(f.ImageURL),
	}

	if d.Name == "" {
		verr.Add(FieldName, "is required")
	}
	if d.Age < MinDriverAge || d.Age > MaxDriverAge {
		verr.Add(FieldAge, fmt.Sprintf("must be between %d and %d", MinDriverAge, MaxDriverAge))
	}
	if d.LicenseNumber == "" {
		verr.Add(FieldLicenseNumber, "is required")
	}
	if !models.IsValidCategory(d.LicenseType) {
		verr.Add(FieldLicenseType, "must be HMV or LMV")
	}
	if !contactPattern.MatchString(d.ContactNumber) {
		verr.Add(FieldContactNumber, "must be 10 digits")
	}
	switch {
	case d.ExperienceYears < 0 || d.ExperienceYears > MaxExperience:
		verr.Add(FieldExperienceYears, fmt.Sprintf("must be between 0 and %d", MaxExperience))
	case d.Age >= MinDriverAge && d.ExperienceYears > d.Age-MinDriverAge:
		verr.Add(FieldExperienceYears, "cannot exceed years since driving age")
	}

	if err := verr.Err(); err != nil {
		return nil, err
	}
	return d, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("is required")
	}
	if t, err := time.Parse(licenseDateShape, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("must be a date like 2026-01-31")
}
