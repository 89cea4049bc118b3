package auth

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"

	"github.com/ukydev/fleet-manager/internal/errs"
	"github.com/ukydev/fleet-manager/internal/models"
)

// Account form limits.
const (
	MinPasswordLength = 8
	MinUsernameLength = 3
	MaxUsernameLength = 50
)

var phonePattern = regexp.MustCompile(`^[0-9]{10}$`)

// ValidatePassword checks password strength.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return errors.New("must be at least 8 characters long")
	}
	return nil
}

// ValidateEmail accepts a bare address such as ops@example.com.
func ValidateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return errors.New("invalid email format")
	}
	return nil
}

// ValidateUsername checks username length.
func ValidateUsername(username string) error {
	switch {
	case len(username) < MinUsernameLength:
		return errors.New("must be at least 3 characters long")
	case len(username) > MaxUsernameLength:
		return errors.New("must be at most 50 characters long")
	}
	return nil
}

// ValidatePhone checks a 10-digit mobile number, where login codes go.
func ValidatePhone(phone string) error {
	if !phonePattern.MatchString(phone) {
		return errors.New("must be 10 digits")
	}
	return nil
}

// ValidateRegistration checks every field of req and reports all
// violations together.
func ValidateRegistration(req models.RegisterRequest) error {
	verr := &errs.ValidationError{}
	addIf(verr, "username", ValidateUsername(req.Username))
	addIf(verr, "email", ValidateEmail(req.Email))
	addIf(verr, "phone", ValidatePhone(req.Phone))
	addIf(verr, "password", ValidatePassword(req.Password))
	if !models.IsValidRole(req.Role) {
		verr.Add("role", "must be admin, manager or driver")
	}
	if req.Role == models.RoleDriver && strings.TrimSpace(req.DriverID) == "" {
		verr.Add("driver_id", "is required for driver accounts")
	}
	return verr.Err()
}

func addIf(verr *errs.ValidationError, field string, err error) {
	if err != nil {
		verr.Add(field, err.Error())
	}
}
