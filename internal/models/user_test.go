package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestIsValidRole(t *testing.T) {
	for _, role := range []Role{RoleAdmin, RoleManager, RoleDriver} {
		if !IsValidRole(role) {
			t.Errorf("IsValidRole(%q) = false, want true", role)
		}
	}
	for _, role := range []Role{"viewer", "", "Admin"} {
		if IsValidRole(role) {
			t.Errorf("IsValidRole(%q) = true, want false", role)
		}
	}
}

func TestRole_Can(t *testing.T) {
	actions := []string{
		ActionViewDashboard, ActionManageFleet, ActionDecideBill, ActionViewBills,
		ActionTransitionBooking, ActionUpdateTrip, ActionSubmitInspection,
		ActionRaiseEmergency, ActionManageUsers,
	}
	driverMay := map[string]bool{
		ActionUpdateTrip:       true,
		ActionSubmitInspection: true,
		ActionRaiseEmergency:   true,
	}

	for _, action := range actions {
		if !RoleAdmin.Can(action) {
			t.Errorf("admin cannot %s", action)
		}
		if got, want := RoleManager.Can(action), action != ActionManageUsers; got != want {
			t.Errorf("manager Can(%s) = %v, want %v", action, got, want)
		}
		if got, want := RoleDriver.Can(action), driverMay[action]; got != want {
			t.Errorf("driver Can(%s) = %v, want %v", action, got, want)
		}
		if Role("viewer").Can(action) {
			t.Errorf("unknown role may %s", action)
		}
	}

	if !(&User{Role: RoleDriver}).HasPermission(ActionRaiseEmergency) {
		t.Error("driver user cannot raise emergencies")
	}
}

func TestUser_JSONHidesPasswordHash(t *testing.T) {
	body, err := json.Marshal(User{Username: "ravi", PasswordHash: "$2a$10$secret", Role: RoleManager})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(body), "secret") || strings.Contains(string(body), "password") {
		t.Errorf("password hash leaked: %s", body)
	}
	if strings.Contains(string(body), "driver_id") {
		t.Errorf("empty driver_id serialized: %s", body)
	}
}
