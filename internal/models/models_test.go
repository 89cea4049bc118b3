package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidBookingStatus(t *testing.T) {
	for _, s := range []BookingStatus{BookingPending, BookingAccepted, BookingRejected, BookingInProgress, BookingCompleted} {
		assert.True(t, IsValidBookingStatus(s), s)
	}
	assert.False(t, IsValidBookingStatus("offRoute"))
	assert.False(t, IsValidBookingStatus(""))
}

func TestIsDecision(t *testing.T) {
	assert.True(t, IsDecision(BillApproved))
	assert.True(t, IsDecision(BillRejected))
	assert.True(t, IsDecision(BillNeedReview))
	assert.False(t, IsDecision(BillPending))
	assert.False(t, IsDecision("paid"))
}

func TestBillItem_Amount(t *testing.T) {
	assert.Equal(t, int64(6400), BillItem{Quantity: 2, UnitPrice: 3200}.Amount())
}

func TestInspectionsCollection(t *testing.T) {
	assert.Equal(t, "vehicles/v-42/inspections", InspectionsCollection("v-42"))
}

func TestCategoriesAndTypes(t *testing.T) {
	assert.True(t, IsValidCategory(CategoryHMV))
	assert.False(t, IsValidCategory("XMV"))
	assert.True(t, IsValidVehicleType(TypeBus))
	assert.False(t, IsValidVehicleType("van"))
}
