package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-manager/internal/models"
)

type recordingHandler struct {
	positions []models.VehiclePosition
}

func (h *recordingHandler) HandlePosition(pos models.VehiclePosition) (*models.OffRouteAlert, bool) {
	h.positions = append(h.positions, pos)
	return nil, false
}

func TestPositionTopic(t *testing.T) {
	topic := PositionTopic("MH12AB1234")
	assert.Equal(t, "fleet/vehicles/MH12AB1234/position", topic)
	assert.Equal(t, "MH12AB1234", plateFromTopic(topic))
	assert.Empty(t, plateFromTopic("fleet/vehicles/a/b/position"))
	assert.Empty(t, plateFromTopic("other/MH12AB1234/position"))
}

func TestParsePosition(t *testing.T) {
	ts := time.Date(2026, 10, 16, 8, 30, 0, 0, time.UTC)
	payload, err := EncodePosition(models.VehiclePosition{
		Plate:     "MH12AB1234",
		Location:  models.Location{Lat: 18.52, Lon: 73.85},
		Timestamp: ts,
	})
	require.NoError(t, err)

	pos, err := ParsePosition("ignored", payload)
	require.NoError(t, err)
	assert.Equal(t, "MH12AB1234", pos.Plate)
	assert.Equal(t, models.Location{Lat: 18.52, Lon: 73.85}, pos.Location)
	assert.True(t, ts.Equal(pos.Timestamp))
}

func TestParsePosition_PlateFromTopic(t *testing.T) {
	pos, err := ParsePosition("fleet/vehicles/KA01F0001/position", []byte(`{"lat":12.97,"lon":77.59}`))
	require.NoError(t, err)
	assert.Equal(t, "KA01F0001", pos.Plate)
	assert.True(t, pos.Timestamp.IsZero())
}

func TestParsePosition_Rejects(t *testing.T) {
	tests := map[string]string{
		"not json":      `lat=1`,
		"no plate":      `{"lat":1,"lon":2}`,
		"lat too large": `{"plate":"X","lat":91,"lon":2}`,
		"lon too small": `{"plate":"X","lat":1,"lon":-181}`,
	}
	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePosition("fleet/other", []byte(payload))
			assert.True(t, errors.Is(err, ErrBadPosition))
		})
	}
}

func TestSubscriber_Handle(t *testing.T) {
	h := &recordingHandler{}
	s := NewSubscriber("fleet/vehicles/+/position", h)

	s.handle("fleet/vehicles/MH12AB1234/position", []byte(`{"lat":18.5,"lon":73.8}`))
	s.handle("fleet/vehicles/MH12AB1234/position", []byte(`garbage`))

	require.Len(t, h.positions, 1)
	assert.Equal(t, "MH12AB1234", h.positions[0].Plate)
}

func TestSubscriber_CloseWithoutStart(t *testing.T) {
	s := NewSubscriber("fleet/vehicles/+/position", &recordingHandler{})
	assert.NotPanics(t, s.Close)
}
