// Package telemetry carries live vehicle positions over MQTT.
package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ukydev/fleet-manager/internal/models"
)

const (
	topicPrefix = "fleet/vehicles/"
	topicSuffix = "/position"
)

var ErrBadPosition = errors.New("bad position message")

// PositionMessage is the JSON payload published for every position fix.
type PositionMessage struct {
	Plate     string    `json:"plate"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Timestamp time.Time `json:"timestamp"`
}

// PositionTopic returns the topic positions of plate are published on.
func PositionTopic(plate string) string {
	return topicPrefix + plate + topicSuffix
}

// plateFromTopic extracts the plate of a fleet/vehicles/{plate}/position topic.
func plateFromTopic(topic string) string {
	if !strings.HasPrefix(topic, topicPrefix) || !strings.HasSuffix(topic, topicSuffix) {
		return ""
	}
	plate := strings.TrimSuffix(strings.TrimPrefix(topic, topicPrefix), topicSuffix)
	if strings.Contains(plate, "/") {
		return ""
	}
	return plate
}

// ParsePosition decodes a position message. The plate falls back to the
// one in the topic when the payload omits it.
func ParsePosition(topic string, payload []byte) (models.VehiclePosition, error) {
	var msg PositionMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return models.VehiclePosition{}, fmt.Errorf("%w: %v", ErrBadPosition, err)
	}
	if msg.Plate == "" {
		msg.Plate = plateFromTopic(topic)
	}
	if msg.Plate == "" {
		return models.VehiclePosition{}, fmt.Errorf("%w: no plate in payload or topic %q", ErrBadPosition, topic)
	}
	if msg.Lat < -90 || msg.Lat > 90 || msg.Lon < -180 || msg.Lon > 180 {
		return models.VehiclePosition{}, fmt.Errorf("%w: coordinates out of range (%f, %f)", ErrBadPosition, msg.Lat, msg.Lon)
	}
	return models.VehiclePosition{
		Plate:     msg.Plate,
		Location:  models.Location{Lat: msg.Lat, Lon: msg.Lon},
		Timestamp: msg.Timestamp,
	}, nil
}

// EncodePosition builds the payload for pos.
func EncodePosition(pos models.VehiclePosition) ([]byte, error) {
	return json.Marshal(PositionMessage{
		Plate:     pos.Plate,
		Lat:       pos.Location.Lat,
		Lon:       pos.Location.Lon,
		Timestamp: pos.Timestamp,
	})
}
