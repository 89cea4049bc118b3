package db

import (
	"math"
	"time"

	"github.com/ukydev/fleet-manager/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Fields is a document body with typed accessors. Each accessor reports
// false when the key is absent or holds a value of the wrong type.
type Fields map[string]interface{}

// String returns a string field.
func (f Fields) String(key string) (string, bool) {
	s, ok := f[key].(string)
	return s, ok
}

// Bool returns a boolean field.
func (f Fields) Bool(key string) (bool, bool) {
	b, ok := f[key].(bool)
	return b, ok
}

// Float returns any numeric field as float64.
func (f Fields) Float(key string) (float64, bool) {
	switch v := f[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// Int returns an integral numeric field. Floats are accepted only when
// they carry no fractional part.
func (f Fields) Int(key string) (int64, bool) {
	switch v := f[key].(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, false
		}
		return int64(v), true
	default:
		return 0, false
	}
}

// Time returns a timestamp field. RFC3339 strings and unix milliseconds
// are accepted as well as native timestamps.
func (f Fields) Time(key string) (time.Time, bool) {
	switch v := f[key].(type) {
	case time.Time:
		return v, true
	case string:
		t, err := time.Parse(time.RFC3339, v)
		return t, err == nil
	case int64:
		return time.UnixMilli(v), true
	default:
		return time.Time{}, false
	}
}

// Map returns a nested object field.
func (f Fields) Map(key string) (Fields, bool) {
	m, ok := f[key].(map[string]interface{})
	return Fields(m), ok
}

// Slice returns an array field.
func (f Fields) Slice(key string) ([]interface{}, bool) {
	s, ok := f[key].([]interface{})
	return s, ok
}

// Location returns a coordinates field stored as {lat, lon}, {lat, lng}
// or {latitude, longitude}.
func (f Fields) Location(key string) (models.Location, bool) {
	m, ok := f.Map(key)
	if !ok {
		return models.Location{}, false
	}
	for _, names := range [][2]string{{"lat", "lon"}, {"lat", "lng"}, {"latitude", "longitude"}} {
		lat, okLat := m.Float(names[0])
		lon, okLon := m.Float(names[1])
		if okLat && okLon {
			return models.Location{Lat: lat, Lon: lon}, true
		}
	}
	return models.Location{}, false
}

type geoPoint interface {
	GetLatitude() float64
	GetLongitude() float64
}

// Normalize converts driver-specific values into the plain types documented
// on Document.
func Normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case nil, string, bool, int64, float64, time.Time:
		return t
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case float32:
		return float64(t)
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.ObjectID:
		return t.Hex()
	case bson.M:
		return normalizeMap(t)
	case map[string]interface{}:
		return normalizeMap(t)
	case bson.D:
		m := make(map[string]interface{}, len(t))
		for _, e := range t {
			m[e.Key] = Normalize(e.Value)
		}
		return m
	case bson.A:
		return normalizeSlice(t)
	case []interface{}:
		return normalizeSlice(t)
	case []map[string]interface{}:
		out := make([]interface{}, len(t))
		for i, m := range t {
			out[i] = normalizeMap(m)
		}
		return out
	case []string:
		out := make([]interface{}, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case map[string]bool:
		m := make(map[string]interface{}, len(t))
		for k, b := range t {
			m[k] = b
		}
		return m
	case models.Location:
		return map[string]interface{}{"lat": t.Lat, "lon": t.Lon}
	case geoPoint:
		return map[string]interface{}{"lat": t.GetLatitude(), "lon": t.GetLongitude()}
	default:
		return t
	}
}

func normalizeMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = Normalize(v)
	}
	return out
}

func normalizeSlice(s []interface{}) []interface{} {
	out := make([]interface{}, len(s))
	for i, v := range s {
		out[i] = Normalize(v)
	}
	return out
}
