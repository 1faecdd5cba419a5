package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStandardRoundTrip(t *testing.T) {
	p := Point{Lat: 40.7128, Lon: -74.0060}
	enc := Encode6(p)
	got := Decode6(enc)

	tolerance := 180.0 / math.Pow(2, 23)
	assert.InDelta(t, p.Lat, got.Lat, tolerance)
	assert.InDelta(t, p.Lon, got.Lon, tolerance)
}

func TestHighResRoundTrip(t *testing.T) {
	p := Point{Lat: -33.8688, Lon: 151.2093}
	enc := Encode8(p)
	got := Decode8(enc)

	tolerance := 180.0 / math.Pow(2, 31)
	assert.InDelta(t, p.Lat, got.Lat, tolerance)
	assert.InDelta(t, p.Lon, got.Lon, tolerance)
}

func TestOriginIsInvalid(t *testing.T) {
	assert.False(t, Point{Lat: 0, Lon: 0}.Valid())
}

func TestNearOriginIsValid(t *testing.T) {
	assert.True(t, Point{Lat: 0.0003, Lon: 0.0003}.Valid())
}

func TestOutOfRangeIsInvalid(t *testing.T) {
	assert.False(t, Point{Lat: 90, Lon: 0}.Valid())
	assert.False(t, Point{Lat: 0, Lon: 180}.Valid())
	assert.False(t, Point{Lat: -91, Lon: 10}.Valid())
}

func TestInRangeIsValid(t *testing.T) {
	assert.True(t, Point{Lat: 89.9, Lon: 179.9}.Valid())
}
