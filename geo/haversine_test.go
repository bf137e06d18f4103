package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceSymmetricAndZero(t *testing.T) {
	points := []Point{
		{Lat: 12.0, Lng: 77.0},
		{Lat: 12.05, Lng: 77.0},
		{Lat: -33.8688, Lng: 151.2093},
		{Lat: 51.5074, Lng: -0.1278},
		{Lat: 0, Lng: 179.9},
	}
	for _, a := range points {
		assert.Zero(t, Distance(a, a))
		for _, b := range points {
			assert.InDelta(t, Distance(a, b), Distance(b, a), 1e-9)
		}
	}
}

func TestDistanceKnownValues(t *testing.T) {
	base := Point{Lat: 12.0, Lng: 77.0}

	assert.InDelta(t, 5.56, Distance(base, Point{Lat: 12.05, Lng: 77.0}), 0.01)
	assert.InDelta(t, 111.19, Distance(base, Point{Lat: 13.0, Lng: 77.0}), 0.05)
	// London to Paris
	assert.InDelta(t, 343.5, Distance(Point{Lat: 51.5074, Lng: -0.1278}, Point{Lat: 48.8566, Lng: 2.3522}), 1.0)
}

func TestBoundingBoxContainsRadius(t *testing.T) {
	center := Point{Lat: 12.0, Lng: 77.0}
	box := BoundingBox(center, 10)

	inside := Point{Lat: 12.05, Lng: 77.0}
	assert.True(t, inside.Lat >= box.MinLat && inside.Lat <= box.MaxLat)
	assert.True(t, inside.Lng >= box.MinLng && inside.Lng <= box.MaxLng)

	far := Point{Lat: 13.0, Lng: 77.0}
	assert.False(t, far.Lat >= box.MinLat && far.Lat <= box.MaxLat)
}

func TestPointValid(t *testing.T) {
	assert.True(t, Point{Lat: 12, Lng: 77}.Valid())
	assert.False(t, Point{Lat: 91, Lng: 0}.Valid())
	assert.False(t, Point{Lat: 0, Lng: -181}.Valid())
}
