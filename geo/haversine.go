package geo

import "math"

// EarthRadiusKm is the mean Earth radius used by Distance
const EarthRadiusKm = 6371.0

// Point is a WGS84 coordinate in degrees
type Point struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

// Valid reports whether the point lies inside the latitude/longitude ranges
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Distance returns the great-circle distance between a and b in kilometers (Haversine)
func Distance(a, b Point) float64 {
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Box is a lat/lng rectangle that fully contains a circle of some radius.
type Box struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// BoundingBox returns a rectangle enclosing every point within radiusKm of p.
// It over-approximates, so callers still filter by Distance.
func BoundingBox(p Point, radiusKm float64) Box {
	dLat := radiusKm / EarthRadiusKm * 180 / math.Pi
	box := Box{
		MinLat: math.Max(p.Lat-dLat, -90),
		MaxLat: math.Min(p.Lat+dLat, 90),
		MinLng: -180,
		MaxLng: 180,
	}
	// near the poles the longitude span degenerates; keep the full range
	cosLat := math.Cos(toRad(p.Lat))
	if cosLat > 1e-6 {
		dLng := dLat / cosLat
		if dLng < 180 {
			box.MinLng = p.Lng - dLng
			box.MaxLng = p.Lng + dLng
		}
	}
	return box
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
