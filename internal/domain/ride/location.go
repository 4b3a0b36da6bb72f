package ride

import (
	"errors"
	"math"
	"strings"
)

// Location is a labeled coordinate pair.
type Location struct {
	Address   string
	Latitude  float64
	Longitude float64
}

var (
	ErrAddressRequired  = errors.New("location address is required")
	ErrInvalidLocations = errors.New("pickup and dropoff must differ")
	ErrCoordinatesRange = errors.New("coordinates out of range")
)

// coordEpsilon is the resolution used for semantic coordinate equality,
// roughly 10 cm at the equator.
const coordEpsilon = 1e-6

// NewLocation validates and normalizes a location.
func NewLocation(address string, lat, lng float64) (Location, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Location{}, ErrAddressRequired
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return Location{}, ErrCoordinatesRange
	}
	return Location{Address: address, Latitude: lat, Longitude: lng}, nil
}

// SamePoint compares normalized coordinates, not address strings.
func (loc Location) SamePoint(other Location) bool {
	return math.Abs(loc.Latitude-other.Latitude) < coordEpsilon &&
		math.Abs(loc.Longitude-other.Longitude) < coordEpsilon
}

// HaversineKM returns the great-circle distance between two locations in km.
func HaversineKM(a, b Location) float64 {
	const earthRadiusKM = 6371.0

	la1 := a.Latitude * math.Pi / 180
	la2 := b.Latitude * math.Pi / 180
	dla := (b.Latitude - a.Latitude) * math.Pi / 180
	dlo := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dla/2)*math.Sin(dla/2) +
		math.Cos(la1)*math.Cos(la2)*math.Sin(dlo/2)*math.Sin(dlo/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKM * c
}

// EstimateDurationMinutes converts a distance to a duration with a flat
// cart-speed heuristic. Campus carts move at roughly 12 km/h.
func EstimateDurationMinutes(distanceKM float64) int {
	const avgSpeedKMH = 12.0

	minutes := int(math.Ceil((distanceKM / avgSpeedKMH) * 60.0))
	if minutes < 1 {
		return 1
	}
	return minutes
}
