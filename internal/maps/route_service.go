// README: Delivery distance estimation via Google Maps with haversine fallback.
package maps

import (
	"context"
	"fmt"
	"math"

	"googlemaps.github.io/maps"

	"riderhub/internal/types"
)

// RouteService handles interactions with the Google Maps API.
type RouteService struct {
	client *maps.Client
}

// NewRouteService creates a new RouteService with the given API key.
func NewRouteService(apiKey string) (*RouteService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &RouteService{client: client}, nil
}

// EstimateKm returns the driving distance in kilometres from pickup to
// dropoff. When the API yields no usable route the great-circle distance
// is returned instead, so dispatch creation never fails on a maps outage.
func (s *RouteService) EstimateKm(ctx context.Context, pickup, dropoff types.Point) float64 {
	r := &maps.DirectionsRequest{
		Origin:      fmt.Sprintf("%f,%f", pickup.Lat, pickup.Lng),
		Destination: fmt.Sprintf("%f,%f", dropoff.Lat, dropoff.Lng),
		Mode:        maps.TravelModeDriving,
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil || len(routes) == 0 || len(routes[0].Legs) == 0 {
		return HaversineKm(pickup, dropoff)
	}
	return float64(routes[0].Legs[0].Distance.Meters) / 1000.0
}

// HaversineKm is the great-circle distance between two points.
func HaversineKm(a, b types.Point) float64 {
	const earthRadiusKm = 6371.0
	lat1 := a.Lat * math.Pi / 180.0
	lat2 := b.Lat * math.Pi / 180.0
	dlat := (b.Lat - a.Lat) * math.Pi / 180.0
	dlng := (b.Lng - a.Lng) * math.Pi / 180.0
	h := math.Sin(dlat/2)*math.Sin(dlat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlng/2)*math.Sin(dlng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}
