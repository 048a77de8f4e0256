// README: Distance fallback tests.
package maps

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"riderhub/internal/types"
)

func TestHaversineKm(t *testing.T) {
	// Seoul city hall to Gangnam station, roughly 8.5 km apart.
	a := types.Point{Lat: 37.5663, Lng: 126.9779}
	b := types.Point{Lat: 37.4979, Lng: 127.0276}
	assert.InDelta(t, 8.6, HaversineKm(a, b), 0.5)
}

func TestHaversineKmZeroDistance(t *testing.T) {
	p := types.Point{Lat: 37.5663, Lng: 126.9779}
	assert.Zero(t, HaversineKm(p, p))
}
