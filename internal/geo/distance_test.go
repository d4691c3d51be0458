package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestDistance_Zero tests that identical coordinates yield zero distance
func TestDistance_Zero(t *testing.T) {
	assert.Equal(t, 0.0, Distance(52.5200, 13.4050, 52.5200, 13.4050))
}

// TestDistance_KnownValues tests against independently computed distances
func TestDistance_KnownValues(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		expected               float64
		tolerance              float64
	}{
		{
			name: "one degree of latitude",
			lat1: 0, lon1: 0, lat2: 1, lon2: 0,
			expected:  111195,
			tolerance: 100,
		},
		{
			name: "berlin to hamburg",
			lat1: 52.5200, lon1: 13.4050, lat2: 53.5511, lon2: 9.9937,
			expected:  255600,
			tolerance: 1500,
		},
		{
			name: "short hop across a site",
			lat1: 48.137154, lon1: 11.576124, lat2: 48.137554, lon2: 11.576124,
			expected:  44.5,
			tolerance: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			assert.InDelta(t, tt.expected, got, tt.tolerance)
		})
	}
}

// TestDistance_Symmetric tests that the distance is direction independent
func TestDistance_Symmetric(t *testing.T) {
	d1 := Distance(40.7128, -74.0060, 34.0522, -118.2437)
	d2 := Distance(34.0522, -118.2437, 40.7128, -74.0060)
	assert.InDelta(t, d1, d2, 0.000001)
}
