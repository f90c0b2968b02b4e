package location

import (
	"math"
	"testing"
)

func TestHaversineKm_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		lat1      float64
		lng1      float64
		lat2      float64
		lng2      float64
		wantKm    float64
		tolerance float64
	}{
		{
			name: "same point",
			lat1: 12.9716, lng1: 77.5946,
			lat2: 12.9716, lng2: 77.5946,
			wantKm:    0,
			tolerance: 0.001,
		},
		{
			name: "MG Road to Indiranagar (~3.7km)",
			lat1: 12.9756, lng1: 77.6067,
			lat2: 12.9784, lng2: 77.6408,
			wantKm:    3.7,
			tolerance: 1.0,
		},
		{
			name: "Mumbai to Delhi (~1150km)",
			lat1: 19.0760, lng1: 72.8777,
			lat2: 28.7041, lng2: 77.1025,
			wantKm:    1150,
			tolerance: 30,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := haversineKm(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Errorf("haversineKm() = %f, want %f (±%f)", got, tt.wantKm, tt.tolerance)
			}
		})
	}
}

func TestHaversineKm_Symmetry(t *testing.T) {
	d1 := haversineKm(12.0, 77.0, 13.0, 78.0)
	d2 := haversineKm(13.0, 78.0, 12.0, 77.0)
	if math.Abs(d1-d2) > 0.0001 {
		t.Errorf("haversine is not symmetric: %f vs %f", d1, d2)
	}
}

func TestValidCoordinates(t *testing.T) {
	tests := []struct {
		lat, lng float64
		want     bool
	}{
		{12.97, 77.59, true},
		{-90, 180, true},
		{90.01, 0, false},
		{0, -180.5, false},
		{math.NaN(), 0, false},
		{0, math.Inf(1), false},
	}
	for _, tt := range tests {
		if got := validCoordinates(tt.lat, tt.lng); got != tt.want {
			t.Errorf("validCoordinates(%v, %v) = %v, want %v", tt.lat, tt.lng, got, tt.want)
		}
	}
}

func TestRoundKm(t *testing.T) {
	if got := roundKm(3.14159); got != 3.14 {
		t.Errorf("roundKm() = %v", got)
	}
}
