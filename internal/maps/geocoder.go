// README: Forward and reverse geocoding on the Google Maps client.
package maps

import (
	"context"
	"errors"
	"fmt"

	"googlemaps.github.io/maps"
)

var ErrNoResult = errors.New("no geocoding result")

// Location is a WGS84 coordinate pair.
type Location struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

// Address is the structured form returned by reverse geocoding.
type Address struct {
	HouseNo   string `json:"houseNo,omitempty"`
	Street    string `json:"street,omitempty"`
	Landmark  string `json:"landmark,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	Pincode   string `json:"pincode,omitempty"`
	Formatted string `json:"formatted,omitempty"`
}

// Geocoder wraps the Geocoding API.
type Geocoder struct {
	client *maps.Client
	region string
}

// NewGeocoder creates a Geocoder with the given API Key. region biases results (ccTLD, e.g. "in").
func NewGeocoder(apiKey, region string) (*Geocoder, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &Geocoder{client: client, region: region}, nil
}

// Forward resolves a free-text address to coordinates.
func (g *Geocoder) Forward(ctx context.Context, address string) (Location, error) {
	if address == "" {
		return Location{}, ErrNoResult
	}
	results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{
		Address: address,
		Region:  g.region,
	})
	if err != nil {
		return Location{}, fmt.Errorf("geocode: %w", err)
	}
	if len(results) == 0 {
		return Location{}, ErrNoResult
	}
	loc := results[0].Geometry.Location
	return Location{Lat: loc.Lat, Lng: loc.Lng}, nil
}

// Reverse resolves coordinates to a structured address.
func (g *Geocoder) Reverse(ctx context.Context, lat, lng float64) (Address, error) {
	results, err := g.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: lat, Lng: lng},
	})
	if err != nil {
		return Address{}, fmt.Errorf("reverse geocode: %w", err)
	}
	if len(results) == 0 {
		return Address{}, ErrNoResult
	}
	return addressFromResult(results[0]), nil
}

func addressFromResult(r maps.GeocodingResult) Address {
	a := Address{Formatted: r.FormattedAddress}
	for _, c := range r.AddressComponents {
		for _, t := range c.Types {
			switch t {
			case "street_number", "premise":
				setOnce(&a.HouseNo, c.LongName)
			case "route":
				setOnce(&a.Street, c.LongName)
			case "sublocality", "sublocality_level_1", "neighborhood":
				setOnce(&a.Landmark, c.LongName)
			case "locality", "administrative_area_level_2":
				setOnce(&a.City, c.LongName)
			case "administrative_area_level_1":
				setOnce(&a.State, c.LongName)
			case "postal_code":
				setOnce(&a.Pincode, c.LongName)
			}
		}
	}
	return a
}

func setOnce(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}
