package maps

import (
	"testing"

	"googlemaps.github.io/maps"
)

func TestAddressFromResult(t *testing.T) {
	res := maps.GeocodingResult{
		FormattedAddress: "12, MG Road, Indiranagar, Bengaluru, Karnataka 560038, India",
		AddressComponents: []maps.AddressComponent{
			{LongName: "12", Types: []string{"street_number"}},
			{LongName: "MG Road", Types: []string{"route"}},
			{LongName: "Indiranagar", Types: []string{"sublocality_level_1", "sublocality", "political"}},
			{LongName: "Bengaluru", Types: []string{"locality", "political"}},
			{LongName: "Bangalore Urban", Types: []string{"administrative_area_level_2", "political"}},
			{LongName: "Karnataka", Types: []string{"administrative_area_level_1", "political"}},
			{LongName: "560038", Types: []string{"postal_code"}},
		},
	}

	got := addressFromResult(res)
	want := Address{
		HouseNo:   "12",
		Street:    "MG Road",
		Landmark:  "Indiranagar",
		City:      "Bengaluru",
		State:     "Karnataka",
		Pincode:   "560038",
		Formatted: res.FormattedAddress,
	}
	if got != want {
		t.Fatalf("got %+v\nwant %+v", got, want)
	}
}
