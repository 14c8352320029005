package geo

import "testing"

const testZones = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"postalCode": "10001"},
      "geometry": {
        "type": "Polygon",
        "coordinates": [[[0, 0], [1, 0], [1, 1], [0, 1], [0, 0]]]
      }
    },
    {
      "type": "Feature",
      "properties": {"ZIPCODE": 11201},
      "geometry": {
        "type": "Polygon",
        "coordinates": [[[2, 0], [3, 0], [3, 1], [2, 1], [2, 0]]]
      }
    },
    {
      "type": "Feature",
      "properties": {"postalCode": "10301"},
      "geometry": {
        "type": "MultiPolygon",
        "coordinates": [
          [[[5, 5], [6, 5], [6, 6], [5, 6], [5, 5]]],
          [[[8, 8], [9, 8], [9, 9], [8, 9], [8, 8]]]
        ]
      }
    }
  ]
}`

func TestResolveInside(t *testing.T) {
	r, err := LoadGeoJSON([]byte(testZones))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Zones() != 3 {
		t.Fatalf("expected 3 zones, got %d", r.Zones())
	}

	cases := []struct {
		lon, lat float64
		want     string
		ok       bool
	}{
		{0.5, 0.5, "10001", true},
		{2.5, 0.5, "11201", true},
		{5.5, 5.5, "10301", true}, // first part of the multipolygon
		{8.5, 8.5, "10301", true}, // second part
		{7.0, 7.0, "", false},     // gap between multipolygon parts
		{1.5, 0.5, "", false},     // between the two squares
		{-10, -10, "", false},
	}

	for _, tc := range cases {
		got, ok := r.Resolve(tc.lon, tc.lat)
		if ok != tc.ok || got != tc.want {
			t.Errorf("Resolve(%v, %v) = (%q, %v), want (%q, %v)",
				tc.lon, tc.lat, got, ok, tc.want, tc.ok)
		}
	}
}

// TestResolveRepeatable pins the boundary contract: whatever a boundary point
// resolves to, repeated calls must agree.
func TestResolveRepeatable(t *testing.T) {
	r, err := LoadGeoJSON([]byte(testZones))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	points := [][2]float64{
		{1.0, 0.5}, // edge of 10001
		{0.0, 0.0}, // corner
		{0.5, 0.5},
		{1.5, 0.5},
	}

	for _, pt := range points {
		firstZip, firstOK := r.Resolve(pt[0], pt[1])
		for i := 0; i < 5; i++ {
			zip, ok := r.Resolve(pt[0], pt[1])
			if zip != firstZip || ok != firstOK {
				t.Fatalf("Resolve(%v, %v) changed between calls: (%q,%v) then (%q,%v)",
					pt[0], pt[1], firstZip, firstOK, zip, ok)
			}
		}
	}
}

func TestLoadGeoJSONRejectsMissingZip(t *testing.T) {
	const noZip = `{
	  "type": "FeatureCollection",
	  "features": [
	    {
	      "type": "Feature",
	      "properties": {"name": "somewhere"},
	      "geometry": {
	        "type": "Polygon",
	        "coordinates": [[[0, 0], [1, 0], [1, 1], [0, 1], [0, 0]]]
	      }
	    }
	  ]
	}`

	if _, err := LoadGeoJSON([]byte(noZip)); err == nil {
		t.Fatal("expected error for feature without zip property")
	}
}

func TestLoadGeoJSONRejectsEmpty(t *testing.T) {
	const empty = `{"type": "FeatureCollection", "features": []}`
	if _, err := LoadGeoJSON([]byte(empty)); err == nil {
		t.Fatal("expected error for empty collection")
	}
}
