package geo

import "testing"

func TestHaversineKm(t *testing.T) {
	// Berlin (52.52, 13.405) to Potsdam (52.3906, 13.0645) ~ 26-28 km
	d := HaversineKm(52.52, 13.405, 52.3906, 13.0645)
	if d < 20 || d > 35 {
		t.Fatalf("unexpected distance: %v", d)
	}
}

func TestParseLatLng(t *testing.T) {
	lat, lng, err := ParseLatLng("52.52, 13.405")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if lat != 52.52 || lng != 13.405 {
		t.Fatalf("unexpected pair: %v %v", lat, lng)
	}

	for _, bad := range []string{"", "52.52", "abc, def", "91, 0", "0, 181"} {
		if _, _, err := ParseLatLng(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestFormatLatLngRoundTrip(t *testing.T) {
	s := FormatLatLng(52.52, 13.405)
	lat, lng, err := ParseLatLng(s)
	if err != nil || lat != 52.52 || lng != 13.405 {
		t.Fatalf("round trip failed: %q %v", s, err)
	}
}
