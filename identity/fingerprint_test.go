package identity

import (
	"testing"

	"m2_harvester/models"
)

func TestNormalizeAddress(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Carrera 4 # 58-22", "cr 4 58 22"},
		{"CALLE 100 No. 15-30", "cl 100 no 15 30"},
		{"Avenida Circunvalar, Torre 2 Apartamento 501", "av circunvalar tr 2 apto 501"},
		{"Transversal 5A Bis Sur", "tv 5a bis s"},
		{"  Diagonal   25G  ", "dg 25g"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeAddress(tc.in); got != tc.want {
			t.Errorf("NormalizeAddress(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFingerprintStableAcrossFormatting(t *testing.T) {
	a := &models.PropertyRecord{
		Address:      "Carrera 4 # 58-22",
		Rooms:        "3",
		Bathrooms:    "2",
		Area:         "84.5",
		PropertyType: "Apartamento",
	}
	b := &models.PropertyRecord{
		Address:      "CARRERA 4 No. 58-22",
		Rooms:        "3",
		Bathrooms:    "2",
		Area:         "84.5",
		PropertyType: "APARTAMENTO",
	}

	fa, fb := Fingerprint(a), Fingerprint(b)
	if fa != fb {
		t.Errorf("same property fingerprinted differently: %s vs %s", fa, fb)
	}
	if len(fa) != 32 {
		t.Errorf("fingerprint length = %d, want 32 hex chars", len(fa))
	}
}

func TestFingerprintDistinguishesLayout(t *testing.T) {
	a := &models.PropertyRecord{Address: "Carrera 4 # 58-22", Rooms: "3", Bathrooms: "2", Area: "84.5", PropertyType: "Apartamento"}
	b := &models.PropertyRecord{Address: "Carrera 4 # 58-22", Rooms: "2", Bathrooms: "2", Area: "84.5", PropertyType: "Apartamento"}

	if Fingerprint(a) == Fingerprint(b) {
		t.Error("different layouts at the same address must not collide")
	}
}

func TestFingerprintFallbacks(t *testing.T) {
	byID := &models.PropertyRecord{PropertyID: "1023-M4567890", URL: "https://example.com/1"}
	byURL := &models.PropertyRecord{URL: "https://example.com/1"}

	if Fingerprint(byID) == Fingerprint(byURL) {
		t.Error("ID fallback and URL fallback must differ")
	}

	sameURL := &models.PropertyRecord{URL: "https://example.com/1"}
	if Fingerprint(byURL) != Fingerprint(sameURL) {
		t.Error("URL fallback is not stable")
	}
}
