package identity

import (
	"strings"
	"testing"

	"immopipe/models"
)

func TestLocationKey(t *testing.T) {
	if got := LocationKey(""); got != UnknownLocation {
		t.Errorf("LocationKey(\"\") = %q; want %q", got, UnknownLocation)
	}
	if got := LocationKey("   "); got != UnknownLocation {
		t.Errorf("LocationKey(blank) = %q; want %q", got, UnknownLocation)
	}

	a := LocationKey("Langhansstraße 70, Berlin")
	b := LocationKey("langhansstraße 70, berlin")
	if a != b {
		t.Errorf("LocationKey is case-sensitive: %q != %q", a, b)
	}
	if len(a) != 8 {
		t.Errorf("LocationKey length = %d; want 8", len(a))
	}
	if a == LocationKey("Torstraße 1, Berlin") {
		t.Error("distinct addresses produced identical keys")
	}
}

func TestCanonicalIDDeterminism(t *testing.T) {
	first := CanonicalID("immowelt", "abc123", "apartment", "rent", "deadbeef")
	second := CanonicalID("immowelt", "abc123", "apartment", "rent", "deadbeef")
	if first != second {
		t.Fatalf("CanonicalID not deterministic: %q vs %q", first, second)
	}

	if !strings.HasPrefix(first, "de_deadbeef_abc123_apartment_rent_") {
		t.Errorf("unexpected canonical ID shape: %q", first)
	}
	parts := strings.Split(first, "_")
	if len(parts) != 6 {
		t.Fatalf("expected 6 segments, got %d (%q)", len(parts), first)
	}
	if len(parts[5]) != 8 {
		t.Errorf("hash suffix length = %d; want 8", len(parts[5]))
	}
}

func TestFingerprintSensitivity(t *testing.T) {
	base := &models.PropertyListing{
		Title: "Helle 3-Zimmer-Wohnung",
		Price: models.FloatPtr(1200),
		Size:  models.FloatPtr(80),
		Rooms: models.IntPtr(3),
	}
	same := &models.PropertyListing{
		Title: "helle 3-zimmer-wohnung",
		Price: models.FloatPtr(1200),
		Size:  models.FloatPtr(80),
		Rooms: models.IntPtr(3),
	}
	other := &models.PropertyListing{
		Title: "Helle 3-Zimmer-Wohnung",
		Price: models.FloatPtr(1250),
		Size:  models.FloatPtr(80),
		Rooms: models.IntPtr(3),
	}

	if Fingerprint(base) != Fingerprint(same) {
		t.Error("fingerprint should be case-insensitive on title")
	}
	if Fingerprint(base) == Fingerprint(other) {
		t.Error("fingerprint should change with price")
	}
}

func TestDedupeKey(t *testing.T) {
	l := &models.PropertyListing{Source: "immoscout24", SourceID: "159358"}
	if got := DedupeKey(l); got != "immoscout24_159358" {
		t.Errorf("DedupeKey = %q", got)
	}
}
