package parse

import (
	"testing"

	"immopipe/models"
)

func TestPrice(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{"1.234,56 €", 1234.56, true},
		{"85,50€", 85.50, true},
		{"1117.55 €", 1117.55, true}, // two digits after a lone dot: decimal
		{"450 €", 450, true},
		{"1.250 €", 1250, true}, // three digits after a lone dot: thousands
		{"2.500 €", 2500, true},
		{"250.000 €", 250000, true},
		{"1.250.000 €", 1250000, true},
		{"Kaltmiete: 890,00 €", 890, true},
		{"", 0, false},
		{"auf Anfrage", 0, false},
	}

	for _, tt := range tests {
		got, ok := Price(tt.raw)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Price(%q) = (%.2f, %v); want (%.2f, %v)", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestArea(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{"67.73 m²", 67.73, true},
		{"85,5 m²", 85.5, true},
		{"120m2", 120, true}, // ASCII unit marker is tolerated
		{"75 qm", 75, true},
		{"120", 0, false}, // no unit marker, no value
		{"", 0, false},
		{"große Wohnung", 0, false},
	}

	for _, tt := range tests {
		got, ok := Area(tt.raw)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Area(%q) = (%.2f, %v); want (%.2f, %v)", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestRooms(t *testing.T) {
	tests := []struct {
		raw  string
		want int
		ok   bool
	}{
		{"3 Zimmer", 3, true},
		{"3-Zimmer", 3, true},
		{"2.5 Zi.", 2, true}, // fractional counts truncate toward zero
		{"2,5 Zimmer", 2, true},
		{"4 Zi", 4, true},
		{"", 0, false},
		{"Balkon", 0, false},
	}

	for _, tt := range tests {
		got, ok := Rooms(tt.raw)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Rooms(%q) = (%d, %v); want (%d, %v)", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestInteger(t *testing.T) {
	tests := []struct {
		raw  string
		want int
		ok   bool
	}{
		{"0", 0, true}, // ground floor
		{"3", 3, true},
		{"3. OG", 3, true},
		{"2. Etage", 2, true},
		{"-1", -1, true}, // basement
		{"", 0, false},
		{"Erdgeschoss", 0, false},
	}

	for _, tt := range tests {
		got, ok := Integer(tt.raw)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Integer(%q) = (%d, %v); want (%d, %v)", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestPropertyType(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"Etagenwohnung", models.PropertyTypeApartment},
		{"Einfamilienhaus", models.PropertyTypeHouse},
		{"Baugrundstück", models.PropertyTypeLand},
		{"Bürofläche", models.PropertyTypeCommercial},
		{"Stellplatz", models.PropertyTypeOther},
		{"", models.PropertyTypeUnknown},
	}

	for _, tt := range tests {
		if got := PropertyType(tt.raw); got != tt.want {
			t.Errorf("PropertyType(%q) = %q; want %q", tt.raw, got, tt.want)
		}
	}
}

func TestDealType(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"zur Miete", models.DealTypeRent},
		{"Wohnung kaufen", models.DealTypeSale},
		{"Vermietung", models.DealTypeRent},
		{"Eigentum", models.DealTypeSale},
		{"", models.DealTypeUnknown},
		{"Tausch", models.DealTypeUnknown},
	}

	for _, tt := range tests {
		if got := DealType(tt.raw); got != tt.want {
			t.Errorf("DealType(%q) = %q; want %q", tt.raw, got, tt.want)
		}
	}
}

func TestDate(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"2024-03-01", "2024-03-01", true},
		{"2024-03-01T12:30:00", "2024-03-01", true},
		{"15.02.2024", "2024-02-15", true},
		{"1. März 2024", "2024-03-01", true},
		{"12 Okt. 2023", "2023-10-12", true},
		{"32.13.2024", "", false},
		{"", "", false},
		{"demnächst", "", false},
	}

	for _, tt := range tests {
		got, ok := Date(tt.raw)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Date(%q) = (%q, %v); want (%q, %v)", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCleanText(t *testing.T) {
	got := CleanText("  <p>Helle   <b>Wohnung</b>\n in Mitte</p> ")
	want := "Helle Wohnung in Mitte"
	if got != want {
		t.Errorf("CleanText = %q; want %q", got, want)
	}
}
