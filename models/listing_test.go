package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestPricePerSqmInvariant(t *testing.T) {
	l := &PropertyListing{}

	l.SetPrice(1200)
	if l.PricePerSqm != nil {
		t.Error("pricePerSqm must be absent without size")
	}

	l.SetSize(80)
	if l.PricePerSqm == nil || *l.PricePerSqm != 15 {
		t.Errorf("pricePerSqm = %v; want 15", l.PricePerSqm)
	}

	l.SetPrice(1000)
	if l.PricePerSqm == nil || *l.PricePerSqm != 12.5 {
		t.Errorf("pricePerSqm after price change = %v; want 12.5", l.PricePerSqm)
	}

	l.SetSize(0)
	if l.PricePerSqm != nil {
		t.Error("zero size must clear pricePerSqm")
	}
}

func TestPricePerSqmRounding(t *testing.T) {
	l := &PropertyListing{}
	l.SetPrice(1117.55)
	l.SetSize(67.73)
	if l.PricePerSqm == nil || *l.PricePerSqm != 16.5 {
		t.Errorf("pricePerSqm = %v; want 16.5", l.PricePerSqm)
	}
}

func TestStampExtractedIsCreationMarker(t *testing.T) {
	l := &PropertyListing{}
	first := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	l.StampExtracted(first)
	l.StampExtracted(first.Add(time.Hour))
	if l.ExtractedDate != "2024-03-01T10:00:00Z" {
		t.Errorf("ExtractedDate = %q; must keep the first stamp", l.ExtractedDate)
	}
}

func TestListingJSONOmitsAbsentOptionals(t *testing.T) {
	l := &PropertyListing{
		Source:       PortalImmowelt,
		SourceID:     "x",
		URL:          "https://example.test/x",
		Title:        "Wohnung",
		DealType:     DealTypeRent,
		PropertyType: PropertyTypeApartment,
		Features:     []string{},
		Images:       []string{},
	}
	data, err := json.Marshal(l)
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	for _, field := range []string{"price", "size", "rooms", "address", "postedDate"} {
		if strings.Contains(s, `"`+field+`"`) {
			t.Errorf("absent %s serialized: %s", field, s)
		}
	}
	for _, field := range []string{"features", "images", "source", "title"} {
		if !strings.Contains(s, `"`+field+`"`) {
			t.Errorf("required %s missing: %s", field, s)
		}
	}
}

func TestHasFeature(t *testing.T) {
	l := &PropertyListing{Features: []string{FeaturePartialData}}
	if !l.HasFeature(FeaturePartialData) {
		t.Error("HasFeature should find the tag")
	}
	if l.HasFeature("balcony") {
		t.Error("HasFeature found a tag that is not there")
	}
}
