package models

import "time"

// Portal identifiers. These appear as the "source" field on every listing.
const (
	PortalImmoScout24 = "immoscout24"
	PortalImmowelt    = "immowelt"
)

// Deal types
const (
	DealTypeRent    = "rent"
	DealTypeSale    = "sale"
	DealTypeUnknown = "unknown"
)

// Property types
const (
	PropertyTypeApartment  = "apartment"
	PropertyTypeHouse      = "house"
	PropertyTypeLand       = "land"
	PropertyTypeCommercial = "commercial"
	PropertyTypeOther      = "other"
	PropertyTypeUnknown    = "unknown"
)

// FeaturePartialData marks listings recovered from the search-results page
// after all detail-page attempts failed.
const FeaturePartialData = "partial_data"

// PropertyListing is the canonical cross-portal listing record. Required
// fields are plain values; everything optional is a pointer so that absent
// data is omitted from exported rows instead of showing up as zero.
type PropertyListing struct {
	Source        string   `json:"source"`
	SourceID      string   `json:"sourceId"`
	URL           string   `json:"url"`
	Title         string   `json:"title"`
	DealType      string   `json:"dealType"`
	PropertyType  string   `json:"propertyType"`
	Description   *string  `json:"description,omitempty"`
	Address       *string  `json:"address,omitempty"`
	Price         *float64 `json:"price,omitempty"`
	Size          *float64 `json:"size,omitempty"`
	Rooms         *int     `json:"rooms,omitempty"`
	Floor         *int     `json:"floor,omitempty"`
	YearBuilt     *int     `json:"yearBuilt,omitempty"`
	Condition     *string  `json:"condition,omitempty"`
	PricePerSqm   *float64 `json:"pricePerSqm,omitempty"`
	Features      []string `json:"features"`
	Images        []string `json:"images"`
	ContactName   *string  `json:"contactName,omitempty"`
	ContactPhone  *string  `json:"contactPhone,omitempty"`
	ContactAgency *string  `json:"contactAgency,omitempty"`
	PostedDate    *string  `json:"postedDate,omitempty"`
	ExtractedDate string   `json:"extractedDate"`
}

// StampExtracted sets the extraction timestamp if it has not been set yet.
// The timestamp is a creation marker and is never overwritten.
func (l *PropertyListing) StampExtracted(now time.Time) {
	if l.ExtractedDate == "" {
		l.ExtractedDate = now.Format(time.RFC3339)
	}
}

// SetPrice updates the price and recomputes the derived price-per-sqm.
func (l *PropertyListing) SetPrice(price float64) {
	l.Price = &price
	l.recomputePricePerSqm()
}

// SetSize updates the living area and recomputes the derived price-per-sqm.
func (l *PropertyListing) SetSize(size float64) {
	l.Size = &size
	l.recomputePricePerSqm()
}

// recomputePricePerSqm maintains the invariant that pricePerSqm is
// round(price/size, 2) when both are known and size > 0, absent otherwise.
func (l *PropertyListing) recomputePricePerSqm() {
	if l.Price != nil && l.Size != nil && *l.Size > 0 {
		v := round2(*l.Price / *l.Size)
		l.PricePerSqm = &v
		return
	}
	l.PricePerSqm = nil
}

func (l *PropertyListing) HasFeature(name string) bool {
	for _, f := range l.Features {
		if f == name {
			return true
		}
	}
	return false
}

func round2(v float64) float64 {
	if v < 0 {
		return float64(int64(v*100-0.5)) / 100
	}
	return float64(int64(v*100+0.5)) / 100
}

// String pointer helpers used by the crawlers when mapping raw fields.
func StrPtr(s string) *string     { return &s }
func FloatPtr(f float64) *float64 { return &f }
func IntPtr(i int) *int           { return &i }
