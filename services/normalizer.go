package services

import (
	"encoding/json"
	"time"

	"immopipe/identity"
	"immopipe/models"
	"immopipe/parse"
)

// Normalizer assembles canonical PropertyListing records from the
// heterogeneous raw-field maps the portal crawlers produce, and prepares
// them for export. The clock is injectable so extraction timestamps are
// deterministic in tests.
type Normalizer struct {
	now func() time.Time
}

func NewNormalizer() *Normalizer {
	return &Normalizer{now: time.Now}
}

// NewNormalizerAt pins the normalizer clock, for tests.
func NewNormalizerAt(now func() time.Time) *Normalizer {
	return &Normalizer{now: now}
}

// BuildListing converts a portal raw-field map into a canonical listing.
// Missing optional fields stay absent; they never become "" or 0.
func (n *Normalizer) BuildListing(portal, url string, fields map[string]string) *models.PropertyListing {
	l := &models.PropertyListing{
		Source:       portal,
		SourceID:     fields["sourceId"],
		URL:          url,
		Title:        parse.CleanText(fields["title"]),
		DealType:     parse.DealType(fields["dealType"]),
		PropertyType: parse.PropertyType(fields["propertyType"]),
		Features:     []string{},
		Images:       []string{},
	}

	if v, ok := parse.Price(fields["price"]); ok {
		l.SetPrice(v)
	}
	if v, ok := parse.Area(fields["area"]); ok {
		l.SetSize(v)
	}
	if v, ok := parse.Rooms(fields["rooms"]); ok {
		l.Rooms = &v
	}
	if addr := parse.CleanText(fields["address"]); addr != "" {
		l.Address = &addr
	}
	if desc := parse.CleanText(fields["description"]); desc != "" {
		l.Description = &desc
	}
	if cond := parse.CleanText(fields["condition"]); cond != "" {
		l.Condition = &cond
	}
	if v, ok := parse.Integer(fields["floor"]); ok {
		l.Floor = &v
	}
	if d, ok := parse.Date(fields["postedDate"]); ok {
		l.PostedDate = &d
	}

	l.StampExtracted(n.now())
	return l
}

// Normalize finalizes a listing built by a crawler: the derived metric is
// recomputed, the extraction timestamp stamped if the crawler did not set
// one, and empty collections made explicit.
func (n *Normalizer) Normalize(l *models.PropertyListing) *models.PropertyListing {
	if l.Price != nil {
		l.SetPrice(*l.Price)
	} else if l.Size != nil {
		l.SetSize(*l.Size)
	}
	if l.Features == nil {
		l.Features = []string{}
	}
	if l.Images == nil {
		l.Images = []string{}
	}
	l.StampExtracted(n.now())
	return l
}

// ExportRecord converts a normalized listing into the flat record shape
// appended to the dataset sink. Absent optional fields are omitted; the
// derived canonical ID is attached for display and traceability.
func (n *Normalizer) ExportRecord(l *models.PropertyListing) (map[string]any, error) {
	n.Normalize(l)

	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	record := make(map[string]any)
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}

	addr := ""
	if l.Address != nil {
		addr = *l.Address
	}
	locKey := identity.LocationKey(addr)
	record["canonicalId"] = identity.CanonicalID(l.Source, l.SourceID, l.PropertyType, l.DealType, locKey)
	return record, nil
}
