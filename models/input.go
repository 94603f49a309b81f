package models

import "fmt"

// Dedupe levels
const (
	DedupeNone        = "none"
	DedupePortal      = "portal"
	DedupeCrossPortal = "cross_portal"
)

// Proxy countries
const (
	ProxyCountryDE   = "DE"
	ProxyCountryAuto = "AUTO"
)

var quickSearchTemplates = []string{
	"Student Room",
	"Young Professional",
	"Family Apartment",
	"Luxury Home",
	"Investment Property",
	"Custom",
}

// SearchURL is a direct portal search URL input.
type SearchURL struct {
	URL string `json:"url"`
}

// SearchBuilder is a declarative search configuration. It is consumed
// read-only by the crawlers to construct portal-specific search URLs.
type SearchBuilder struct {
	Portals         []string `json:"portals,omitempty"`
	DealType        string   `json:"dealType"`
	PropertyTypes   []string `json:"propertyTypes,omitempty"`
	Regions         []string `json:"regions"`
	RadiusKm        int      `json:"radiusKm,omitempty"`
	PriceMin        int      `json:"priceMin,omitempty"`
	PriceMax        int      `json:"priceMax,omitempty"`
	SizeMin         int      `json:"sizeMin,omitempty"`
	SizeMax         int      `json:"sizeMax,omitempty"`
	RoomsMin        int      `json:"roomsMin,omitempty"`
	RoomsMax        int      `json:"roomsMax,omitempty"`
	Furnished       string   `json:"furnished,omitempty"`
	Features        []string `json:"features,omitempty"`
	PostedSinceDays int      `json:"postedSinceDays,omitempty"`
}

// TargetPortals returns the portals named by the builder, defaulting to
// both supported portals when none are given.
func (b *SearchBuilder) TargetPortals() []string {
	if len(b.Portals) > 0 {
		return b.Portals
	}
	return []string{PortalImmoScout24, PortalImmowelt}
}

// AdvancedOptions nests the technical knobs. Top-level legacy fields on
// ActorInput remain as fallbacks for older stored configurations.
type AdvancedOptions struct {
	Concurrency int  `json:"concurrency,omitempty"`
	Debug       bool `json:"debug,omitempty"`
	Headless    bool `json:"headless"`
}

// ActorInput is the validated top-level run configuration.
type ActorInput struct {
	QuickSearch      string           `json:"quickSearch,omitempty"`
	SearchURLs       []SearchURL      `json:"searchUrls,omitempty"`
	SearchBuilders   []SearchBuilder  `json:"searchBuilders,omitempty"`
	MaxResults       int              `json:"maxResults,omitempty"`
	TrackingMode     bool             `json:"trackingMode,omitempty"`
	RemoveDuplicates *bool            `json:"removeDuplicates,omitempty"`
	AdvancedOptions  *AdvancedOptions `json:"advancedOptions,omitempty"`

	// Legacy fields kept for backward compatibility with stored inputs.
	DedupeLevel  string `json:"dedupeLevel,omitempty"`
	Concurrency  int    `json:"concurrency,omitempty"`
	ProxyCountry string `json:"proxyCountry,omitempty"`
	Debug        bool   `json:"debug,omitempty"`
	Headless     *bool  `json:"headless,omitempty"`
}

// Validate checks enum fields and applies defaults. A validation error is
// fatal for the whole run and must be reported before any scraping starts.
func (in *ActorInput) Validate() error {
	if in.MaxResults <= 0 {
		in.MaxResults = 100
	}
	if in.QuickSearch == "" {
		in.QuickSearch = "Young Professional"
	}
	valid := false
	for _, t := range quickSearchTemplates {
		if in.QuickSearch == t {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("quickSearch must be one of %v, got %q", quickSearchTemplates, in.QuickSearch)
	}

	if in.DedupeLevel == "" {
		in.DedupeLevel = DedupeCrossPortal
	}
	switch in.DedupeLevel {
	case DedupeNone, DedupePortal, DedupeCrossPortal:
	default:
		return fmt.Errorf("dedupeLevel must be one of none, portal, cross_portal, got %q", in.DedupeLevel)
	}

	if in.ProxyCountry == "" {
		in.ProxyCountry = ProxyCountryDE
	}
	if in.ProxyCountry != ProxyCountryDE && in.ProxyCountry != ProxyCountryAuto {
		return fmt.Errorf("proxyCountry must be DE or AUTO, got %q", in.ProxyCountry)
	}

	for i, b := range in.SearchBuilders {
		if b.DealType != DealTypeRent && b.DealType != DealTypeSale {
			return fmt.Errorf("searchBuilders[%d]: dealType must be rent or sale, got %q", i, b.DealType)
		}
		if len(b.Regions) == 0 {
			return fmt.Errorf("searchBuilders[%d]: at least one region is required", i)
		}
	}

	return nil
}

// EffectiveDedupeLevel resolves the dedupe level, honoring the newer
// removeDuplicates flag over the legacy dedupeLevel enum.
func (in *ActorInput) EffectiveDedupeLevel() string {
	if in.RemoveDuplicates != nil {
		if *in.RemoveDuplicates {
			return DedupeCrossPortal
		}
		return DedupeNone
	}
	return in.DedupeLevel
}

// EffectiveOptions resolves the technical knobs, preferring the nested
// advancedOptions block over the legacy top-level fields.
func (in *ActorInput) EffectiveOptions() AdvancedOptions {
	if in.AdvancedOptions != nil {
		opts := *in.AdvancedOptions
		if opts.Concurrency <= 0 {
			opts.Concurrency = 1
		}
		return opts
	}
	opts := AdvancedOptions{
		Concurrency: in.Concurrency,
		Debug:       in.Debug,
		Headless:    true,
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if in.Headless != nil {
		opts.Headless = *in.Headless
	}
	return opts
}
