package scraper

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"regexp"
	"strings"

	"github.com/playwright-community/playwright-go"

	"immopipe/config"
	"immopipe/models"
	"immopipe/services"
)

var exposeIDRe = regexp.MustCompile(`/expose/([A-Za-z0-9-]+)`)

// extractLinksJS collects expose links from a results page. Returned as a
// plain array; StringList copes with older page scripts that wrapped it.
const extractLinksJS = `(selector) => {
	const seen = new Set();
	const links = [];
	document.querySelectorAll(selector).forEach((a) => {
		const href = a.href || a.getAttribute('href');
		if (href && href.includes('/expose/') && !seen.has(href)) {
			seen.add(href);
			links.push(href);
		}
	});
	return links;
}`

// ImmoScoutCrawler scrapes ImmobilienScout24. Search URLs are path-based
// (state/city/deal segment); listing details come from sequential expose
// page visits.
type ImmoScoutCrawler struct {
	session    *browserSession
	cfg        *config.PortalConfig
	normalizer *services.Normalizer
	logger     *log.Logger
}

func NewImmoScoutCrawler(cfg *config.PortalConfig, headless bool, normalizer *services.Normalizer, logger *log.Logger) *ImmoScoutCrawler {
	if logger == nil {
		logger = log.Default()
	}
	return &ImmoScoutCrawler{
		session:    newBrowserSession(headless, logger),
		cfg:        cfg,
		normalizer: normalizer,
		logger:     logger,
	}
}

func (c *ImmoScoutCrawler) Portal() string { return models.PortalImmoScout24 }

func (c *ImmoScoutCrawler) Initialize(ctx context.Context) error {
	return c.session.ensureBrowser()
}

func (c *ImmoScoutCrawler) Close() { c.session.Close() }

// BuildSearchURL maps a search builder onto the portal's path-based search
// scheme. The location code is unused here; this portal addresses regions
// by slug, falling back to Berlin when the region is empty.
func (c *ImmoScoutCrawler) BuildSearchURL(b *models.SearchBuilder, locationCode string) string {
	city := "berlin"
	if len(b.Regions) > 0 && strings.TrimSpace(b.Regions[0]) != "" {
		city = citySlug(b.Regions[0])
	}
	state := city

	segment := "wohnung-mieten"
	if len(b.PropertyTypes) > 0 && b.PropertyTypes[0] == models.PropertyTypeHouse {
		segment = "haus-mieten"
	}
	if b.DealType == models.DealTypeSale {
		segment = strings.Replace(segment, "-mieten", "-kaufen", 1)
	}

	base := c.cfg.BaseURL
	if base == "" {
		base = "https://www.immobilienscout24.de"
	}

	params := url.Values{}
	if b.PriceMin > 0 || b.PriceMax > 0 {
		params.Set("price", rangeParam(b.PriceMin, b.PriceMax))
	}
	if b.SizeMin > 0 || b.SizeMax > 0 {
		params.Set("livingspace", rangeParam(b.SizeMin, b.SizeMax))
	}
	if b.RoomsMin > 0 || b.RoomsMax > 0 {
		params.Set("numberofrooms", rangeParam(b.RoomsMin, b.RoomsMax))
	}
	if b.RadiusKm > 0 {
		params.Set("radius", fmt.Sprintf("%d", b.RadiusKm))
	}
	if b.PostedSinceDays > 0 {
		params.Set("publicationdate", fmt.Sprintf("-%d", b.PostedSinceDays))
	}
	params.Set("sorting", "2")

	u := fmt.Sprintf("%s/Suche/de/%s/%s/%s", base, state, city, segment)
	if encoded := params.Encode(); encoded != "" {
		u += "?" + encoded
	}
	return u
}

func (c *ImmoScoutCrawler) ScrapeSearchBuilder(ctx context.Context, b *models.SearchBuilder, locationCode string, maxResults int) ([]*models.PropertyListing, error) {
	return c.ScrapeSearchURL(ctx, c.BuildSearchURL(b, locationCode), maxResults)
}

// ScrapeSearchURL walks the paginated results, collects expose links, then
// visits each detail page in order until maxResults listings succeed.
func (c *ImmoScoutCrawler) ScrapeSearchURL(ctx context.Context, searchURL string, maxResults int) ([]*models.PropertyListing, error) {
	if err := c.session.ensureBrowser(); err != nil {
		return nil, err
	}
	page, err := c.session.newPage()
	if err != nil {
		return nil, err
	}
	defer page.Close()

	links, err := c.collectExposeLinks(ctx, page, searchURL, maxResults)
	if err != nil {
		return nil, err
	}
	c.logger.Printf("[%s] collected %d expose links", c.Portal(), len(links))

	var listings []*models.PropertyListing
	for _, link := range links {
		if len(listings) >= maxResults {
			break
		}
		select {
		case <-ctx.Done():
			return listings, ctx.Err()
		default:
		}

		listing, err := c.scrapeDetail(ctx, page, link)
		if err != nil {
			c.logger.Printf("[%s] detail %s failed: %v", c.Portal(), link, err)
			continue
		}
		listings = append(listings, listing)
		humanDelay(c.cfg)
	}
	return listings, nil
}

func (c *ImmoScoutCrawler) collectExposeLinks(ctx context.Context, page playwright.Page, searchURL string, maxResults int) ([]string, error) {
	var links []string
	seen := map[string]bool{}

	for pageNum := 1; pageNum <= c.cfg.MaxPages && len(links) < maxResults; pageNum++ {
		pageURL := searchURL
		if pageNum > 1 {
			pageURL = withQueryParam(searchURL, "pagenumber", fmt.Sprintf("%d", pageNum))
		}

		err := withRetry(ctx, c.cfg.RetryAttempts, c.logger, fmt.Sprintf("results page %d", pageNum), func() error {
			if _, err := page.Goto(pageURL, playwright.PageGotoOptions{
				Timeout:   playwright.Float(60000),
				WaitUntil: playwright.WaitUntilStateDomcontentloaded,
			}); err != nil {
				return err
			}
			handleConsent(page, c.logger)
			html, _ := page.Content()
			if reason := DetectBlock(page.URL(), html); reason != "" {
				return fmt.Errorf("blocked: %s", reason)
			}
			return nil
		})
		if err != nil {
			if pageNum == 1 {
				return nil, err
			}
			break
		}

		pageLinks := c.extractLinks(page)
		added := 0
		for _, link := range pageLinks {
			if !seen[link] {
				seen[link] = true
				links = append(links, link)
				added++
			}
		}
		c.logger.Printf("[%s] results page %d: %d new links", c.Portal(), pageNum, added)
		if added == 0 {
			break
		}
		humanDelay(c.cfg)
	}
	return links, nil
}

func (c *ImmoScoutCrawler) extractLinks(page playwright.Page) []string {
	for _, selector := range c.cfg.ResultLinks {
		result, err := page.Evaluate(extractLinksJS, selector)
		if err != nil {
			continue
		}
		if links := StringList(result); len(links) > 0 {
			return absoluteLinks(c.cfg.BaseURL, links)
		}
	}
	return nil
}

func (c *ImmoScoutCrawler) scrapeDetail(ctx context.Context, page playwright.Page, link string) (*models.PropertyListing, error) {
	var fields map[string]string
	err := withRetry(ctx, c.cfg.RetryAttempts, c.logger, "detail page", func() error {
		if _, err := page.Goto(link, playwright.PageGotoOptions{
			Timeout:   playwright.Float(45000),
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		}); err != nil {
			return err
		}
		handleConsent(page, c.logger)
		html, _ := page.Content()
		if reason := DetectBlock(page.URL(), html); reason != "" {
			return fmt.Errorf("blocked: %s", reason)
		}

		fields = map[string]string{}
		for name, selector := range c.cfg.Detail {
			if v := textOf(page, selector); v != "" {
				fields[name] = v
			}
		}
		if fields["title"] == "" {
			return fmt.Errorf("no title found")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	fields["sourceId"] = sourceIDFromURL(link)
	if fields["dealType"] == "" {
		fields["dealType"] = dealTypeFromURL(link)
	}
	if fields["propertyType"] == "" {
		fields["propertyType"] = fields["title"]
	}
	return c.normalizer.BuildListing(c.Portal(), link, fields), nil
}

// sourceIDFromURL pulls the listing identifier out of an expose URL.
func sourceIDFromURL(link string) string {
	if m := exposeIDRe.FindStringSubmatch(link); m != nil {
		return m[1]
	}
	return link
}

// dealTypeFromURL infers rent/sale from the URL path for search URLs fed
// in directly, where no builder deal type is available.
func dealTypeFromURL(link string) string {
	lower := strings.ToLower(link)
	if strings.Contains(lower, "kauf") || strings.Contains(lower, "sale") {
		return "kaufen"
	}
	if strings.Contains(lower, "miet") || strings.Contains(lower, "rent") {
		return "mieten"
	}
	return ""
}

func citySlug(region string) string {
	slug := strings.ToLower(strings.TrimSpace(region))
	replacer := strings.NewReplacer("ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss", " ", "-")
	return replacer.Replace(slug)
}

func rangeParam(min, max int) string {
	switch {
	case min > 0 && max > 0:
		return fmt.Sprintf("%d.0-%d.0", min, max)
	case min > 0:
		return fmt.Sprintf("%d.0-", min)
	default:
		return fmt.Sprintf("-%d.0", max)
	}
}

func withQueryParam(rawURL, key, value string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}

func absoluteLinks(base string, links []string) []string {
	out := make([]string, 0, len(links))
	for _, link := range links {
		if strings.HasPrefix(link, "/") {
			link = strings.TrimSuffix(base, "/") + link
		}
		out = append(out, link)
	}
	return out
}
