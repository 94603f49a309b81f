package scraper

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/playwright-community/playwright-go"

	"immopipe/config"
	"immopipe/models"
	"immopipe/parse"
	"immopipe/services"
)

var (
	blobPriceRe = regexp.MustCompile(`(\d+(?:\.\d{3})*(?:[.,]\d{1,2})?)\s*€`)
	blobDealRe  = regexp.MustCompile(`(?i)(zur Miete|zum Kauf|zu kaufen|zu mieten)`)
)

// ImmoweltCrawler scrapes Immowelt. Its result cards carry a compact title
// blob ("Wohnung 67.73 m² 1117.55 € zur Miete <address>") that doubles as
// a fallback data source when a detail page stays unreachable.
type ImmoweltCrawler struct {
	session    *browserSession
	cfg        *config.PortalConfig
	normalizer *services.Normalizer
	logger     *log.Logger
}

func NewImmoweltCrawler(cfg *config.PortalConfig, headless bool, normalizer *services.Normalizer, logger *log.Logger) *ImmoweltCrawler {
	if logger == nil {
		logger = log.Default()
	}
	return &ImmoweltCrawler{
		session:    newBrowserSession(headless, logger),
		cfg:        cfg,
		normalizer: normalizer,
		logger:     logger,
	}
}

func (c *ImmoweltCrawler) Portal() string { return models.PortalImmowelt }

func (c *ImmoweltCrawler) Initialize(ctx context.Context) error {
	return c.session.ensureBrowser()
}

func (c *ImmoweltCrawler) Close() { c.session.Close() }

// BuildSearchURL maps a builder onto the classified-search scheme. The
// results are ordered by creation date so the freshest listings come first.
func (c *ImmoweltCrawler) BuildSearchURL(b *models.SearchBuilder, locationCode string) string {
	base := c.cfg.BaseURL
	if base == "" {
		base = "https://www.immowelt.de"
	}
	if locationCode == "" {
		locationCode = "AD08DE8634"
	}

	params := url.Values{}
	if b.DealType == models.DealTypeSale {
		params.Set("distributionTypes", "Buy")
	} else {
		params.Set("distributionTypes", "Rent")
	}
	params.Set("estateTypes", immoweltEstateTypes(b.PropertyTypes))
	params.Set("locations", locationCode)
	if b.PriceMin > 0 {
		params.Set("priceMin", fmt.Sprintf("%d", b.PriceMin))
	}
	if b.PriceMax > 0 {
		params.Set("priceMax", fmt.Sprintf("%d", b.PriceMax))
	}
	if b.SizeMin > 0 {
		params.Set("spaceMin", fmt.Sprintf("%d", b.SizeMin))
	}
	if b.SizeMax > 0 {
		params.Set("spaceMax", fmt.Sprintf("%d", b.SizeMax))
	}
	if b.RoomsMin > 0 {
		params.Set("roomsMin", fmt.Sprintf("%d", b.RoomsMin))
	}
	if b.RoomsMax > 0 {
		params.Set("roomsMax", fmt.Sprintf("%d", b.RoomsMax))
	}
	params.Set("order", "CreateDate")

	return base + "/classified-search?" + params.Encode()
}

func immoweltEstateTypes(propertyTypes []string) string {
	if len(propertyTypes) == 0 {
		return "Apartment"
	}
	var types []string
	for _, pt := range propertyTypes {
		switch pt {
		case models.PropertyTypeHouse:
			types = append(types, "House")
		case models.PropertyTypeLand:
			types = append(types, "Plot")
		case models.PropertyTypeCommercial:
			types = append(types, "Commercial")
		default:
			types = append(types, "Apartment")
		}
	}
	return strings.Join(types, ",")
}

func (c *ImmoweltCrawler) ScrapeSearchBuilder(ctx context.Context, b *models.SearchBuilder, locationCode string, maxResults int) ([]*models.PropertyListing, error) {
	return c.ScrapeSearchURL(ctx, c.BuildSearchURL(b, locationCode), maxResults)
}

// ScrapeSearchURL collects expose links from the paginated results, then
// visits each detail page. When a detail page keeps failing, the listing
// is reconstructed from its result card and tagged as partial data.
func (c *ImmoweltCrawler) ScrapeSearchURL(ctx context.Context, searchURL string, maxResults int) ([]*models.PropertyListing, error) {
	if err := c.session.ensureBrowser(); err != nil {
		return nil, err
	}
	page, err := c.session.newPage()
	if err != nil {
		return nil, err
	}
	defer page.Close()

	links, resultsHTML, err := c.collectLinks(ctx, page, searchURL, maxResults)
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
			c.logger.Printf("[%s] detail %s failed, trying result card fallback: %v", c.Portal(), link, err)
			listing = c.partialFromResults(resultsHTML, link)
			if listing == nil {
				continue
			}
		}
		listings = append(listings, listing)
		humanDelay(c.cfg)
	}
	return listings, nil
}

func (c *ImmoweltCrawler) collectLinks(ctx context.Context, page playwright.Page, searchURL string, maxResults int) ([]string, string, error) {
	var links []string
	var lastHTML string
	seen := map[string]bool{}

	for pageNum := 1; pageNum <= c.cfg.MaxPages && len(links) < maxResults; pageNum++ {
		pageURL := searchURL
		if pageNum > 1 {
			pageURL = withQueryParam(searchURL, "page", fmt.Sprintf("%d", pageNum))
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
			lastHTML = html
			return nil
		})
		if err != nil {
			if pageNum == 1 {
				return nil, "", err
			}
			break
		}

		added := 0
		for _, selector := range c.cfg.ResultLinks {
			result, evalErr := page.Evaluate(extractLinksJS, selector)
			if evalErr != nil {
				continue
			}
			pageLinks := absoluteLinks(c.cfg.BaseURL, StringList(result))
			for _, link := range pageLinks {
				if !seen[link] {
					seen[link] = true
					links = append(links, link)
					added++
				}
			}
			if added > 0 {
				break
			}
		}
		c.logger.Printf("[%s] results page %d: %d new links", c.Portal(), pageNum, added)
		if added == 0 {
			break
		}
		humanDelay(c.cfg)
	}
	return links, lastHTML, nil
}

func (c *ImmoweltCrawler) scrapeDetail(ctx context.Context, page playwright.Page, link string) (*models.PropertyListing, error) {
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

	// Detail titles on this portal are the compact blob; fold its parsed
	// fields under any the selectors already captured.
	blob := ParseTitleBlob(fields["title"])
	for k, v := range blob {
		if fields[k] == "" {
			fields[k] = v
		}
	}
	fields["sourceId"] = sourceIDFromURL(link)
	if fields["postedDate"] == "" {
		fields["postedDate"] = extractPostedDate(fields["posted_date"])
	}
	return c.normalizer.BuildListing(c.Portal(), link, fields), nil
}

// partialFromResults reconstructs a listing from its card on the results
// page after the detail page stayed unreachable. The card's text is the
// title blob; everything parsed from it is better than dropping the
// listing entirely.
func (c *ImmoweltCrawler) partialFromResults(resultsHTML, link string) *models.PropertyListing {
	if resultsHTML == "" {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resultsHTML))
	if err != nil {
		return nil
	}

	sourceID := sourceIDFromURL(link)
	var cardText string
	doc.Find("a[href*='/expose/']").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		if !strings.Contains(href, sourceID) {
			return true
		}
		// Walk up to the card container for the full blob text.
		card := sel.Closest("article, div[class*='card'], div[data-testid]")
		if card.Length() == 0 {
			card = sel.Parent()
		}
		cardText = parse.CleanText(card.Text())
		return false
	})
	if cardText == "" {
		return nil
	}

	fields := ParseTitleBlob(cardText)
	fields["title"] = cardText
	fields["sourceId"] = sourceID
	listing := c.normalizer.BuildListing(c.Portal(), link, fields)
	listing.Features = append(listing.Features, models.FeaturePartialData)
	c.logger.Printf("[%s] recovered %s from result card", c.Portal(), sourceID)
	return listing
}

// ParseTitleBlob splits the compact card text into raw fields. The blob
// reads like "Wohnung 67.73 m² 1117.55 € zur Miete Langhansstraße 70,
// Berlin"; the address is whatever follows the deal phrase.
func ParseTitleBlob(blob string) map[string]string {
	fields := map[string]string{}
	clean := parse.CleanText(blob)
	if clean == "" {
		return fields
	}

	if _, ok := parse.Area(clean); ok {
		fields["area"] = clean
	}
	if m := blobPriceRe.FindString(clean); m != "" {
		fields["price"] = m
	}
	if m := blobDealRe.FindString(clean); m != "" {
		fields["dealType"] = m
		if idx := strings.Index(clean, m); idx >= 0 {
			if addr := strings.TrimSpace(clean[idx+len(m):]); addr != "" {
				fields["address"] = addr
			}
		}
	}
	if first := strings.Fields(clean); len(first) > 0 {
		fields["propertyType"] = first[0]
	}
	return fields
}

// extractPostedDate normalizes the "online since" snippet into a raw date
// string the normalizer's date parser understands.
func extractPostedDate(raw string) string {
	clean := parse.CleanText(raw)
	if clean == "" {
		return ""
	}
	for _, prefix := range []string{"Online seit", "online seit", "seit", "Online:"} {
		clean = strings.TrimSpace(strings.TrimPrefix(clean, prefix))
	}
	return clean
}
