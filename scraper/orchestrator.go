package scraper

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"immopipe/identity"
	"immopipe/locations"
	"immopipe/models"
	"immopipe/parse"
	"immopipe/services"
	"immopipe/storage"
)

// CrawlerFactory creates the crawler for a portal. Injectable so tests can
// substitute fakes for the browser-backed crawlers.
type CrawlerFactory func(portal string) (PortalCrawler, error)

// Orchestrator runs the whole pipeline. Direct search URL inputs are
// scraped, deduped and persisted one input at a time; each builder fans
// out across its portals and runs its own merge, dedupe, sort and cap.
type Orchestrator struct {
	input      *models.ActorInput
	factory    CrawlerFactory
	dataset    storage.Dataset
	store      *storage.SQLiteStore
	pg         *storage.PostgresSink
	resolver   *locations.Resolver
	normalizer *services.Normalizer
	logger     *log.Logger
	now        func() time.Time

	crawlers map[string]PortalCrawler
}

// OrchestratorOptions carries the optional collaborators.
type OrchestratorOptions struct {
	Postgres *storage.PostgresSink
	Logger   *log.Logger
	Now      func() time.Time
}

func NewOrchestrator(input *models.ActorInput, factory CrawlerFactory, dataset storage.Dataset,
	store *storage.SQLiteStore, resolver *locations.Resolver, opts OrchestratorOptions) *Orchestrator {

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		input:      input,
		factory:    factory,
		dataset:    dataset,
		store:      store,
		pg:         opts.Postgres,
		resolver:   resolver,
		normalizer: services.NewNormalizerAt(now),
		logger:     logger,
		now:        now,
		crawlers:   map[string]PortalCrawler{},
	}
}

// Run executes one scrape. It always finalizes stats and the run record,
// even when every input fails.
func (o *Orchestrator) Run(ctx context.Context) (*models.RunStats, error) {
	if err := o.input.Validate(); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	stats := &models.RunStats{StartTime: o.now()}
	run := &models.ScrapeRun{
		ID:        uuid.NewString(),
		StartedAt: stats.StartTime,
		Status:    models.RunStatusRunning,
	}
	if o.store != nil {
		if err := o.store.CreateRun(run); err != nil {
			o.logger.Printf("WARN: could not record run start: %v", err)
		}
	}
	defer o.closeCrawlers()

	var persisted []*models.PropertyListing
	persisted = append(persisted, o.runSearchURLs(ctx, stats)...)
	persisted = append(persisted, o.runBuilders(ctx, stats)...)

	if o.input.TrackingMode {
		o.recordSeen(persisted)
	}

	run.ListingsFound = stats.TotalProcessed
	run.ListingsSaved = len(persisted)
	run.ErrorsCount = stats.FailedExtractions
	run.Status = models.RunStatusCompleted
	finished := o.now()
	run.FinishedAt = &finished

	stats.Finalize(finished)
	if o.store != nil {
		if err := o.store.SaveStats(stats); err != nil {
			o.logger.Printf("WARN: could not save stats: %v", err)
		}
		if err := o.store.UpdateRun(run); err != nil {
			o.logger.Printf("WARN: could not record run end: %v", err)
		}
	}
	if o.resolver != nil {
		if err := o.resolver.Flush(); err != nil {
			o.logger.Printf("WARN: could not flush location cache: %v", err)
		}
	}

	o.logger.Printf("Run %s finished: %d found, %d saved, %d duplicates removed, %.1f%% success",
		run.ID, run.ListingsFound, run.ListingsSaved, stats.DuplicatesRemoved, stats.SuccessRate)
	return stats, nil
}

// runSearchURLs processes each direct search URL input on its own:
// scrape, dedupe within the input, persist in scrape order. Results are
// never date-sorted or pooled with other inputs, and the only cap is the
// per-input maxResults the crawler applies. A failing input is logged and
// counted; it never aborts the others.
func (o *Orchestrator) runSearchURLs(ctx context.Context, stats *models.RunStats) []*models.PropertyListing {
	var persisted []*models.PropertyListing

	for _, su := range o.input.SearchURLs {
		portal, err := PortalFromURL(su.URL)
		if err != nil {
			o.logger.Printf("Skipping search URL %q: %v", su.URL, err)
			stats.FailedExtractions++
			continue
		}
		crawler, err := o.crawler(ctx, portal)
		if err != nil {
			o.logger.Printf("Could not start %s crawler: %v", portal, err)
			stats.FailedExtractions++
			continue
		}
		listings, err := crawler.ScrapeSearchURL(ctx, su.URL, o.input.MaxResults)
		if err != nil {
			o.logger.Printf("Search URL %q failed: %v", su.URL, err)
			stats.FailedExtractions++
		}
		stats.TotalProcessed += len(listings)
		stats.SuccessfulExtractions += len(listings)

		deduped := o.dedupe(listings, stats)
		persisted = append(persisted, o.persist(ctx, deduped, stats)...)
	}

	return persisted
}

// runBuilders processes each builder input. A builder's portals are
// scraped concurrently, and the merge, dedupe, date-sort and cap to
// maxResults apply to that builder's combined results only.
func (o *Orchestrator) runBuilders(ctx context.Context, stats *models.RunStats) []*models.PropertyListing {
	var persisted []*models.PropertyListing

	for i := range o.input.SearchBuilders {
		b := &o.input.SearchBuilders[i]
		portals := b.TargetPortals()
		perPortal := o.input.MaxResults / len(portals)
		if perPortal < 1 {
			perPortal = 1
		}
		var merged []*models.PropertyListing

		var locationCode string
		if o.resolver != nil && len(b.Regions) > 0 {
			locationCode = o.resolver.Resolve(b.Regions[0])
		}

		// One goroutine per portal; each portal has its own crawler and
		// browser, so the portals never share a page.
		var mu sync.Mutex
		var wg sync.WaitGroup
		for _, portal := range portals {
			crawler, err := o.crawler(ctx, portal)
			if err != nil {
				o.logger.Printf("Could not start %s crawler: %v", portal, err)
				stats.FailedExtractions++
				continue
			}

			wg.Add(1)
			go func(portal string, crawler PortalCrawler) {
				defer wg.Done()
				listings, err := crawler.ScrapeSearchBuilder(ctx, b, locationCode, perPortal)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					o.logger.Printf("Builder %d on %s failed: %v", i, portal, err)
					stats.FailedExtractions++
				}
				stats.SuccessfulExtractions += len(listings)
				merged = append(merged, listings...)
			}(portal, crawler)
		}
		wg.Wait()
		stats.TotalProcessed += len(merged)

		deduped := o.dedupe(merged, stats)
		sortByDateDesc(deduped, o.now())
		if len(deduped) > o.input.MaxResults {
			deduped = deduped[:o.input.MaxResults]
		}
		persisted = append(persisted, o.persist(ctx, deduped, stats)...)
	}

	return persisted
}

func (o *Orchestrator) crawler(ctx context.Context, portal string) (PortalCrawler, error) {
	if c, ok := o.crawlers[portal]; ok {
		return c, nil
	}
	c, err := o.factory(portal)
	if err != nil {
		return nil, err
	}
	if err := c.Initialize(ctx); err != nil {
		return nil, err
	}
	o.crawlers[portal] = c
	return c, nil
}

func (o *Orchestrator) closeCrawlers() {
	for _, c := range o.crawlers {
		c.Close()
	}
	o.crawlers = map[string]PortalCrawler{}
}

// dedupe removes repeated listings by source_sourceId. Level none keeps
// everything by assigning synthetic keys.
func (o *Orchestrator) dedupe(listings []*models.PropertyListing, stats *models.RunStats) []*models.PropertyListing {
	level := o.input.EffectiveDedupeLevel()

	seen := map[string]bool{}
	out := make([]*models.PropertyListing, 0, len(listings))
	for _, l := range listings {
		key := identity.DedupeKey(l)
		if level == models.DedupeNone {
			key = uuid.NewString()
		}
		if seen[key] {
			stats.DuplicatesRemoved++
			continue
		}
		seen[key] = true
		out = append(out, l)
	}
	return out
}

// recordSeen adds the persisted listings to the cross-run seen set. The
// set is external state for downstream consumers; it never gates what a
// later run extracts or persists.
func (o *Orchestrator) recordSeen(listings []*models.PropertyListing) {
	if o.store == nil {
		return
	}
	state, err := o.store.GetState()
	if err != nil {
		o.logger.Printf("WARN: could not load tracking state: %v", err)
		return
	}

	seen := make(map[string]bool, len(state.SeenListings))
	for _, key := range state.SeenListings {
		seen[key] = true
	}

	added := 0
	for _, l := range listings {
		key := identity.DedupeKey(l)
		if seen[key] {
			continue
		}
		seen[key] = true
		state.SeenListings = append(state.SeenListings, key)
		added++
	}
	state.LastRun = o.now().Format(time.RFC3339)

	if err := o.store.SetState(state); err != nil {
		o.logger.Printf("WARN: could not save tracking state: %v", err)
	}
	o.logger.Printf("Tracking mode: %d new listings, %d tracked in total", added, len(state.SeenListings))
}

func (o *Orchestrator) persist(ctx context.Context, listings []*models.PropertyListing, stats *models.RunStats) []*models.PropertyListing {
	saved := make([]*models.PropertyListing, 0, len(listings))
	for _, l := range listings {
		record, err := o.normalizer.ExportRecord(l)
		if err != nil {
			o.logger.Printf("Could not export %s: %v", identity.DedupeKey(l), err)
			stats.FailedExtractions++
			continue
		}
		if err := o.dataset.Push(record); err != nil {
			o.logger.Printf("Could not push %s: %v", identity.DedupeKey(l), err)
			stats.FailedExtractions++
			continue
		}
		if o.pg != nil {
			if err := o.pg.UpsertListing(ctx, l, record); err != nil {
				o.logger.Printf("Postgres upsert failed for %s: %v", identity.DedupeKey(l), err)
			}
		}
		saved = append(saved, l)
	}
	return saved
}

// sortByDateDesc orders listings newest first. The sort time is the posted
// date when parseable, otherwise the extraction timestamp, otherwise now.
func sortByDateDesc(listings []*models.PropertyListing, now time.Time) {
	sort.SliceStable(listings, func(i, j int) bool {
		return listingSortTime(listings[i], now).After(listingSortTime(listings[j], now))
	})
}

func listingSortTime(l *models.PropertyListing, now time.Time) time.Time {
	if l.PostedDate != nil {
		if t, ok := parse.DateTime(*l.PostedDate); ok {
			return t
		}
	}
	if l.ExtractedDate != "" {
		if t, err := time.Parse(time.RFC3339, l.ExtractedDate); err == nil {
			return t
		}
	}
	return now
}

// PortalFromURL detects which portal a search URL belongs to and rejects
// anything that is not an http(s) URL on a supported host.
func PortalFromURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case strings.Contains(host, "immobilienscout24."):
		return models.PortalImmoScout24, nil
	case strings.Contains(host, "immowelt."):
		return models.PortalImmowelt, nil
	case strings.Contains(host, "immonet."):
		return "", fmt.Errorf("immonet.de is recognized but not supported")
	default:
		return "", fmt.Errorf("unsupported portal host %q", host)
	}
}
