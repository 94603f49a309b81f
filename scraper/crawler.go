// Package scraper drives the portal crawlers. Each portal implements
// PortalCrawler; the shared browser session, retry policy, block
// detection and result-shape normalization live here so the portal
// files only contain portal specifics.
package scraper

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"immopipe/config"
	"immopipe/models"
)

// PortalCrawler is the lifecycle every portal follows: initialize once,
// scrape any number of search URLs or builders, close once.
type PortalCrawler interface {
	Portal() string
	Initialize(ctx context.Context) error
	BuildSearchURL(b *models.SearchBuilder, locationCode string) string
	ScrapeSearchURL(ctx context.Context, url string, maxResults int) ([]*models.PropertyListing, error)
	ScrapeSearchBuilder(ctx context.Context, b *models.SearchBuilder, locationCode string, maxResults int) ([]*models.PropertyListing, error)
	Close()
}

// browserSession owns the playwright process and browser context shared by
// a crawler's pages. Initialize and Close are idempotent.
type browserSession struct {
	mu          sync.Mutex
	pw          *playwright.Playwright
	browser     playwright.Browser
	context     playwright.BrowserContext
	headless    bool
	logger      *log.Logger
	initialized bool
}

func newBrowserSession(headless bool, logger *log.Logger) *browserSession {
	if logger == nil {
		logger = log.Default()
	}
	return &browserSession{headless: headless, logger: logger}
}

func (s *browserSession) ensureBrowser() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return nil
	}

	var err error
	s.pw, err = playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	s.browser, err = s.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(s.headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		s.pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	s.context, err = s.browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
		Locale:    playwright.String("de-DE"),
	})
	if err != nil {
		s.browser.Close()
		s.pw.Stop()
		return fmt.Errorf("failed to create browser context: %w", err)
	}

	s.initialized = true
	return nil
}

func (s *browserSession) newPage() (playwright.Page, error) {
	if err := s.ensureBrowser(); err != nil {
		return nil, err
	}
	page, err := s.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	return page, nil
}

func (s *browserSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.context != nil {
		s.context.Close()
		s.context = nil
	}
	if s.browser != nil {
		s.browser.Close()
		s.browser = nil
	}
	if s.pw != nil {
		s.pw.Stop()
		s.pw = nil
	}
	s.initialized = false
}

// handleConsent clicks through the cookie/consent overlays both portals
// show on first navigation. Best effort; a missed banner just means some
// selectors find nothing later.
func handleConsent(page playwright.Page, logger *log.Logger) {
	consentSelectors := []string{
		"#usercentrics-root button[data-testid='uc-accept-all-button']",
		"button:has-text('Alle akzeptieren')",
		"button:has-text('Akzeptieren')",
		"button:has-text('Zustimmen')",
		"#didomi-notice-agree-button",
		"button[id*='accept']",
		"button:has-text('Accept All')",
		"button:has-text('OK')",
	}

	for _, selector := range consentSelectors {
		btn := page.Locator(selector).First()
		if visible, _ := btn.IsVisible(); visible {
			logger.Printf("Clicking consent button: %s", selector)
			btn.Click()
			page.WaitForTimeout(1500)
			return
		}
	}
}

// humanDelay sleeps a random duration within the portal's configured
// pacing window.
func humanDelay(cfg *config.PortalConfig) {
	delay := cfg.MinDelayMs + rand.Intn(cfg.MaxDelayMs-cfg.MinDelayMs)
	time.Sleep(time.Duration(delay) * time.Millisecond)
}

// retryBackoff is the wait before retry attempt n (0-based): 5s doubling
// per attempt, capped at 30s.
func retryBackoff(attempt int) time.Duration {
	d := 5 * time.Second << uint(attempt)
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}

// withRetry runs fn up to attempts times, sleeping the backoff between
// failures. The context cancels the wait, not a running attempt.
func withRetry(ctx context.Context, attempts int, logger *log.Logger, what string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			wait := retryBackoff(attempt - 1)
			logger.Printf("Retrying %s in %s (attempt %d/%d)", what, wait, attempt+1, attempts)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		logger.Printf("%s failed: %v", what, lastErr)
	}
	return fmt.Errorf("%s failed after %d attempts: %w", what, attempts, lastErr)
}

// textOf reads the trimmed inner text behind a comma-separated selector
// list, returning the first non-empty match.
func textOf(page playwright.Page, selectors string) string {
	loc := page.Locator(selectors).First()
	if count, err := loc.Count(); err != nil || count == 0 {
		return ""
	}
	text, err := loc.InnerText(playwright.LocatorInnerTextOptions{Timeout: playwright.Float(2000)})
	if err != nil {
		return ""
	}
	return text
}
