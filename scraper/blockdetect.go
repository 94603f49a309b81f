package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var blockPhrases = []string{
	"captcha",
	"blocked",
	"robot",
	"zugriff verweigert",
	"access denied",
	"forbidden",
	"cloudflare",
	"bitte bestätigen sie",
	"sicherheitsüberprüfung",
	"are you a human",
	"request unsuccessful",
}

var blockURLFragments = []string{
	"/captcha",
	"geoblocking",
	"distil_r_blocked",
	"challenge-platform",
}

// BlockReason describes why a page was classified as blocked. Empty means
// the page looks legitimate.
type BlockReason string

// DetectBlock classifies a fetched page as a bot-wall. It checks the final
// URL, the title and body text for known phrases, and falls back to a
// short-content heuristic for near-empty interstitials.
func DetectBlock(finalURL, html string) BlockReason {
	lowerURL := strings.ToLower(finalURL)
	for _, frag := range blockURLFragments {
		if strings.Contains(lowerURL, frag) {
			return BlockReason("url contains " + frag)
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		// Unparseable content from a portal that serves HTML is itself
		// suspicious, but without text to inspect we let it pass and
		// fail later at extraction.
		return ""
	}

	title := strings.ToLower(doc.Find("title").Text())
	for _, phrase := range blockPhrases {
		if strings.Contains(title, phrase) {
			return BlockReason("title contains " + phrase)
		}
	}

	body := strings.ToLower(doc.Find("body").Text())
	bodyTrimmed := strings.TrimSpace(body)
	if len(bodyTrimmed) < 200 {
		for _, phrase := range blockPhrases {
			if strings.Contains(bodyTrimmed, phrase) {
				return BlockReason("short body contains " + phrase)
			}
		}
		// A near-empty body with no real markup is an interstitial.
		if doc.Find("a, div[class], section").Length() == 0 && len(bodyTrimmed) > 0 {
			return BlockReason("short body without markup")
		}
	}

	return ""
}
