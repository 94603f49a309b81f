package scraper

import "testing"

func TestDetectBlock(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		html    string
		blocked bool
	}{
		{
			name:    "captcha title",
			url:     "https://www.immowelt.de/expose/abc",
			html:    "<html><head><title>Captcha erforderlich</title></head><body><div class=\"c\">Bitte lösen</div></body></html>",
			blocked: true,
		},
		{
			name:    "access denied title",
			url:     "https://www.immobilienscout24.de/expose/1",
			html:    "<html><head><title>Zugriff verweigert</title></head><body></body></html>",
			blocked: true,
		},
		{
			name:    "block fragment in url",
			url:     "https://www.immowelt.de/captcha?return=/expose/abc",
			html:    "<html><head><title>Immowelt</title></head><body>ok</body></html>",
			blocked: true,
		},
		{
			name:    "short body with block phrase",
			url:     "https://www.immowelt.de/expose/abc",
			html:    "<html><head><title>Immowelt</title></head><body>Request unsuccessful.</body></html>",
			blocked: true,
		},
		{
			name:    "normal listing page",
			url:     "https://www.immowelt.de/expose/abc",
			html:    "<html><head><title>3-Zimmer-Wohnung in Berlin</title></head><body><div class=\"hardfacts\"><a href=\"/expose/abc\">Wohnung 67.73 m² 1117.55 € zur Miete</a></div></body></html>",
			blocked: false,
		},
		{
			name:    "long body mentioning robots legitimately",
			url:     "https://www.immobilienscout24.de/expose/1",
			html:    "<html><head><title>Wohnung mieten</title></head><body><div class=\"x\">" + longFiller() + "</div></body></html>",
			blocked: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason := DetectBlock(tt.url, tt.html)
			if (reason != "") != tt.blocked {
				t.Errorf("DetectBlock(%s) = %q; want blocked=%v", tt.name, reason, tt.blocked)
			}
		})
	}
}

func longFiller() string {
	s := "Diese helle Wohnung liegt zentral und ist gut angebunden. "
	out := ""
	for len(out) < 400 {
		out += s
	}
	return out + " Saugroboter inklusive."
}
