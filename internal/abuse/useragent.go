package abuse

import (
	"strings"

	"github.com/mssola/useragent"
)

// Anything shorter than this cannot plausibly be a real browser UA.
const minPlausibleUALength = 10

var botSignatures = []string{
	"bot",
	"crawler",
	"spider",
	"scraper",
	"curl",
	"wget",
	"python-requests",
	"python-urllib",
	"go-http-client",
	"java/",
	"libwww",
	"headless",
	"phantomjs",
	"selenium",
}

// suspiciousUserAgent reports whether a user agent string looks automated.
// Empty or implausibly short strings count as suspicious; a real browser
// always sends a full product string.
func suspiciousUserAgent(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) < minPlausibleUALength {
		return true
	}

	lowered := strings.ToLower(trimmed)
	for _, sig := range botSignatures {
		if strings.Contains(lowered, sig) {
			return true
		}
	}

	return useragent.New(trimmed).Bot()
}
