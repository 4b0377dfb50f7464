// Package botfilter classifies inbound clicks as legitimate or filtered
// before they are persisted. The classifier is deterministic and stateless:
// fixed signature lists, case-insensitive matching, no feedback loop.
package botfilter

import (
	"strings"
)

// Reason codes recorded on filtered clicks.
const (
	ReasonBotUserAgent    = "bot_user_agent"
	ReasonSpamReferrer    = "spam_referrer"
	ReasonBotHostname     = "bot_hostname"
	ReasonHeadlessBrowser = "headless_browser"
)

var botUserAgents = []string{
	"bot",
	"crawler",
	"spider",
	"curl",
	"wget",
	"python-requests",
	"headless",
	"phantom",
	"selenium",
	"puppeteer",
	"playwright",
}

var spamReferrerDomains = []string{
	"semalt.com",
	"buttons-for-website.com",
	"best-seo-offer.com",
	"darodar.com",
	"7makemoneyonline.com",
	"traffic2cash.xyz",
}

var crawlerHostSuffixes = []string{
	".googlebot.com",
	".search.msn.com",
	".crawl.yahoo.net",
	".crawl.baidu.com",
	".yandex.ru",
	".yandex.net",
	".ahrefs.com",
	".semrush.com",
}

// Signals is the request metadata the classifier inspects. WebDriver,
// NoLanguages and NoPlugins are headless-browser indicators reported by the
// tracking snippet.
type Signals struct {
	UserAgent   string
	Referrer    string
	Hostname    string
	WebDriver   bool
	NoLanguages bool
	NoPlugins   bool
}

// Result of a classification. Reason holds every rule that fired, joined
// for audit.
type Result struct {
	Filtered bool
	Reason   string
}

// Classify runs every rule over the signals and accumulates the reasons
// that fired. An empty user agent is not itself suspicious.
func Classify(s Signals) Result {
	var reasons []string

	ua := strings.ToLower(s.UserAgent)
	if ua != "" {
		for _, sig := range botUserAgents {
			if strings.Contains(ua, sig) {
				reasons = append(reasons, ReasonBotUserAgent)
				break
			}
		}
	}

	ref := strings.ToLower(s.Referrer)
	if ref != "" {
		for _, domain := range spamReferrerDomains {
			if strings.Contains(ref, domain) {
				reasons = append(reasons, ReasonSpamReferrer)
				break
			}
		}
	}

	host := strings.ToLower(s.Hostname)
	if host != "" {
		for _, suffix := range crawlerHostSuffixes {
			if strings.HasSuffix(host, suffix) {
				reasons = append(reasons, ReasonBotHostname)
				break
			}
		}
	}

	if countHeadlessIndicators(s) >= 2 {
		reasons = append(reasons, ReasonHeadlessBrowser)
	}

	if len(reasons) == 0 {
		return Result{}
	}
	return Result{Filtered: true, Reason: strings.Join(reasons, ",")}
}

// countHeadlessIndicators counts independent headless-browser signals. A
// single indicator alone is not enough to filter.
func countHeadlessIndicators(s Signals) int {
	count := 0
	ua := strings.ToLower(s.UserAgent)
	if strings.Contains(ua, "headless") {
		count++
	}
	if s.WebDriver {
		count++
	}
	if s.NoLanguages {
		count++
	}
	if s.NoPlugins {
		count++
	}
	return count
}
