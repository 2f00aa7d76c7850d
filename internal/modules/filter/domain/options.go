package domain

import (
	"net/url"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Verdict is the outcome of evaluating a play signal against the options.
type Verdict int

const (
	VerdictReject Verdict = iota
	VerdictAccept
	// VerdictNeedsLanguage means the signal passes every static rule and
	// only the detected language of the title is left to check.
	VerdictNeedsLanguage
)

func (v Verdict) String() string {
	switch v {
	case VerdictAccept:
		return "accept"
	case VerdictNeedsLanguage:
		return "needs_language"
	default:
		return "reject"
	}
}

// Options decide which videos are worth tracking.
type Options struct {
	PrefLangEnabled      bool
	TargetLanguage       string
	DomainsToTrack       map[string]bool
	DomainsToAlwaysTrack []string
	BlacklistedKeywords  []string
}

// NormalizeText applies NFKC and case folding so full-width and
// differently-cased keywords match.
func NormalizeText(s string) string {
	return cases.Fold().String(norm.NFKC.String(strings.TrimSpace(s)))
}

// Evaluate applies the static rules in order: the URL must parse, always-track
// domains accept, the domain must be enabled, and blacklisted keywords reject.
func (o Options) Evaluate(title, rawURL string) (Verdict, string) {
	host, ok := hostOf(rawURL)
	if !ok {
		return VerdictReject, "url has no host"
	}
	for _, d := range o.DomainsToAlwaysTrack {
		if matchesDomain(host, d) {
			return VerdictAccept, "always tracked domain " + normalizeDomain(d)
		}
	}
	if !o.domainEnabled(host) {
		return VerdictReject, "domain not tracked: " + host
	}
	normalizedTitle := NormalizeText(title)
	for _, keyword := range o.BlacklistedKeywords {
		k := NormalizeText(keyword)
		if k != "" && strings.Contains(normalizedTitle, k) {
			return VerdictReject, "blacklisted keyword: " + keyword
		}
	}
	if o.PrefLangEnabled && strings.TrimSpace(title) != "" {
		return VerdictNeedsLanguage, "language check pending"
	}
	return VerdictAccept, "tracked domain " + host
}

// SameLanguage compares base languages, so "ja-JP" matches "ja". Unparseable
// tags never match.
func SameLanguage(detected, target string) bool {
	d, err := language.Parse(detected)
	if err != nil {
		return false
	}
	t, err := language.Parse(target)
	if err != nil {
		return false
	}
	db, _ := d.Base()
	tb, _ := t.Base()
	return db == tb
}

func (o Options) domainEnabled(host string) bool {
	best := ""
	enabled := false
	for d, on := range o.DomainsToTrack {
		nd := normalizeDomain(d)
		if matchesDomain(host, nd) && len(nd) > len(best) {
			best = nd
			enabled = on
		}
	}
	return enabled
}

func hostOf(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Hostname() == "" {
		return "", false
	}
	return strings.ToLower(u.Hostname()), true
}

func matchesDomain(host, domain string) bool {
	d := normalizeDomain(domain)
	if d == "" {
		return false
	}
	return host == d || strings.HasSuffix(host, "."+d)
}

func normalizeDomain(d string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), "www.")
}
