package feed

import (
	"regexp"
	"strings"

	"rssbot/internal/domain/entity"
)

var hostPattern = regexp.MustCompile(`^(https?://[^/]+)`)

// canonicalize applies §4.1's link canonicalisation: derive rss_host from
// the request URL, default an empty/"/" home link to it, and rewrite
// scheme-relative and root-relative links (both on the feed and every item)
// to absolute URLs.
func canonicalize(f *entity.Feed, items []entity.Item, requestURL string) []entity.Item {
	host := requestURL
	if m := hostPattern.FindString(requestURL); m != "" {
		host = m
	}

	switch f.HomeLink {
	case "", "/":
		f.HomeLink = host
	default:
		f.HomeLink = absolutize(f.HomeLink, host)
	}
	if f.SourceURL != "" {
		f.SourceURL = absolutize(f.SourceURL, host)
	}

	out := make([]entity.Item, len(items))
	for i, it := range items {
		if it.Link != "" {
			it.Link = absolutize(it.Link, host)
		}
		out[i] = it
	}
	return out
}

func absolutize(link, host string) string {
	switch {
	case strings.HasPrefix(link, "//"):
		return "http:" + link
	case strings.HasPrefix(link, "/"):
		return host + link
	default:
		return link
	}
}
