// Package feed normalises RSS 0.9-2.0, Atom 0.3/1.0 and JSON Feed documents
// into the canonical entity.Feed/entity.Item shape, parsing through
// github.com/mmcdole/gofeed — the teacher's own dependency for this exact
// concern (internal/infra/scraper/rss.go) — rather than hand-rolling the
// format grammar against encoding/xml.
package feed

import (
	"bytes"
	"errors"

	"github.com/mmcdole/gofeed"

	"rssbot/internal/domain/entity"
)

// Parse detects the document format and produces a canonical feed plus its
// items. requestURL is also the source of the link's subscription identity
// and the host used to resolve relative item/home links.
func Parse(data []byte, requestURL string) (*entity.Feed, []entity.Item, error) {
	gf, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		// A document with no recognisable feed element at all is the
		// "unexpected EOF" case; everything else is a malformed feed.
		if errors.Is(err, gofeed.ErrFeedTypeNotDetected) {
			return nil, nil, newEOFErr()
		}
		return nil, nil, newParseErr(err)
	}
	if gf.Title == "" && gf.Link == "" && gf.FeedLink == "" && len(gf.Items) == 0 {
		return nil, nil, newEOFErr()
	}

	// gofeed's translators already resolve the RSS/Atom link polymorphism
	// §4.1 describes: Link is the rel="alternate" (or text-content RSS)
	// link, FeedLink is the rel="self" link; rel="hub" is recognised by
	// gofeed's Atom parser but surfaces in neither field, so it is dropped
	// here exactly as the spec says to drop it.
	f := &entity.Feed{
		Title:     gf.Title,
		HomeLink:  gf.Link,
		SourceURL: gf.FeedLink,
	}
	if gf.FeedType != "json" {
		f.TTL = resolveTTL(data)
	}

	items := make([]entity.Item, 0, len(gf.Items))
	for _, it := range gf.Items {
		items = append(items, entity.Item{Title: it.Title, Link: it.Link, ID: it.GUID})
	}

	items = canonicalize(f, items, requestURL)
	f.Link = requestURL
	return f, items, nil
}
