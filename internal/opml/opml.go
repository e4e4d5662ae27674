// Package opml formats the subscriber's tracked feeds as an OPML 2.0
// document for the `/export` command (§6), grounded on opml.rs's
// hand-rolled writer — encoding/xml's Encoder renders matched start/end
// tags rather than the self-closing <outline .../> form OPML readers
// expect, so this builds the document directly as a string.
package opml

import (
	"fmt"
	"strings"
	"time"

	"rssbot/internal/domain/entity"
)

var attrEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

func escapeAttr(s string) string {
	return attrEscaper.Replace(s)
}

// Format renders feeds as an OPML 2.0 document, one <outline> per feed in
// the order given.
func Format(feeds []*entity.Feed, now time.Time) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString(`<opml version="2.0">`)
	b.WriteString(`<head>`)
	b.WriteString(`<title>Exported from RSSBot</title>`)
	fmt.Fprintf(&b, `<dateCreated>%s</dateCreated>`, now.Format("Mon, 02 Jan 2006 15:04:05 MST"))
	b.WriteString(`<docs>http://www.opml.org/spec2</docs>`)
	b.WriteString(`</head>`)
	b.WriteString(`<body>`)
	for _, f := range feeds {
		fmt.Fprintf(&b, `<outline type="rss" text="%s" xmlUrl="%s"/>`,
			escapeAttr(f.Title), escapeAttr(f.Link))
	}
	b.WriteString(`</body>`)
	b.WriteString(`</opml>`)
	return []byte(b.String())
}
