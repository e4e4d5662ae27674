package opml

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"rssbot/internal/domain/entity"
)

func TestFormatMatchesOPML2Shape(t *testing.T) {
	now := time.Date(2017, time.November, 2, 18, 8, 24, 0, time.UTC)
	feeds := []*entity.Feed{
		{Title: "title1", Link: "link1"},
		{Title: "title2", Link: "link2"},
	}

	got := string(Format(feeds, now))

	want := `<?xml version="1.0" encoding="UTF-8"?>` +
		`<opml version="2.0">` +
		`<head>` +
		`<title>Exported from RSSBot</title>` +
		`<dateCreated>Thu, 02 Nov 2017 18:08:24 UTC</dateCreated>` +
		`<docs>http://www.opml.org/spec2</docs>` +
		`</head>` +
		`<body>` +
		`<outline type="rss" text="title1" xmlUrl="link1"/>` +
		`<outline type="rss" text="title2" xmlUrl="link2"/>` +
		`</body>` +
		`</opml>`

	assert.Equal(t, want, got)
}

func TestFormatEscapesAttributeValues(t *testing.T) {
	feeds := []*entity.Feed{{Title: `A & B "quoted"`, Link: "http://x/a?b=1&c=2"}}

	got := string(Format(feeds, time.Now()))

	assert.Contains(t, got, `text="A &amp; B &quot;quoted&quot;"`)
	assert.Contains(t, got, `xmlUrl="http://x/a?b=1&amp;c=2"`)
}

func TestFormatEmptyFeedsStillValidShell(t *testing.T) {
	got := string(Format(nil, time.Now()))
	assert.Contains(t, got, "<body></body>")
}
