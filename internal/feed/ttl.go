package feed

import (
	"bytes"
	"encoding/xml"
	"io"
	"strconv"
	"strings"
)

const (
	nsRDF = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	nsSy  = "http://purl.org/rss/1.0/modules/syndication/"
)

// resolveTTL supplements gofeed's output with the one piece of §4.1's
// normalisation gofeed's public Feed type does not expose: the RSS <ttl>
// element and the syndication module's updatePeriod/updateFrequency pair.
// It does a lightweight second pass over the same bytes gofeed already
// validated as a well-formed feed, so any decoding trouble here is treated
// as "no hint found" rather than an error — the primary parse already
// succeeded.
func resolveTTL(data []byte) *int {
	explicit, period, freq := scanTTLHints(data)
	if explicit != nil {
		return explicit
	}
	return deriveTTL(period, freq)
}

// scanTTLHints walks every element in the document (irrespective of
// nesting) looking for ttl, sy:updatePeriod and sy:updateFrequency text
// content — the same tags §4.1 names, read the same tolerant way
// (CDATA/entity-unescaped text, undeclared "sy" prefixes accepted).
func scanTTLHints(data []byte) (explicit *int, period string, freq int) {
	freq = 1
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false

	for {
		tok, err := dec.Token()
		if err != nil {
			return explicit, period, freq
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch tag(se.Name) {
		case "ttl":
			if text, ok := elementText(dec, se.Name); ok {
				if v, err := strconv.Atoi(strings.TrimSpace(text)); err == nil {
					explicit = &v
				}
			}
		case "sy:updatePeriod":
			if text, ok := elementText(dec, se.Name); ok {
				period = strings.TrimSpace(text)
			}
		case "sy:updateFrequency":
			if text, ok := elementText(dec, se.Name); ok {
				if v, err := strconv.Atoi(strings.TrimSpace(text)); err == nil && v > 0 {
					freq = v
				}
			}
		}
	}
}

// deriveTTL implements §4.1's sy:updatePeriod/sy:updateFrequency
// derivation: ttl = period_minutes / freq, freq defaulting to 1.
func deriveTTL(period string, freq int) *int {
	if period == "" {
		return nil
	}
	var periodMinutes int
	switch strings.ToLower(period) {
	case "hourly":
		periodMinutes = 60
	case "daily":
		periodMinutes = 24 * 60
	case "weekly":
		periodMinutes = 7 * 24 * 60
	case "monthly":
		periodMinutes = 30 * 24 * 60
	case "yearly":
		periodMinutes = 365 * 24 * 60
	default:
		return nil
	}
	if freq <= 0 {
		freq = 1
	}
	derived := periodMinutes / freq
	return &derived
}

// tag collapses a namespaced xml.Name into the bare "sy:local" form the
// switch above matches, the same tolerant collapsing the rest of the feed
// package used to need in full for its own grammar.
func tag(name xml.Name) string {
	switch name.Space {
	case "", nsRDF:
		return name.Local
	case nsSy:
		return "sy:" + name.Local
	default:
		if !strings.Contains(name.Space, "://") {
			return name.Space + ":" + name.Local
		}
		return name.Local
	}
}

// elementText reads char data until name's matching end tag, skipping any
// unexpected children so a malformed or surprising document never wedges
// this best-effort scan.
func elementText(dec *xml.Decoder, name xml.Name) (string, bool) {
	var text string
	depth := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return "", false
		}
		if err != nil {
			return "", false
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				if err := dec.Skip(); err != nil {
					return "", false
				}
				continue
			}
			depth++
		case xml.EndElement:
			if depth == 0 && t.Name.Local == name.Local && t.Name.Space == name.Space {
				return text, true
			}
			depth--
		case xml.CharData:
			text += string(t)
		}
	}
}
