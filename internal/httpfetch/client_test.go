package httpfetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(maxFeedSize int64) *Client {
	return New(Config{
		BotUsername: "testbot",
		PkgName:     "rssbot",
		PkgVersion:  "test",
		MaxFeedSize: maxFeedSize,
	})
}

func TestPullFeed_RSS(t *testing.T) {
	const rss = `<?xml version="1.0"?>
<rss version="2.0"><channel>
<title>Example Feed</title>
<link>https://example.com/</link>
<item><title>Item One</title><link>https://example.com/1</link><guid>1</guid></item>
</channel></rss>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("expected a User-Agent header")
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rss))
	}))
	defer srv.Close()

	c := newTestClient(0)
	f, items, err := c.PullFeed(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Title != "Example Feed" {
		t.Errorf("expected title %q, got %q", "Example Feed", f.Title)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
}

func TestPullFeed_TooLarge(t *testing.T) {
	body := strings.Repeat("a", 200)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	c := newTestClient(100)
	_, _, err := c.PullFeed(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected an error")
	}
	var ferr *Error
	if !asHTTPFetchError(err, &ferr) {
		t.Fatalf("expected *httpfetch.Error, got %T: %v", err, err)
	}
	if ferr.Kind != KindTooLarge {
		t.Errorf("expected KindTooLarge, got %v", ferr.Kind)
	}
}

func TestPullFeed_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := newTestClient(0)
	_, _, err := c.PullFeed(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestPullFeed_MalformedXML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<rss><channel><title>broken"))
	}))
	defer srv.Close()

	c := newTestClient(0)
	_, _, err := c.PullFeed(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected a parse error")
	}
	var ferr *Error
	if !asHTTPFetchError(err, &ferr) {
		t.Fatalf("expected *httpfetch.Error, got %T: %v", err, err)
	}
	if ferr.Kind != KindParse {
		t.Errorf("expected KindParse, got %v", ferr.Kind)
	}
}

func asHTTPFetchError(err error, target **Error) bool {
	if fe, ok := err.(*Error); ok {
		*target = fe
		return true
	}
	return false
}
