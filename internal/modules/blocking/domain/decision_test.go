package domain_test

import (
	"net/url"
	"testing"

	"prostop/internal/modules/blocking/domain"
)

func TestBlockedPageURLCarriesContext(t *testing.T) {
	t.Parallel()
	raw := domain.BlockedPageURL("news.example.com", 3600, 60, "https://news.example.com/article?id=1")
	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if parsed.Path != domain.BlockedPagePath {
		t.Fatalf("path = %q", parsed.Path)
	}
	q := parsed.Query()
	if q.Get("domain") != "news.example.com" {
		t.Fatalf("domain = %q", q.Get("domain"))
	}
	if q.Get("timeSpent") != "3600" || q.Get("timeLimit") != "60" {
		t.Fatalf("usage context = %q / %q", q.Get("timeSpent"), q.Get("timeLimit"))
	}
	if q.Get("originalUrl") != "https://news.example.com/article?id=1" {
		t.Fatalf("originalUrl = %q", q.Get("originalUrl"))
	}
}

func TestBlockedPageURLOmitsEmptyOriginal(t *testing.T) {
	t.Parallel()
	raw := domain.BlockedPageURL("news.example.com", 10, 1, "")
	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := parsed.Query()["originalUrl"]; ok {
		t.Fatalf("empty original URL must be omitted")
	}
}
