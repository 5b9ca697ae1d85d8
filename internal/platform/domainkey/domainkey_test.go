package domainkey_test

import (
	"errors"
	"testing"

	"prostop/internal/platform/domainkey"
	apperrors "prostop/internal/platform/errors"
)

func TestExtract(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		url  string
		want string
	}{
		{"plain host", "https://example.com/path?q=1", "example.com"},
		{"www stripped", "https://www.example.com", "example.com"},
		{"subdomain kept", "https://mail.google.com/inbox", "mail.google.com"},
		{"port ignored", "http://localhost:8080/app", "localhost"},
		{"upper case host", "https://EXAMPLE.COM", "example.com"},
		{"chrome page", "chrome://settings/privacy", "chrome://settings"},
		{"extension page", "chrome-extension://abcdef123/popup.html", "chrome-extension://abcdef123"},
		{"brave page", "brave://rewards", "brave://rewards"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := domainkey.Extract(tc.url)
			if err != nil {
				t.Fatalf("extract %q: %v", tc.url, err)
			}
			if got != tc.want {
				t.Fatalf("extract %q = %q, want %q", tc.url, got, tc.want)
			}
		})
	}
}

func TestExtractNotTrackable(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "   ", "not a url", "https://", "www.", "/relative/path"} {
		if _, err := domainkey.Extract(raw); !errors.Is(err, apperrors.ErrNotTrackable) {
			t.Fatalf("extract %q: expected ErrNotTrackable, got %v", raw, err)
		}
	}
}

func TestExtractIsIdempotent(t *testing.T) {
	t.Parallel()
	first, err := domainkey.Extract("https://www.example.com/a")
	if err != nil {
		t.Fatalf("first extract: %v", err)
	}
	second, err := domainkey.Extract("https://" + first)
	if err != nil {
		t.Fatalf("second extract: %v", err)
	}
	if first != second {
		t.Fatalf("expected idempotent extraction, got %q then %q", first, second)
	}
}

func TestIsInternal(t *testing.T) {
	t.Parallel()
	if !domainkey.IsInternal("chrome://settings") {
		t.Fatalf("chrome://settings must classify as internal")
	}
	if !domainkey.IsInternal("chrome-extension://abcdef123") {
		t.Fatalf("extension pages must classify as internal")
	}
	if domainkey.IsInternal("example.com") {
		t.Fatalf("plain hostnames are not internal")
	}
	if domainkey.IsInternal("https://example.com") {
		t.Fatalf("https keys are not internal")
	}
}
