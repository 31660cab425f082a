package urlutil

import (
	"net/url"
	"testing"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "trailing slash removed",
			input:    "https://docs.example.com/guide/",
			expected: "https://docs.example.com/guide",
		},
		{
			name:     "no trailing slash stays same",
			input:    "https://docs.example.com/guide",
			expected: "https://docs.example.com/guide",
		},
		{
			name:     "fragment removed",
			input:    "https://docs.example.com/guide#index",
			expected: "https://docs.example.com/guide",
		},
		{
			name:     "tracking query parameter removed",
			input:    "https://docs.example.com/guide?utm_source=twitter",
			expected: "https://docs.example.com/guide",
		},
		{
			name:     "non-tracking query parameter preserved",
			input:    "https://docs.example.com/guide?q=golang",
			expected: "https://docs.example.com/guide?q=golang",
		},
		{
			name:     "tracking params stripped, others kept and sorted",
			input:    "https://docs.example.com/guide?utm_source=nl&b=2&a=1",
			expected: "https://docs.example.com/guide?a=1&b=2",
		},
		{
			name:     "both fragment and tracking query removed",
			input:    "https://docs.example.com/guide?utm_source=twitter#index",
			expected: "https://docs.example.com/guide",
		},
		{
			name:     "scheme lowercased",
			input:    "HTTPS://docs.example.com/guide",
			expected: "https://docs.example.com/guide",
		},
		{
			name:     "host lowercased",
			input:    "https://DOCS.EXAMPLE.COM/guide",
			expected: "https://docs.example.com/guide",
		},
		{
			name:     "www stripped",
			input:    "https://www.example.com/guide",
			expected: "https://example.com/guide",
		},
		{
			name:     "scheme and host lowercased, path case preserved",
			input:    "HTTPS://DOCS.EXAMPLE.COM/GUIDE",
			expected: "https://docs.example.com/GUIDE",
		},
		{
			name:     "default http port removed",
			input:    "http://docs.example.com:80/guide",
			expected: "http://docs.example.com/guide",
		},
		{
			name:     "default https port removed",
			input:    "https://docs.example.com:443/guide",
			expected: "https://docs.example.com/guide",
		},
		{
			name:     "non-default port preserved",
			input:    "https://docs.example.com:8080/guide",
			expected: "https://docs.example.com:8080/guide",
		},
		{
			name:     "multiple trailing slashes removed",
			input:    "https://docs.example.com/guide///",
			expected: "https://docs.example.com/guide",
		},
		{
			name:     "collapsed internal slashes",
			input:    "https://docs.example.com/a//b/",
			expected: "https://docs.example.com/a/b",
		},
		{
			name:     "root path preserved",
			input:    "https://docs.example.com/",
			expected: "https://docs.example.com/",
		},
		{
			name:     "root path without slash",
			input:    "https://docs.example.com",
			expected: "https://docs.example.com",
		},
		{
			name:     "spec e2e scenario: www, port, case, tracking param, sort",
			input:    "https://WWW.Example.com:443/a//b/?utm_source=nl&b=2&a=1#frag",
			expected: "https://example.com/a/b?a=1&b=2",
		},
		{
			name:     "empty query removed",
			input:    "https://docs.example.com/guide?",
			expected: "https://docs.example.com/guide",
		},
		{
			name:     "empty fragment removed",
			input:    "https://docs.example.com/guide#",
			expected: "https://docs.example.com/guide",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inputURL, err := url.Parse(tt.input)
			if err != nil {
				t.Fatalf("failed to parse input URL %q: %v", tt.input, err)
			}

			result := Canonicalize(*inputURL)
			resultStr := result.String()

			if resultStr != tt.expected {
				t.Errorf("Canonicalize(%q) = %q, want %q", tt.input, resultStr, tt.expected)
			}
		})
	}
}

func TestCanonicalizeIdempotent(t *testing.T) {
	testURLs := []string{
		"https://docs.example.com/guide/",
		"https://docs.example.com/guide?utm_source=twitter",
		"https://docs.example.com/guide?q=golang&utm_campaign=x",
		"https://docs.example.com/guide#index",
		"HTTPS://DOCS.EXAMPLE.COM:443/GUIDE/?#",
		"http://example.com:80/path///",
		"https://WWW.Example.com:443/a//b/?utm_source=nl&b=2&a=1#frag",
	}

	for _, urlStr := range testURLs {
		t.Run(urlStr, func(t *testing.T) {
			inputURL, err := url.Parse(urlStr)
			if err != nil {
				t.Fatalf("failed to parse URL %q: %v", urlStr, err)
			}

			first := Canonicalize(*inputURL)
			second := Canonicalize(first)

			firstStr := first.String()
			secondStr := second.String()

			if firstStr != secondStr {
				t.Errorf("Canonicalize is not idempotent: first=%q, second=%q", firstStr, secondStr)
			}
		})
	}
}

func TestCanonicalizeStripsAllTrackingParams(t *testing.T) {
	base := "https://docs.example.com/guide"
	trackingSamples := []string{
		"utm_source", "utm_medium", "utm_campaign", "fbclid", "gclid", "msclkid",
		"mc_cid", "mc_eid", "li_fat_id", "twclid", "ref", "referrer", "source",
		"campaign", "medium", "affiliate", "session_id", "sid", "ts", "uid", "cid",
	}
	want, _ := url.Parse(base)
	wantStr := Canonicalize(*want).String()

	for _, p := range trackingSamples {
		t.Run(p, func(t *testing.T) {
			u, err := url.Parse(base + "?" + p + "=x")
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			got := Canonicalize(*u).String()
			if got != wantStr {
				t.Errorf("Canonicalize with tracking param %q = %q, want %q", p, got, wantStr)
			}
		})
	}
}

func TestCanonicalizeDoesNotMutateInput(t *testing.T) {
	input, _ := url.Parse("https://example.com/path/?query=1#frag")
	original := *input

	_ = Canonicalize(*input)

	if input.String() != original.String() {
		t.Error("Canonicalize mutated the input URL")
	}
}

func TestHashStableAcrossEquivalentURLs(t *testing.T) {
	a, _ := url.Parse("https://WWW.Example.com:443/a//b/?utm_source=nl&b=2&a=1#frag")
	b, _ := url.Parse("https://example.com/a/b?a=1&b=2")

	if Hash(*a) != Hash(*b) {
		t.Errorf("Hash should be stable across canonically-equivalent URLs: %q != %q", Hash(*a), Hash(*b))
	}
}

func TestFilterByHost(t *testing.T) {
	a, _ := url.Parse("https://example.com/a")
	b, _ := url.Parse("https://www.example.com/b")
	c, _ := url.Parse("https://other.test/c")

	filtered := FilterByHost("example.com", []url.URL{*a, *b, *c})
	if len(filtered) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(filtered))
	}
}

func TestIsTrackingParameter(t *testing.T) {
	tests := []struct {
		param string
		want  bool
	}{
		{"utm_source", true},
		{"UTM_CAMPAIGN", true},
		{"fbclid", true},
		{"q", false},
		{"page", false},
	}
	for _, tt := range tests {
		if got := IsTrackingParameter(tt.param); got != tt.want {
			t.Errorf("IsTrackingParameter(%q) = %v, want %v", tt.param, got, tt.want)
		}
	}
}

func TestLowerASCII(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello", "hello"},
		{"HELLO", "hello"},
		{"hello", "hello"},
		{"HTTPS", "https"},
		{"MixedCASE", "mixedcase"},
		{"already-lower", "already-lower"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := lowerASCII(tt.input)
			if result != tt.expected {
				t.Errorf("lowerASCII(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestStripTrailingSlash(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"/path/", "/path"},
		{"/path//", "/path"},
		{"/path///", "/path"},
		{"/path", "/path"},
		{"/", "/"},
		{"///", "/"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := stripTrailingSlash(tt.input)
			if result != tt.expected {
				t.Errorf("stripTrailingSlash(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
