package urlutil

import (
	"net/url"
	"sort"
	"strings"

	"github.com/rohmanhakim/docs-crawler/pkg/hashutil"
)

// Canonicalize applies a deterministic normalization to a URL, producing a canonical form.
// It maps equivalent URL spellings to a single canonical representation.
//
// The normalization follows these rules:
//   - Scheme and host are lowercased
//   - A leading "www." on the host is stripped
//   - Default ports are omitted (e.g., :80 for http, :443 for https)
//   - Path is cleaned (collapsed slashes, trailing slash removed except for root "/")
//   - Fragments are removed
//   - Tracking query parameters are stripped; remaining parameters are stable-sorted by key
//
// Properties:
//   - Pure: no state, no memory
//   - Deterministic: same input always produces same output
//   - Idempotent: Canonicalize(Canonicalize(url)) == Canonicalize(url)
//   - Context-free: does not depend on crawl history
func Canonicalize(sourceUrl url.URL) url.URL {
	canonical := sourceUrl

	canonical.Scheme = lowerASCII(canonical.Scheme)
	canonical.Host = lowerASCII(canonical.Host)
	canonical.Host = stripWWW(canonical.Host)
	canonical.Host = stripDefaultPort(canonical.Scheme, canonical.Host)

	canonical.Path = collapseSlashes(canonical.Path)
	if len(canonical.Path) > 1 {
		canonical.Path = stripTrailingSlash(canonical.Path)
	}
	if canonical.Path == "" {
		canonical.Path = ""
	}

	canonical.Fragment = ""
	canonical.RawFragment = ""

	canonical.RawQuery = canonicalQuery(canonical.Query())
	canonical.ForceQuery = false

	return canonical
}

// Host returns the canonical host (lowercased, www-stripped, default-port-stripped).
func Host(sourceUrl url.URL) string {
	return Canonicalize(sourceUrl).Host
}

// Path returns the canonical path.
func Path(sourceUrl url.URL) string {
	return Canonicalize(sourceUrl).Path
}

// Query returns the canonical (tracking-stripped, sorted, re-encoded) query string.
func Query(sourceUrl url.URL) string {
	return Canonicalize(sourceUrl).RawQuery
}

// Hash returns a stable hex digest of the canonical form of sourceUrl, suitable for
// use as a dedup key: the BLAKE3 digest (via pkg/hashutil, so canonicalization and
// content hashing share one primitive) truncated to 64 bits, i.e. 16 hex characters.
func Hash(sourceUrl url.URL) string {
	canonical := Canonicalize(sourceUrl)
	digest, err := hashutil.HashBytes([]byte(canonical.String()), hashutil.HashAlgoBLAKE3)
	if err != nil {
		// HashBytes only errors on an unsupported algorithm constant, which
		// cannot happen here; fall back to the raw string rather than panic.
		return canonical.String()
	}
	return digest[:16]
}

// Resolve resolves a possibly-relative URL against a base scheme/host, returning an
// absolute url.URL. Malformed references resolve to an empty URL.
func Resolve(ref *url.URL, baseScheme, baseHost string) url.URL {
	if ref == nil {
		return url.URL{}
	}
	if ref.IsAbs() {
		return *ref
	}
	base := url.URL{Scheme: baseScheme, Host: baseHost}
	return *base.ResolveReference(ref)
}

// FilterByHost returns the subset of urls whose canonical host matches host.
func FilterByHost(host string, urls []url.URL) []url.URL {
	target := stripWWW(lowerASCII(host))
	filtered := make([]url.URL, 0, len(urls))
	for _, u := range urls {
		if stripWWW(lowerASCII(u.Host)) == target {
			filtered = append(filtered, u)
		}
	}
	return filtered
}

// trackingParamPrefixes are matched as a prefix, case-insensitively.
var trackingParamPrefixes = []string{"utm_"}

// trackingParams is the exact-match (case-insensitive) tracking parameter set.
// Bundled membership must stay stable across systems to keep dedup keys stable;
// sourced from the reference canonicalizer's tracking-parameter list.
var trackingParams = map[string]struct{}{
	"fbclid": {}, "fb_action_ids": {}, "fb_action_types": {}, "fb_source": {}, "fb_ref": {},
	"twclid": {}, "s": {}, "t": {}, "ref_src": {}, "ref_url": {},
	"li_fat_id": {}, "li_source": {}, "li_medium": {}, "li_campaign": {},
	"msclkid": {}, "mc_cid": {}, "mc_eid": {},
	"tag": {}, "linkcode": {}, "camp": {}, "creative": {}, "creativeasin": {},
	"gclid": {}, "gclsrc": {}, "dclid": {}, "wbraid": {}, "gbraid": {},
	"ref": {}, "referrer": {}, "source": {}, "campaign": {}, "medium": {},
	"affiliate": {}, "partner": {}, "click_id": {}, "clickid": {},
	"session_id": {}, "sessionid": {}, "sid": {}, "token": {},
	"tracking_id": {}, "trackingid": {}, "tid": {}, "cid": {},
	"email": {}, "e": {}, "newsletter": {}, "subscriber": {},
	"promo": {}, "promotion": {}, "discount": {}, "coupon": {},
	"variant": {}, "test": {}, "experiment": {}, "ab_test": {},
	"timestamp": {}, "ts": {}, "time": {}, "date": {},
	"user_id": {}, "userid": {}, "uid": {}, "id": {},
	"ip": {}, "ip_address": {}, "ipaddr": {},
	"device": {}, "platform": {}, "os": {}, "browser": {},
	"version": {}, "v": {}, "build": {}, "release": {},
}

// IsTrackingParameter reports whether param (case-insensitive) is a known tracking
// parameter that canonicalization must strip.
func IsTrackingParameter(param string) bool {
	lower := lowerASCII(param)
	for _, prefix := range trackingParamPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	_, ok := trackingParams[lower]
	return ok
}

// canonicalQuery drops tracking parameters, stable-sorts the remaining keys, and
// re-encodes each key and value with RFC-3986 percent-encoding: url.QueryEscape
// leaves only the unreserved set as-is, and its "+" for a space is replaced with
// "%20". The keys are sorted here so the ordering is explicit.
func canonicalQuery(values url.Values) string {
	kept := url.Values{}
	for key, vals := range values {
		if IsTrackingParameter(key) {
			continue
		}
		for _, v := range vals {
			kept.Add(key, v)
		}
	}
	if len(kept) == 0 {
		return ""
	}

	keys := make([]string, 0, len(kept))
	for k := range kept {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		for j, v := range kept[k] {
			if i > 0 || j > 0 {
				b.WriteByte('&')
			}
			b.WriteString(strings.ReplaceAll(url.QueryEscape(k), "+", "%20"))
			b.WriteByte('=')
			b.WriteString(strings.ReplaceAll(url.QueryEscape(v), "+", "%20"))
		}
	}
	return b.String()
}

func stripWWW(host string) string {
	return strings.TrimPrefix(host, "www.")
}

func stripDefaultPort(scheme, host string) string {
	hostname, port, found := strings.Cut(host, ":")
	if !found || port == "" {
		return host
	}
	switch {
	case scheme == "http" && port == "80",
		scheme == "https" && port == "443",
		scheme == "ftp" && port == "21",
		scheme == "ssh" && port == "22":
		return hostname
	default:
		return host
	}
}

// collapseSlashes reduces runs of consecutive "/" to a single "/" and ensures a
// leading "/" whenever the path is non-empty.
func collapseSlashes(path string) string {
	if path == "" {
		return path
	}
	var b strings.Builder
	prevSlash := false
	for i := 0; i < len(path); i++ {
		c := path[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteByte(c)
	}
	collapsed := b.String()
	if !strings.HasPrefix(collapsed, "/") {
		collapsed = "/" + collapsed
	}
	return collapsed
}

// lowerASCII converts ASCII characters to lowercase, allocating only when s
// contains an uppercase letter.
// This is faster than strings.ToLower for ASCII-only strings.
func lowerASCII(s string) string {
	var needsLower bool
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			needsLower = true
			break
		}
	}
	if !needsLower {
		return s
	}
	b := make([]byte, len(s))
	copy(b, s)
	for i := 0; i < len(b); i++ {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

// stripTrailingSlash removes trailing slashes from a path.
func stripTrailingSlash(path string) string {
	for len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}
	return path
}
