// Copyright 2026 The Lemmadex Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package urlx canonicalizes URLs and classifies them for the crawl
// scheduler: internality against a seed site, binary/media skip filtering
// and site-relative page paths.
package urlx

import (
	"errors"
	"net/url"
	"strings"

	whatwgUrl "github.com/nlnwa/whatwg-url/url"
)

// ErrMalformedURL marks URLs that cannot be parsed. Normalize still returns
// a best-effort form alongside it, but the URL must not be fetched.
var ErrMalformedURL = errors.New("malformed URL")

var parser = whatwgUrl.NewParser(whatwgUrl.WithPercentEncodeSinglePercentSign())

// Normalize returns the canonical form of an absolute URL: lowercased scheme
// and host, default port stripped, repeated slashes in the path collapsed,
// trailing slash trimmed (except for the root path), fragment dropped, query
// preserved. Normalization is idempotent.
func Normalize(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	parsed, err := parser.Parse(trimmed)
	if err != nil {
		return bestEffort(trimmed), ErrMalformedURL
	}
	u, err := url.Parse(parsed.Href(true))
	if err != nil || u.Scheme == "" || u.Hostname() == "" {
		return bestEffort(trimmed), ErrMalformedURL
	}
	u.Path = canonicalPath(u.Path)
	u.Fragment = ""
	return u.String(), nil
}

// ResolveRef resolves href against base and normalizes the result.
func ResolveRef(base, href string) (string, error) {
	parsed, err := parser.ParseRef(base, href)
	if err != nil {
		return "", ErrMalformedURL
	}
	return Normalize(parsed.Href(true))
}

// SitePath returns the canonical site-relative path of a URL, used as the
// Page row key. The query string is not part of the path.
func SitePath(raw string) (string, error) {
	normalized, err := Normalize(raw)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(normalized)
	if err != nil {
		return "", ErrMalformedURL
	}
	return canonicalPath(u.Path), nil
}

// Hostname returns the lowercased host of a URL without the port.
func Hostname(raw string) (string, error) {
	parsed, err := parser.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", ErrMalformedURL
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return "", ErrMalformedURL
	}
	return host, nil
}

// Internal reports whether a URL belongs to the seed's site. Hosts are
// compared after stripping a leading "www."; a URL is internal when its host
// equals the seed host or is a dot-aligned subdomain of it
// (sub.example.com is internal to example.com, notexample.com is not).
// A different effective port is a different site.
func Internal(raw, seed string) bool {
	host, port, err := hostPort(raw)
	if err != nil {
		return false
	}
	base, basePort, err := hostPort(seed)
	if err != nil {
		return false
	}
	if port != basePort {
		return false
	}
	host = strings.TrimPrefix(host, "www.")
	base = strings.TrimPrefix(base, "www.")
	return host == base || strings.HasSuffix(host, "."+base)
}

// hostPort returns the lowercased host and effective port of a URL, filling
// in the scheme default when no port is explicit.
func hostPort(raw string) (string, string, error) {
	parsed, err := parser.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", ErrMalformedURL
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return "", "", ErrMalformedURL
	}
	port := parsed.Port()
	if port == "" {
		switch strings.TrimSuffix(strings.ToLower(parsed.Protocol()), ":") {
		case "http":
			port = "80"
		case "https":
			port = "443"
		}
	}
	return host, port, nil
}

// SupportedScheme reports whether the URL uses a fetchable scheme. Mailto,
// ftp, file, javascript and the like are filtered before the fetcher sees
// them.
func SupportedScheme(raw string) bool {
	parsed, err := parser.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	scheme := strings.TrimSuffix(strings.ToLower(parsed.Protocol()), ":")
	return scheme == "http" || scheme == "https"
}

// canonicalPath collapses repeated slashes and trims the trailing slash.
// An empty path becomes "/".
func canonicalPath(p string) string {
	if p == "" {
		return "/"
	}
	var b strings.Builder
	b.Grow(len(p))
	prevSlash := false
	for _, r := range p {
		if r == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteRune(r)
	}
	out := b.String()
	if len(out) > 1 {
		out = strings.TrimSuffix(out, "/")
	}
	if out == "" {
		out = "/"
	}
	return out
}

// bestEffort lowercases a raw URL and collapses repeated slashes outside the
// scheme separator, for recording unparseable URLs.
func bestEffort(raw string) string {
	lowered := strings.ToLower(raw)
	scheme := ""
	rest := lowered
	if idx := strings.Index(lowered, "://"); idx >= 0 {
		scheme = lowered[:idx+3]
		rest = lowered[idx+3:]
	}
	return scheme + canonicalPath(rest)
}
