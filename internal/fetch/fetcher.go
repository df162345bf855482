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

// Package fetch is the only component that touches the network. It retrieves
// a page and returns its status code, UTF-8 body and final URL after
// redirects.
package fetch

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

// ErrIO wraps network, DNS and TLS failures.
var ErrIO = errors.New("fetch I/O error")

// maxBodySize caps page bodies to keep one oversized document from holding
// the pipeline's memory.
const maxBodySize = 10 << 20

const defaultUserAgent = "lemmadex/1.0 (+https://github.com/lemmadex/lemmadex)"

// Result is a fetched document.
type Result struct {
	// StatusCode is the final HTTP status after redirects.
	StatusCode int
	// Body is the response body, normalized to UTF-8 for text content.
	Body []byte
	// FinalURL is the URL the response came from, for resolving relative
	// links when the request was redirected.
	FinalURL string
	// ContentType is the Content-Type header of the final response.
	ContentType string
}

// Fetcher retrieves pages over HTTP with bounded timeouts.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the end-to-end request timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.client.Timeout = d
	}
}

// WithTransport replaces the HTTP transport, used by tests.
func WithTransport(rt http.RoundTripper) Option {
	return func(f *Fetcher) {
		f.client.Transport = rt
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// New creates a Fetcher with a 10s connect / 30s total timeout.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				MaxIdleConnsPerHost: 8,
			},
		},
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves url. Non-2xx statuses are returned in the Result, not as
// errors; network-level failures wrap ErrIO.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	res, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer res.Body.Close()

	var bodyReader io.Reader = io.LimitReader(res.Body, maxBodySize)
	if !res.Uncompressed && strings.Contains(strings.ToLower(res.Header.Get("Content-Encoding")), "gzip") {
		gz, err := gzip.NewReader(bodyReader)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIO, err)
		}
		defer gz.Close()
		bodyReader = gz
	}
	body, err := io.ReadAll(bodyReader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}

	contentType := res.Header.Get("Content-Type")
	if isTextContent(contentType) {
		body = toUTF8(body, contentType)
	}

	finalURL := url
	if res.Request != nil && res.Request.URL != nil {
		finalURL = res.Request.URL.String()
	}

	return &Result{
		StatusCode:  res.StatusCode,
		Body:        body,
		FinalURL:    finalURL,
		ContentType: contentType,
	}, nil
}

func isTextContent(contentType string) bool {
	return contentType == "" ||
		strings.Contains(contentType, "text/") ||
		strings.Contains(contentType, "xml") ||
		strings.Contains(contentType, "json")
}

// toUTF8 converts a body to UTF-8. The charset comes from the Content-Type
// header when declared, otherwise from content detection.
func toUTF8(body []byte, contentType string) []byte {
	label := ""
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		label = params["charset"]
	}
	if label == "" {
		if result, err := chardet.NewTextDetector().DetectBest(body); err == nil {
			label = result.Charset
		}
	}
	if label == "" || strings.EqualFold(label, "utf-8") {
		return body
	}
	reader, err := charset.NewReaderLabel(label, bytes.NewReader(body))
	if err != nil {
		return body
	}
	converted, err := io.ReadAll(reader)
	if err != nil {
		return body
	}
	return converted
}
