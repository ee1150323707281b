// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

// Package transport is the outbound remote-fetch collaborator spec.md treats
// as external: a generic form-POST that decodes a JSON body. internal/slice
// is the only caller.
package transport

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
)

// Response is the raw result of one remote call: the HTTP status and the
// undecoded body. Callers distinguish success from failure by Status;
// HTTPFetcher never sets Err.
type Response struct {
	Status int
	Body   []byte
	Err    string
}

// Fetcher performs the single outbound call a Slice needs. The production
// implementation is HTTPFetcher; tests substitute a stub.
type Fetcher interface {
	Fetch(ctx context.Context, targetURL, method string, headers http.Header, form url.Values) (*Response, error)
}

// HTTPFetcher issues the request over net/http, matching spec.md §4.D: form
// fields in the body, any content-type on the caller-supplied headers
// stripped so the transport sets it itself.
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher returns a fetcher using client, or http.DefaultClient if
// client is nil.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{Client: client}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, targetURL, method string, headers http.Header, form url.Values) (*Response, error) {
	body := strings.NewReader(form.Encode())
	req, err := http.NewRequestWithContext(ctx, method, targetURL, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range headers {
		if strings.EqualFold(k, "Content-Type") {
			continue
		}
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Response{Status: resp.StatusCode, Body: raw}, nil
}

// DecodeJSON unmarshals raw into v using the teacher's chosen fast JSON
// codec.
func DecodeJSON(raw []byte, v any) error {
	return json.Unmarshal(raw, v)
}
