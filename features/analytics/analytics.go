// Package analytics holds the request and response shapes shared by the
// insights and usage-log service clients, and the lazy page stream the report
// builders consume.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sifthub/exporter/export"
	"github.com/sifthub/exporter/telemetry"
)

const (
	// BatchSize is the page size used by all list streams.
	BatchSize = 100

	// maxPages hard-caps pagination so a misbehaving upstream that keeps
	// returning full pages cannot spin the worker forever.
	maxPages = 1000
)

type (
	// Request is the common POST body for analytics endpoints. Page and
	// PageSize are only set on list calls.
	Request struct {
		Filter     *export.Filter `json:"filter,omitempty"`
		PageFilter *export.Filter `json:"pageFilter,omitempty"`
		Page       int            `json:"page,omitempty"`
		PageSize   int            `json:"pageSize,omitempty"`
	}

	// Envelope is the uniform analytics response wrapper.
	Envelope struct {
		Status  int             `json:"status"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
		Error   json.RawMessage `json:"error,omitempty"`
	}

	// FetchFunc retrieves one page of items. A nil, nil return means the page
	// was empty and the stream is exhausted.
	FetchFunc[T any] func(ctx context.Context, page, pageSize int) ([]T, error)

	// Stream yields pages of T one at a time. Usage mirrors bufio.Scanner:
	//
	//	for stream.Next(ctx) {
	//		for _, item := range stream.Page() { … }
	//	}
	//	if err := stream.Err(); err != nil { … }
	Stream[T any] struct {
		fetch    FetchFunc[T]
		logger   telemetry.Logger
		pageSize int
		page     int
		current  []T
		err      error
		done     bool
	}
)

// NewStream builds a page stream over fetch. A zero pageSize selects
// BatchSize.
func NewStream[T any](fetch FetchFunc[T], pageSize int, logger telemetry.Logger) *Stream[T] {
	if pageSize <= 0 {
		pageSize = BatchSize
	}
	if logger == nil {
		logger = telemetry.NewNopLogger()
	}
	return &Stream[T]{fetch: fetch, pageSize: pageSize, logger: logger}
}

// Next fetches the next page. It returns false once the stream is exhausted
// or failed; check Err afterwards.
func (s *Stream[T]) Next(ctx context.Context) bool {
	if s.done || s.err != nil {
		return false
	}
	if s.page >= maxPages {
		s.logger.Warn(ctx, "page stream truncated at cap", "pages", s.page)
		s.done = true
		return false
	}
	s.page++
	items, err := s.fetch(ctx, s.page, s.pageSize)
	if err != nil {
		s.err = err
		s.done = true
		return false
	}
	if len(items) == 0 {
		s.done = true
		return false
	}
	s.current = items
	// A short page is the last one; skip the extra round trip.
	if len(items) < s.pageSize {
		s.done = true
	}
	return true
}

// Page returns the items fetched by the last successful Next call.
func (s *Stream[T]) Page() []T {
	return s.current
}

// Err returns the first error encountered by Next, if any.
func (s *Stream[T]) Err() error {
	return s.err
}

// Unwrap validates the envelope and returns its data payload. A non-200
// status or an absent data field is an upstream failure.
func (e *Envelope) Unwrap(endpoint string) (json.RawMessage, error) {
	if e.Status != http.StatusOK {
		return nil, export.Upstream(
			fmt.Sprintf("%s: upstream status %d %s", endpoint, e.Status, e.Message), nil)
	}
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return nil, export.Upstream(fmt.Sprintf("%s: response missing data", endpoint), nil)
	}
	return e.Data, nil
}
