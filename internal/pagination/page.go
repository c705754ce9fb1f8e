// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

// Package pagination implements offset pagination shared by every listing
// endpoint.
package pagination

import "fmt"

// Defaults and bounds for page parameters.
const (
	DefaultLimit = 20
	MaxLimit     = 100
	FirstPage    = 1
)

// Params are sanitized pagination inputs. Obtain them via Normalize.
type Params struct {
	Limit int
	Page  int
}

// Normalize clamps raw limit and page values into valid ranges. Non-positive
// or missing values fall back to the defaults; limit is capped at MaxLimit.
func Normalize(limit, page int) Params {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if page < FirstPage {
		page = FirstPage
	}
	return Params{Limit: limit, Page: page}
}

// Offset returns the row offset for the page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Page is one page of results plus navigation metadata.
type Page[T any] struct {
	Items      []T     `json:"data"`
	Total      int     `json:"total"`
	Limit      int     `json:"limit"`
	PageNumber int     `json:"page"`
	TotalPages int     `json:"totalPages"`
	Next       *string `json:"next,omitempty"`
	Prev       *string `json:"prev,omitempty"`
}

// NewPage assembles a Page from one page of items and the total item count.
// An empty result set has zero total pages. Navigation links are relative to
// path and carry the limit and target page number.
func NewPage[T any](items []T, total int, params Params, path string) Page[T] {
	totalPages := 0
	if total > 0 {
		totalPages = (total + params.Limit - 1) / params.Limit
	}

	page := Page[T]{
		Items:      items,
		Total:      total,
		Limit:      params.Limit,
		PageNumber: params.Page,
		TotalPages: totalPages,
	}

	if params.Page < totalPages {
		next := pageLink(path, params.Limit, params.Page+1)
		page.Next = &next
	}
	if params.Page > FirstPage && params.Page <= totalPages {
		prev := pageLink(path, params.Limit, params.Page-1)
		page.Prev = &prev
	}

	return page
}

func pageLink(path string, limit, page int) string {
	return fmt.Sprintf("%s?limit=%d&page=%d", path, limit, page)
}
