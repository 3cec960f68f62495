// Package listing derives the displayed subset of candidates.
package listing

import (
	"strings"

	"recruitline/internal/domain"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Filter selects candidates. Zero values match everything; a nil Status
// matches every decision, a pointer to StatusUndecided only undecided ones.
type Filter struct {
	Search      string
	Stage       domain.Stage
	Status      *domain.Status
	Disposition domain.Disposition
	OpeningID   string
}

// Match reports whether c passes every predicate of f.
func (f Filter) Match(c domain.Candidate) bool {
	if f.Stage != "" && c.Stage != f.Stage {
		return false
	}
	if f.Status != nil && c.Status != *f.Status {
		return false
	}
	if f.Disposition != "" && c.Disposition != f.Disposition {
		return false
	}
	if f.OpeningID != "" && c.OpeningID != f.OpeningID {
		return false
	}
	return matchSearch(c, f.Search)
}

func matchSearch(c domain.Candidate, search string) bool {
	q := strings.ToLower(strings.TrimSpace(search))
	if q == "" {
		return true
	}
	for _, field := range []string{c.Name, c.Email, c.Role} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	for _, s := range c.Skills {
		if strings.Contains(strings.ToLower(s), q) {
			return true
		}
	}
	return false
}

// Apply keeps the candidates matching f, preserving order.
func Apply(cs []domain.Candidate, f Filter) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(cs))
	for _, c := range cs {
		if f.Match(c) {
			out = append(out, c)
		}
	}
	return out
}

// Page is one slice of a filtered list.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Pages int `json:"pages"`
	Size  int `json:"size"`
}

// Paginate slices items into pages of size. A page past the end is empty.
func Paginate[T any](items []T, page, size int) Page[T] {
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	if page < 1 {
		page = 1
	}
	total := len(items)
	pages := (total + size - 1) / size
	res := Page[T]{Items: []T{}, Total: total, Page: page, Pages: pages, Size: size}
	start := (page - 1) * size
	if start >= total {
		return res
	}
	end := start + size
	if end > total {
		end = total
	}
	res.Items = items[start:end]
	return res
}
