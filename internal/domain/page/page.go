// Package page holds offset pagination types shared by list endpoints.
package page

import "github.com/juliakaiko/orderservice/internal/domain/failure"

// MaxSize caps a single page.
const MaxSize = 100

// ErrInvalid is returned for a negative page or a size outside 1..MaxSize.
var ErrInvalid = failure.New(failure.Invalid, "invalid page request")

// Request selects a zero-based page of Size elements ordered by id.
type Request struct {
	Page int
	Size int
}

// Validate checks the bounds of the request.
func (r Request) Validate() error {
	if r.Page < 0 || r.Size <= 0 || r.Size > MaxSize {
		return ErrInvalid
	}
	return nil
}

// Offset is the number of rows to skip.
func (r Request) Offset() int {
	return r.Page * r.Size
}

// Page is one slice of an ordered result set.
type Page[T any] struct {
	Items []T
	Page  int
	Size  int
	Total int64
}

// TotalPages returns the number of pages needed for Total elements.
func (p Page[T]) TotalPages() int {
	if p.Size <= 0 {
		return 0
	}
	return int((p.Total + int64(p.Size) - 1) / int64(p.Size))
}
