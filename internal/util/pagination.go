package util

import "math"

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Calculate normalises page and size. Pages past the addressable range are clamped so the
// offset never overflows.
func Calculate(page, size int) (from, limit int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > MaxPageSize {
		size = DefaultPageSize
	}
	if maxPage := (math.MaxInt-size)/size + 1; page > maxPage {
		page = maxPage
	}
	from = (page - 1) * size
	return from, size
}

// Window returns the [lo, hi) bounds of a page over n elements.
func Window(n, page, size int) (lo, hi int) {
	from, limit := Calculate(page, size)
	if from < 0 || from >= n {
		return n, n
	}
	hi = from + limit
	if hi > n {
		hi = n
	}
	return from, hi
}
