// Package pagination computes the bounded window of page links rendered
// around the current page of a result listing.
package pagination

// Window is the contiguous range of page numbers to display as links. A
// window always satisfies Leftmost <= Current <= Rightmost and spans at most
// the configured maximum number of pages.
type Window struct {
	Current   int
	Leftmost  int
	Rightmost int
}

// WindowFor computes the page-link window for a listing.
//
// The current page is derived from the offset alone (offset/pageSize + 1).
// The window is centered on the current page, clamped to the total page
// count implied by upperBound, and at most maxPages wide; when one edge is
// clamped the surplus is reallocated to the other edge, so near page 1 the
// window extends further right instead of shrinking.
//
// All inputs are assumed non-negative with pageSize > 0; this is a pure,
// total function over that domain.
func WindowFor(offset, upperBound, pageSize, maxPages int) Window {
	current := offset/pageSize + 1
	totalPages := (upperBound + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}

	if current > totalPages {
		// Offset beyond the last page: the current page is still derived
		// from the offset alone, and the window collapses onto it.
		return Window{Current: current, Leftmost: current, Rightmost: current}
	}

	// Split the window around the current page; for an even maxPages the
	// extra slot goes to the right so the width never exceeds maxPages.
	left := current - (maxPages-1)/2
	right := current + maxPages/2
	if left < 1 {
		right += 1 - left
		left = 1
	}
	if right > totalPages {
		left -= right - totalPages
		right = totalPages
	}
	if left < 1 {
		left = 1
	}

	return Window{Current: current, Leftmost: left, Rightmost: right}
}

// HasPrev reports whether a "previous page" link makes sense.
func (w Window) HasPrev() bool {
	return w.Current > 1
}

// HasNext reports whether a "next page" link makes sense given whether more
// items exist beyond the current page.
func (w Window) HasNext(moreItems bool) bool {
	return moreItems && w.Current < w.Rightmost
}

// Pages returns the page numbers in the window, in order. Convenient for
// template iteration.
func (w Window) Pages() []int {
	pages := make([]int, 0, w.Rightmost-w.Leftmost+1)
	for p := w.Leftmost; p <= w.Rightmost; p++ {
		pages = append(pages, p)
	}
	return pages
}
