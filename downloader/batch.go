package downloader

import (
	"hostfetch/internal"
)

// ItemResult is the outcome of one item processed end-to-end.
type ItemResult struct {
	URL  string
	Path string
	Kind internal.ErrorKind
	Err  error
}

// Succeeded reports whether the item completed.
func (r ItemResult) Succeeded() bool {
	return r.Kind == internal.OK
}

// BatchResult collects per-item outcomes for one invocation. The full
// sequence stays available to callers; the process exit status is derived
// from it by an explicit function instead of ad hoc arithmetic at call
// sites.
type BatchResult struct {
	Items []ItemResult
}

// Add appends an item outcome.
func (b *BatchResult) Add(r ItemResult) {
	b.Items = append(b.Items, r)
}

// Failed returns the number of failed items.
func (b *BatchResult) Failed() int {
	n := 0
	for _, item := range b.Items {
		if !item.Succeeded() {
			n++
		}
	}
	return n
}

// Representative returns the single outcome summarizing the batch: OK when
// everything succeeded, otherwise the first failing item's kind.
func (b *BatchResult) Representative() internal.ErrorKind {
	for _, item := range b.Items {
		if !item.Succeeded() {
			return item.Kind
		}
	}
	return internal.OK
}

// ExitCode computes the process exit status. A lone item surfaces its own
// code directly; multiple items with any failure shift the first failing
// code past FatalMultipleBase so callers can tell a batch failure apart
// from a single-item one.
func (b *BatchResult) ExitCode() int {
	rep := b.Representative()
	if rep == internal.OK {
		return 0
	}
	if len(b.Items) == 1 {
		return int(rep)
	}
	return internal.FatalMultipleBase + int(rep)
}
