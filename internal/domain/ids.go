package domain

import "sync/atomic"

// orderSeq is the process-wide monotonic OrderId counter. Ids only need to
// be unique within a process, so a single atomic counter is the simplest
// correct choice and needs no coordination with the books it feeds.
var orderSeq atomic.Uint64

// NewOrderID returns the next process-wide unique OrderId. IDs start at 1
// so the zero value of OrderId can be used as a "no order" sentinel.
func NewOrderID() OrderId {
	return OrderId(orderSeq.Add(1))
}
