package pubsub

import "context"

// CombineLatest joins two independently arriving streams by latest value. Each
// value received on a or b replaces that side's slot and, once both slots have
// been filled at least once, calls fn with both slots even if the other side's
// value is stale. Nothing is emitted before both sides have produced a value.
// The arrival order A, B, A', B' therefore yields three calls: (A,B), (A',B)
// and (A',B').
//
// CombineLatest blocks until ctx is done or both channels are closed.
func CombineLatest[A, B any](ctx context.Context, a <-chan A, b <-chan B, fn func(A, B)) {
	var (
		lastA   A
		lastB   B
		haveA   bool
		haveB   bool
		aClosed = a == nil
		bClosed = b == nil
	)

	for !aClosed || !bClosed {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-a:
			if !ok {
				a, aClosed = nil, true
				continue
			}
			lastA, haveA = v, true
		case v, ok := <-b:
			if !ok {
				b, bClosed = nil, true
				continue
			}
			lastB, haveB = v, true
		}
		if haveA && haveB {
			fn(lastA, lastB)
		}
	}
}
