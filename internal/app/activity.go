package app

// ActivityFeed forwards user-input signals to the refresh scheduler so
// polling pauses while the user is interacting.
type ActivityFeed struct {
	ch chan struct{}
}

// NewActivityFeed creates a feed with a small buffer; signals beyond the
// buffer are dropped, which is fine since one pending signal is enough
// to arm the idle countdown.
func NewActivityFeed() *ActivityFeed {
	return &ActivityFeed{ch: make(chan struct{}, 8)}
}

// Notify records a user-activity signal without blocking.
func (f *ActivityFeed) Notify() {
	select {
	case f.ch <- struct{}{}:
	default:
	}
}

// Events implements sync.ActivitySource.
func (f *ActivityFeed) Events() <-chan struct{} {
	return f.ch
}
