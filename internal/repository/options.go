package repository

import "time"

type storeOptions struct {
	now func() time.Time
}

// StoreOption configures a result cache or computation log.
type StoreOption func(*storeOptions)

// WithClock replaces time.Now for freshness checks and timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(o *storeOptions) {
		o.now = now
	}
}

func buildStoreOptions(opts []StoreOption) storeOptions {
	o := storeOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
