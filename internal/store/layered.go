package store

import (
	"context"
	"errors"
	"time"
)

// CounterBackend is an UploadCounter with its own connection lifecycle.
type CounterBackend interface {
	UploadCounter
	Ping(ctx context.Context) error
	Close() error
}

// Layered serves users and brain access from a base Store and upload counts
// from a separate counter backend.
type Layered struct {
	Store
	counter CounterBackend
}

// NewLayered combines base and counter.
func NewLayered(base Store, counter CounterBackend) *Layered {
	return &Layered{Store: base, counter: counter}
}

// ReadUploadCount delegates to the counter backend.
func (l *Layered) ReadUploadCount(ctx context.Context, userID string, period time.Time) (int, error) {
	return l.counter.ReadUploadCount(ctx, userID, period)
}

// IncrementUploadCount delegates to the counter backend.
func (l *Layered) IncrementUploadCount(ctx context.Context, userID string, period time.Time, limit int) (int, bool, error) {
	return l.counter.IncrementUploadCount(ctx, userID, period, limit)
}

// PruneUploadCounts prunes the counter backend when it supports pruning.
// Counters that expire on their own report nothing to prune.
func (l *Layered) PruneUploadCounts(ctx context.Context, before time.Time, dryRun bool) (int, error) {
	if p, ok := l.counter.(interface {
		PruneUploadCounts(context.Context, time.Time, bool) (int, error)
	}); ok {
		return p.PruneUploadCounts(ctx, before, dryRun)
	}
	return 0, nil
}

// Ping checks both backends.
func (l *Layered) Ping(ctx context.Context) error {
	return errors.Join(l.Store.Ping(ctx), l.counter.Ping(ctx))
}

// Close closes both backends.
func (l *Layered) Close() error {
	return errors.Join(l.Store.Close(), l.counter.Close())
}
