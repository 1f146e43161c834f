// Package tracker persists the set of message fingerprints already uploaded
// to the mailbox. The set only ever grows during normal operation; clearing
// it is an explicit operator action.
package tracker

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ignite/smartlead-export/internal/pkg/logger"
)

// Store persists the serialized fingerprint set as one opaque blob.
type Store interface {
	// Load returns the persisted fingerprints. A missing or unreadable
	// store yields an empty set, never an error that would stop a run.
	Load(ctx context.Context) ([]string, error)
	// Save replaces the persisted set with the given fingerprints.
	Save(ctx context.Context, fingerprints []string) error
	// Description identifies the backing location for status output.
	Description() string
}

// Tracker is the in-memory fingerprint set backed by a Store. Record only
// mutates memory; Flush performs the durable write. Tracker additionally
// self-flushes every flushEvery inserts to bound loss on crash.
type Tracker struct {
	mu         sync.Mutex
	store      Store
	seen       map[string]struct{}
	dirty      bool
	flushEvery int
	sinceFlush int
}

// New creates a Tracker and loads the persisted set from the store.
func New(ctx context.Context, store Store, flushEvery int) (*Tracker, error) {
	if flushEvery <= 0 {
		flushEvery = 10
	}
	fingerprints, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading upload tracking: %w", err)
	}

	seen := make(map[string]struct{}, len(fingerprints))
	for _, fp := range fingerprints {
		seen[fp] = struct{}{}
	}

	return &Tracker{
		store:      store,
		seen:       seen,
		flushEvery: flushEvery,
	}, nil
}

// Contains reports whether the fingerprint was already uploaded.
func (t *Tracker) Contains(fingerprint string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.seen[fingerprint]
	return ok
}

// Record marks a fingerprint as uploaded. The write is in-memory; every
// flushEvery inserts the set is also flushed so a crash loses at most one
// batch (re-uploading those is wasteful but harmless).
func (t *Tracker) Record(ctx context.Context, fingerprint string) {
	t.mu.Lock()
	if _, ok := t.seen[fingerprint]; ok {
		t.mu.Unlock()
		return
	}
	t.seen[fingerprint] = struct{}{}
	t.dirty = true
	t.sinceFlush++
	flush := t.sinceFlush >= t.flushEvery
	t.mu.Unlock()

	if flush {
		if err := t.Flush(ctx); err != nil {
			logger.Warn("periodic tracking flush failed", "error", err)
		}
	}
}

// Flush writes the current set to the store if it changed since the last
// flush.
func (t *Tracker) Flush(ctx context.Context) error {
	t.mu.Lock()
	if !t.dirty {
		t.mu.Unlock()
		return nil
	}
	snapshot := make([]string, 0, len(t.seen))
	for fp := range t.seen {
		snapshot = append(snapshot, fp)
	}
	t.mu.Unlock()

	sort.Strings(snapshot)
	if err := t.store.Save(ctx, snapshot); err != nil {
		return fmt.Errorf("saving upload tracking: %w", err)
	}

	t.mu.Lock()
	t.dirty = false
	t.sinceFlush = 0
	t.mu.Unlock()
	return nil
}

// Len returns the number of tracked fingerprints.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}

// Description identifies the backing store for status output.
func (t *Tracker) Description() string { return t.store.Description() }

// Reset clears the set and persists the empty state immediately. Callers
// must have obtained operator confirmation first.
func (t *Tracker) Reset(ctx context.Context) error {
	t.mu.Lock()
	t.seen = make(map[string]struct{})
	t.dirty = true
	t.mu.Unlock()
	return t.Flush(ctx)
}
