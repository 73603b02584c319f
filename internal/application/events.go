// Package application contains use-case orchestration services.
package application

import "sync"

// UpdateKind names a category of cached data that a sync pass changed.
type UpdateKind string

const (
	UpdateKindRepository    UpdateKind = "repository"
	UpdateKindIssues        UpdateKind = "issues"
	UpdateKindPullRequests  UpdateKind = "pull_requests"
	UpdateKindChecks        UpdateKind = "checks"
	UpdateKindReviews       UpdateKind = "reviews"
	UpdateKindReleases      UpdateKind = "releases"
	UpdateKindSearches      UpdateKind = "searches"
	UpdateKindNotifications UpdateKind = "notifications"
)

// UpdateEvent announces a committed sync pass. Subscribers receive it after
// the transaction is durable, so reading the store from a handler always
// observes the new state.
type UpdateEvent struct {
	Owner string
	Name  string
	Kinds []UpdateKind
}

// updateBus fans UpdateEvents out to registered listeners. Listeners run
// synchronously on the sync goroutine and must not block.
type updateBus struct {
	mu        sync.RWMutex
	listeners []func(UpdateEvent)
}

func (b *updateBus) subscribe(fn func(UpdateEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, fn)
}

func (b *updateBus) publish(ev UpdateEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, fn := range b.listeners {
		fn(ev)
	}
}
