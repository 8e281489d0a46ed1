// Package realtime carries partner progress changes to live subscribers.
//
// Every process sees the whole change feed and filters it locally by
// partnership id, so a subscriber only receives events for the partnerships
// it asked for.
package realtime

import (
	"context"
	"sync"
	"sync/atomic"

	"habitpact/internal/metrics"
	"habitpact/internal/models"
)

// ProgressEvent is one mutation of a PartnerProgress row. Delete events carry
// the last-known row values.
type ProgressEvent struct {
	Type string                 `json:"type"` // INSERT | UPDATE | DELETE
	Row  models.PartnerProgress `json:"row"`
}

type Callback func(ProgressEvent)

// Broker moves events from the writer to every process's Feed.
type Broker interface {
	Publish(ctx context.Context, ev ProgressEvent) error
}

// Feed is the in-process subscription table.
type Feed struct {
	mu   sync.RWMutex
	next uint64
	subs map[uint64]*Subscription
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[uint64]*Subscription)}
}

// Subscription is the handle returned by Subscribe. Once Unsubscribe returns no new
// callback starts; one already running when it was called may still finish.
type Subscription struct {
	id     uint64
	feed   *Feed
	ids    map[string]struct{}
	cb     Callback
	once   sync.Once
	closed atomic.Bool
}

// Subscribe registers cb for events whose partnership id is in partnershipIDs.
func (f *Feed) Subscribe(partnershipIDs []string, cb Callback) *Subscription {
	ids := make(map[string]struct{}, len(partnershipIDs))
	for _, id := range partnershipIDs {
		ids[id] = struct{}{}
	}
	f.mu.Lock()
	f.next++
	s := &Subscription{id: f.next, feed: f, ids: ids, cb: cb}
	f.subs[s.id] = s
	f.mu.Unlock()
	metrics.SubscriberAdded()
	return s
}

// Unsubscribe is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.closed.Store(true)
		s.feed.mu.Lock()
		delete(s.feed.subs, s.id)
		s.feed.mu.Unlock()
		metrics.SubscriberRemoved()
	})
}

// Deliver hands ev to every matching subscriber on the caller's goroutine.
func (f *Feed) Deliver(ev ProgressEvent) {
	metrics.RecordProgressEvent(ev.Type)
	f.mu.RLock()
	matched := make([]*Subscription, 0, len(f.subs))
	for _, s := range f.subs {
		if _, ok := s.ids[ev.Row.PartnershipID]; ok {
			matched = append(matched, s)
		}
	}
	f.mu.RUnlock()
	for _, s := range matched {
		if s.closed.Load() {
			continue
		}
		s.cb(ev)
	}
}

// Len returns the number of live subscriptions.
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

// LocalBroker delivers straight into a single process's feed.
type LocalBroker struct {
	feed *Feed
}

func NewLocalBroker(feed *Feed) *LocalBroker {
	return &LocalBroker{feed: feed}
}

func (b *LocalBroker) Publish(_ context.Context, ev ProgressEvent) error {
	b.feed.Deliver(ev)
	return nil
}
