// Package typing keeps the per-room list of users currently typing.
//
// Declarations expire after a fixed window unless refreshed. Expiry is checked
// lazily whenever a room is read or mutated, and by a periodic Sweep, so no
// timer is kept per user.
package typing

import (
	"context"
	"slices"
	"sync"
	"time"
)

const DefaultWindow = time.Second

// Notify receives the new typing list of a room each time it changes. It is
// called with the room lock held and must not block.
type Notify func(room string, users []string)

type Aggregator struct {
	window time.Duration
	now    func() time.Time
	notify Notify
	rooms  map[string]*roomTypers
}

type roomTypers struct {
	mu     sync.Mutex
	users  []string
	expiry map[string]time.Time
}

type Option func(*Aggregator)

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

// New builds an aggregator for a fixed set of rooms. A non-positive window
// falls back to DefaultWindow; a nil notify discards changes.
func New(rooms []string, window time.Duration, notify Notify, opts ...Option) *Aggregator {
	if window <= 0 {
		window = DefaultWindow
	}
	if notify == nil {
		notify = func(string, []string) {}
	}
	a := &Aggregator{
		window: window,
		now:    time.Now,
		notify: notify,
		rooms:  make(map[string]*roomTypers, len(rooms)),
	}
	for _, opt := range opts {
		opt(a)
	}
	for _, room := range rooms {
		a.rooms[room] = &roomTypers{expiry: make(map[string]time.Time)}
	}
	return a
}

// MarkTyping sets or refreshes the expiry of username in room. Subscribers
// are notified only when the list itself changes, never on a plain refresh.
func (a *Aggregator) MarkTyping(room, username string) {
	rt, ok := a.rooms[room]
	if !ok {
		return
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()

	now := a.now()
	changed := rt.purge(now)
	if _, typing := rt.expiry[username]; !typing {
		rt.users = append(rt.users, username)
		changed = true
	}
	rt.expiry[username] = now.Add(a.window)

	if changed {
		a.notify(room, slices.Clone(rt.users))
	}
}

// MarkStopped removes username from room immediately.
func (a *Aggregator) MarkStopped(room, username string) {
	rt, ok := a.rooms[room]
	if !ok {
		return
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()

	changed := rt.purge(a.now())
	if rt.remove(username) {
		changed = true
	}
	if changed {
		a.notify(room, slices.Clone(rt.users))
	}
}

// CurrentTypers returns the unexpired typers of room in the order they
// started typing. Entries that expired since the last read are purged first.
func (a *Aggregator) CurrentTypers(room string) []string {
	rt, ok := a.rooms[room]
	if !ok {
		return nil
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()

	changed := rt.purge(a.now())
	users := slices.Clone(rt.users)
	if changed {
		a.notify(room, slices.Clone(users))
	}
	return users
}

// Replay hands the current typers of room to fn. fn runs with the room lock
// held, so whatever it sends is ordered against change notifications.
func (a *Aggregator) Replay(room string, fn func(users []string)) {
	rt, ok := a.rooms[room]
	if !ok {
		return
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.purge(a.now()) {
		a.notify(room, slices.Clone(rt.users))
	}
	fn(slices.Clone(rt.users))
}

// Sweep runs the expiry check over every room.
func (a *Aggregator) Sweep() {
	for room := range a.rooms {
		a.CurrentTypers(room)
	}
}

// Run sweeps every half window until ctx is done.
func (a *Aggregator) Run(ctx context.Context) {
	ticker := time.NewTicker(a.window / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.Sweep()
		case <-ctx.Done():
			return
		}
	}
}

func (rt *roomTypers) purge(now time.Time) bool {
	changed := false
	for user, expiry := range rt.expiry {
		if !now.Before(expiry) {
			rt.remove(user)
			changed = true
		}
	}
	return changed
}

func (rt *roomTypers) remove(username string) bool {
	if _, ok := rt.expiry[username]; !ok {
		return false
	}
	delete(rt.expiry, username)
	rt.users = slices.DeleteFunc(rt.users, func(u string) bool { return u == username })
	return true
}
