// Package eventbus fans out dbstore.ChangeEvents to subscribers over
// Postgres's LISTEN/NOTIFY (spec.md §4.2, §6), using lib/pq's own
// Listener rather than a bare database/sql polling loop, the way the
// teacher reaches for the driver-native mechanism instead of rolling
// its own.
package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/platzio/platz/internal/dbstore"
	"github.com/platzio/platz/internal/platzlog"
)

const (
	channelName = "platz_row_changes"

	// subscriberCapacity bounds each subscriber's buffered channel.
	// A subscriber that can't keep up is cut rather than allowed to
	// backpressure the bus (spec.md §4.2: "a lagging subscriber is
	// dropped, not allowed to slow down the others").
	subscriberCapacity = 1024

	minReconnectInterval = 3 * time.Second
	maxReconnectInterval = 3 * time.Second
)

// Subscription is a live feed of ChangeEvents. Closed is signaled once
// when the bus drops this subscriber, after which no further events
// arrive on Events.
type Subscription struct {
	Events <-chan dbstore.ChangeEvent
	Closed <-chan struct{}

	bus    *Bus
	id     uint64
	ch     chan dbstore.ChangeEvent
	closed chan struct{}
	once   sync.Once
}

// Unsubscribe removes this subscription from the bus. Safe to call more
// than once and safe to call after the bus has already dropped it.
func (s *Subscription) Unsubscribe() {
	s.bus.remove(s.id)
}

func (s *Subscription) drop() {
	s.once.Do(func() {
		close(s.closed)
	})
}

type subscriber struct {
	table string // empty means "every table"
	sub   *Subscription
}

// Bus is a process-local fan-out of database row changes, fed by a
// dedicated lib/pq Listener connection. It implements dbstore.Notifier
// so a Store can publish directly into it without knowing about LISTEN
// at all; Bus additionally relays NOTIFY payloads from other connected
// processes (the migration's notify_row_change trigger) onto the same
// subscriber set, so same-process writes and externally-issued ones are
// indistinguishable to consumers.
type Bus struct {
	platzlog.LogHolder

	listener *pq.Listener

	mu        sync.Mutex
	nextID    uint64
	subs      map[uint64]*subscriber
	closeOnce sync.Once
	done      chan struct{}
}

// New opens a dedicated LISTEN connection against databaseURL and starts
// the background relay goroutine. Call Run to block on the connection's
// notification loop, or just Close when done.
func New(databaseURL string) (*Bus, error) {
	b := &Bus{
		subs: make(map[uint64]*subscriber),
		done: make(chan struct{}),
	}
	b.SetLogger(platzlog.NewHandler(platzlog.EnvDebugEnabled).WithAttrs([]slog.Attr{slog.String("component", "eventbus")}))

	listener := pq.NewListener(databaseURL, minReconnectInterval, maxReconnectInterval, b.reportConnEvent)
	if err := listener.Listen(channelName); err != nil {
		return nil, err
	}
	b.listener = listener
	return b, nil
}

// reportConnEvent logs pq.Listener's reconnect lifecycle. Only
// pq.ListenerEventConnectionAttemptFailed carries a real error; the
// others are routine state transitions.
func (b *Bus) reportConnEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnectionAttemptFailed:
		b.Logger().Warn("eventbus listen connection attempt failed", "error", err)
	case pq.ListenerEventDisconnected:
		b.Logger().Warn("eventbus listen connection lost", "error", err)
	case pq.ListenerEventReconnected:
		b.Logger().Info("eventbus listen connection reestablished")
	}
}

// Run processes incoming NOTIFY payloads until ctx is canceled or Close
// is called. A malformed payload is logged and skipped; it never brings
// the relay down, since one bad message from any connected writer
// shouldn't stop every other subscriber's feed.
func (b *Bus) Run(ctx context.Context) error {
	defer b.listener.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.done:
			return nil
		case n, ok := <-b.listener.Notify:
			if !ok {
				return nil
			}
			if n == nil {
				// pq sends a nil notification after a reconnect to signal
				// the client may have missed messages while disconnected.
				// There's no missed-event queue to replay, so subscribers
				// just resume receiving from here.
				continue
			}
			ev, err := decodeChangeEvent(n.Extra)
			if err != nil {
				b.Logger().Warn("eventbus received malformed notification", "error", err)
				continue
			}
			b.dispatch(ev)
		case <-time.After(90 * time.Second):
			// pq recommends a periodic Ping to detect a dead connection
			// the driver hasn't itself noticed yet.
			go b.listener.Ping()
		}
	}
}

// Close stops the relay loop and closes the underlying LISTEN connection.
func (b *Bus) Close() error {
	b.closeOnce.Do(func() { close(b.done) })
	return b.listener.Close()
}

// Publish implements dbstore.Notifier for same-process callers. Store
// calls this directly after a commit; Bus dispatches it to subscribers
// exactly like an externally-sourced NOTIFY.
func (b *Bus) Publish(ev dbstore.ChangeEvent) {
	b.dispatch(ev)
}

// Subscribe returns a feed of every ChangeEvent for table, or every
// table's events if table is empty (spec.md §4.2: "subscriptions may be
// table-scoped or unscoped").
func (b *Bus) Subscribe(table string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan dbstore.ChangeEvent, subscriberCapacity)
	closed := make(chan struct{})
	sub := &Subscription{Events: ch, Closed: closed, bus: b, id: id, ch: ch, closed: closed}
	b.subs[id] = &subscriber{table: table, sub: sub}
	return sub
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	delete(b.subs, id)
	b.mu.Unlock()
	if ok {
		sub.sub.drop()
	}
}

// dispatch fans ev out to every matching subscriber. A subscriber whose
// buffer is full is cut immediately rather than blocking the publisher
// or silently dropping the event -- the caller must resync (e.g. a full
// list query) rather than assume it saw every change.
func (b *Bus) dispatch(ev dbstore.ChangeEvent) {
	b.mu.Lock()
	var lagging []*Subscription
	for id, sub := range b.subs {
		if sub.table != "" && sub.table != ev.Table {
			continue
		}
		select {
		case sub.sub.ch <- ev:
		default:
			lagging = append(lagging, sub.sub)
			delete(b.subs, id)
		}
	}
	b.mu.Unlock()

	for _, sub := range lagging {
		b.Logger().Warn("eventbus dropping lagging subscriber", "subscriber_id", sub.id)
		sub.drop()
	}
}
