package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platzio/platz/internal/dbstore"
	"github.com/platzio/platz/internal/platzlog"
)

// newTestBus builds a Bus with no live listener, exercising only the
// in-process dispatch path (Publish/Subscribe/dispatch), which is all
// the subscriber bookkeeping this package owns.
func newTestBus() *Bus {
	b := &Bus{subs: make(map[uint64]*subscriber), done: make(chan struct{})}
	b.SetLogger(platzlog.NewHandler(platzlog.EnvDebugEnabled))
	return b
}

func TestSubscribeReceivesMatchingTable(t *testing.T) {
	b := newTestBus()
	sub := b.Subscribe("deployments")
	other := b.Subscribe("secrets")

	b.Publish(dbstore.ChangeEvent{Operation: dbstore.OpInsert, Table: "deployments", ID: "1"})

	select {
	case ev := <-sub.Events:
		assert.Equal(t, "deployments", ev.Table)
	default:
		t.Fatal("expected event on scoped subscription")
	}
	select {
	case <-other.Events:
		t.Fatal("secrets subscriber should not have received a deployments event")
	default:
	}
}

func TestSubscribeUnscopedReceivesEverything(t *testing.T) {
	b := newTestBus()
	sub := b.Subscribe("")

	b.Publish(dbstore.ChangeEvent{Operation: dbstore.OpDelete, Table: "secrets", ID: "x"})

	ev := <-sub.Events
	assert.Equal(t, dbstore.OpDelete, ev.Operation)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := newTestBus()
	sub := b.Subscribe("envs")
	sub.Unsubscribe()

	b.Publish(dbstore.ChangeEvent{Table: "envs", ID: "1"})

	select {
	case <-sub.Closed:
	default:
		t.Fatal("expected Closed to be signaled after Unsubscribe")
	}
	select {
	case _, ok := <-sub.Events:
		require.False(t, ok, "channel should be empty after unsubscribe")
	default:
	}
}

func TestLaggingSubscriberIsCut(t *testing.T) {
	b := newTestBus()
	sub := b.Subscribe("deployments")

	for i := 0; i < subscriberCapacity+10; i++ {
		b.Publish(dbstore.ChangeEvent{Table: "deployments", ID: "x"})
	}

	select {
	case <-sub.Closed:
	default:
		t.Fatal("expected lagging subscriber to be dropped")
	}
}
