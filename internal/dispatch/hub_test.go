package dispatch

import (
	"errors"
	"testing"
)

type fakeConn struct {
	writes  []interface{}
	failing bool
	closed  bool
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	if f.failing {
		return errors.New("broken pipe")
	}
	f.writes = append(f.writes, v)
	return nil
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func TestBroadcastReachesAllSubscribers(t *testing.T) {
	h := NewHub(nil)
	a, b := &fakeConn{}, &fakeConn{}
	h.Subscribe(7, a)
	h.Subscribe(7, b)
	h.Subscribe(8, &fakeConn{})

	h.Broadcast(7, "update")

	if len(a.writes) != 1 || len(b.writes) != 1 {
		t.Fatalf("writes a=%d b=%d, want 1 each", len(a.writes), len(b.writes))
	}
	if h.SubscriberCount(7) != 2 {
		t.Fatalf("count = %d, want 2", h.SubscriberCount(7))
	}
}

func TestBroadcastDropsDeadConnections(t *testing.T) {
	h := NewHub(nil)
	ok, dead := &fakeConn{}, &fakeConn{failing: true}
	h.Subscribe(7, ok)
	h.Subscribe(7, dead)

	h.Broadcast(7, "update")

	if h.SubscriberCount(7) != 1 {
		t.Fatalf("count = %d, want 1 after reaping", h.SubscriberCount(7))
	}
	h.Broadcast(7, "again")
	if len(ok.writes) != 2 {
		t.Fatalf("surviving conn writes = %d, want 2", len(ok.writes))
	}
}

func TestUnsubscribe(t *testing.T) {
	h := NewHub(nil)
	c := &fakeConn{}
	h.Subscribe(7, c)
	h.Unsubscribe(7, c)
	if h.SubscriberCount(7) != 0 {
		t.Fatalf("count = %d, want 0", h.SubscriberCount(7))
	}
	// broadcast to an empty request is a no-op
	h.Broadcast(7, "update")
	if len(c.writes) != 0 {
		t.Fatalf("unsubscribed conn received %d writes", len(c.writes))
	}
}

func TestCloseRequestClosesAndDrops(t *testing.T) {
	h := NewHub(nil)
	a, b := &fakeConn{}, &fakeConn{}
	h.Subscribe(7, a)
	h.Subscribe(7, b)

	h.CloseRequest(7)

	if !a.closed || !b.closed {
		t.Fatalf("conns not closed: a=%v b=%v", a.closed, b.closed)
	}
	if h.SubscriberCount(7) != 0 {
		t.Fatalf("count = %d, want 0", h.SubscriberCount(7))
	}
}
