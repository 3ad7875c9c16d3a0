package events

import "testing"

func TestPublishDeliversInRegistrationOrder(t *testing.T) {
	b := New()
	var order []int

	b.Subscribe(SubscriberFunc(func(Event) { order = append(order, 1) }))
	b.Subscribe(SubscriberFunc(func(Event) { order = append(order, 2) }))
	b.Subscribe(SubscriberFunc(func(Event) { order = append(order, 3) }))

	b.Publish(Event{Source: "acct", Kind: MessageAdded, Item: "dir"})

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("order = %v, want [1 2 3]", order)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	calls := 0
	unsub := b.Subscribe(SubscriberFunc(func(Event) { calls++ }))

	b.Publish(Event{Kind: FolderAdded})
	unsub()
	b.Publish(Event{Kind: FolderAdded})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestPanicIsolation(t *testing.T) {
	b := New()
	var secondCalled, thirdCalled bool

	b.Subscribe(SubscriberFunc(func(Event) { panic("boom") }))
	b.Subscribe(SubscriberFunc(func(Event) { secondCalled = true }))
	b.Subscribe(SubscriberFunc(func(Event) { thirdCalled = true }))

	b.Publish(Event{Kind: StoreOpened})

	if !secondCalled || !thirdCalled {
		t.Errorf("secondCalled=%v thirdCalled=%v, want both true despite a panicking subscriber", secondCalled, thirdCalled)
	}
}

func TestPublishDeliversEventFields(t *testing.T) {
	b := New()
	var got Event
	b.Subscribe(SubscriberFunc(func(e Event) { got = e }))

	want := Event{Source: "acct-1", Kind: MessageUpdated, Item: "2026-01-01_00-00_Hi"}
	b.Publish(want)

	if got != want {
		t.Errorf("delivered event = %+v, want %+v", got, want)
	}
}
