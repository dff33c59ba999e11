package puppet

import "testing"

func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus()
	var got []EventType
	bus.Subscribe(func(e Event) {
		got = append(got, e.Type())
	})

	bus.Publish(&EventReady{})
	bus.Publish(&EventMessage{MessageID: "m1"})

	if len(got) != 2 || got[0] != EventTypeReady || got[1] != EventTypeMessage {
		t.Errorf("events: %v", got)
	}
}

func TestBus_SubscribeType(t *testing.T) {
	bus := NewBus()
	messages := 0
	scans := 0
	bus.SubscribeType(EventTypeMessage, func(Event) { messages++ })
	bus.SubscribeType(EventTypeScan, func(Event) { scans++ })

	bus.Publish(&EventMessage{MessageID: "m1"})
	bus.Publish(&EventMessage{MessageID: "m2"})
	bus.Publish(&EventScan{Status: ScanWaiting})

	if messages != 2 {
		t.Errorf("message handler calls: %d", messages)
	}
	if scans != 1 {
		t.Errorf("scan handler calls: %d", scans)
	}
}

func TestBus_Cancel(t *testing.T) {
	bus := NewBus()
	calls := 0
	cancel := bus.Subscribe(func(Event) { calls++ })

	bus.Publish(&EventReady{})
	cancel()
	bus.Publish(&EventReady{})

	if calls != 1 {
		t.Errorf("calls after cancel: %d", calls)
	}
	if bus.SubscriberCount() != 0 {
		t.Errorf("subscriber count: %d", bus.SubscriberCount())
	}
}

func TestBus_PayloadReachesHandler(t *testing.T) {
	bus := NewBus()
	var seen *EventLogin
	bus.SubscribeType(EventTypeLogin, func(e Event) {
		seen = e.(*EventLogin)
	})

	bus.Publish(&EventLogin{User: Contact{ID: "wxid_self", Name: "Self"}})

	if seen == nil || seen.User.ID != "wxid_self" {
		t.Errorf("login event: %+v", seen)
	}
}
