package api

import (
	"testing"
	"time"
)

func TestHubBroadcastToChannelOnlyReachesSubscribedClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	subscribed := &Client{hub: hub, send: make(chan []byte, 1), subscriptions: map[string]bool{"events": true}}
	unsubscribed := &Client{hub: hub, send: make(chan []byte, 1), subscriptions: map[string]bool{}}

	hub.register <- subscribed
	hub.register <- unsubscribed
	time.Sleep(10 * time.Millisecond) // let Run() drain the register channel

	hub.BroadcastToChannel("events", map[string]string{"type": "revealed"})

	select {
	case <-subscribed.send:
	case <-time.After(time.Second):
		t.Fatal("subscribed client never received the broadcast")
	}

	select {
	case <-unsubscribed.send:
		t.Fatal("unsubscribed client should not have received the broadcast")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestClientSubscribeAndUnsubscribe(t *testing.T) {
	c := &Client{subscriptions: make(map[string]bool)}

	if c.IsSubscribed("events") {
		t.Fatal("client should start unsubscribed")
	}
	c.Subscribe("events")
	if !c.IsSubscribed("events") {
		t.Error("expected client to be subscribed to events")
	}
	c.Unsubscribe("events")
	if c.IsSubscribed("events") {
		t.Error("expected client to be unsubscribed after Unsubscribe")
	}
}
