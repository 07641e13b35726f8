package main

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/newshub/newshub/server/auth"
)

func testHub() *Hub {
	return newHub(auth.Bcrypt{Cost: 4}, newContentFilter(nil))
}

func TestCreateChannelUnique(t *testing.T) {
	h := testHub()

	rcpt, err := h.CreateChannel("Tech", "tech news", "alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rcpt == nil || rcpt.note.Type != notifNewChannel || rcpt.note.Channel.Name != "Tech" {
		t.Fatalf("create receipt: %+v", rcpt)
	}

	if _, err := h.CreateChannel("Tech", "squatting", "bob"); !errors.Is(err, errAlreadyExists) {
		t.Fatalf("duplicate create: expected errAlreadyExists, got %v", err)
	}

	// The losing create must not have modified the channel.
	want := []ChannelInfo{{Name: "Tech", Description: "tech news", Creator: "alice"}}
	if diff := cmp.Diff(want, h.ListChannels()); diff != "" {
		t.Errorf("channel list after duplicate create (-want +got):\n%s", diff)
	}
}

func TestListInsertionOrder(t *testing.T) {
	h := testHub()

	for _, name := range []string{"zeta", "alpha", "mid"} {
		if _, err := h.CreateChannel(name, "", "alice"); err != nil {
			t.Fatal(err)
		}
	}

	want := []string{"zeta", "alpha", "mid"}
	for i := 0; i < 3; i++ {
		list := h.ListChannels()
		if len(list) != len(want) {
			t.Fatalf("list size: got %d, want %d", len(list), len(want))
		}
		for j, info := range list {
			if info.Name != want[j] {
				t.Fatalf("list order on pass %d: got %v at %d, want %v", i, info.Name, j, want[j])
			}
		}
	}

	// Deletion keeps the relative order of the rest.
	if _, err := h.DeleteChannel("alpha", "alice"); err != nil {
		t.Fatal(err)
	}
	list := h.ListChannels()
	if list[0].Name != "zeta" || list[1].Name != "mid" {
		t.Errorf("list order after delete: %v, %v", list[0].Name, list[1].Name)
	}
}

func TestDeleteChannelAuthorization(t *testing.T) {
	h := testHub()
	if _, err := h.CreateChannel("Tech", "", "alice"); err != nil {
		t.Fatal(err)
	}

	if _, err := h.DeleteChannel("Tech", "bob"); !errors.Is(err, errNotCreator) {
		t.Fatalf("delete by non-creator: expected errNotCreator, got %v", err)
	}
	if len(h.ListChannels()) != 1 {
		t.Error("failed delete must not mutate state")
	}

	if _, err := h.DeleteChannel("nosuch", "alice"); !errors.Is(err, errNotFound) {
		t.Fatalf("delete of missing channel: expected errNotFound, got %v", err)
	}

	if _, err := h.DeleteChannel("Tech", "alice"); err != nil {
		t.Fatalf("delete by creator: %v", err)
	}
	if len(h.ListChannels()) != 0 {
		t.Error("channel not removed")
	}
}

func TestSubscribeIdempotent(t *testing.T) {
	h := testHub()
	if _, err := h.CreateChannel("Tech", "", "alice"); err != nil {
		t.Fatal(err)
	}

	if err := h.Subscribe("Tech", "bob"); err != nil {
		t.Fatal(err)
	}
	if err := h.Subscribe("Tech", "bob"); err != nil {
		t.Fatalf("second subscribe: expected no-op success, got %v", err)
	}
	if got := h.ListChannels()[0].SubscriberCount; got != 1 {
		t.Errorf("subscriber count after double subscribe: got %d, want 1", got)
	}

	if err := h.Unsubscribe("Tech", "nobody"); err != nil {
		t.Fatalf("unsubscribe of non-subscriber: expected no-op success, got %v", err)
	}
	if got := h.ListChannels()[0].SubscriberCount; got != 1 {
		t.Errorf("subscriber count after no-op unsubscribe: got %d, want 1", got)
	}

	if err := h.Subscribe("nosuch", "bob"); !errors.Is(err, errNotFound) {
		t.Errorf("subscribe to missing channel: expected errNotFound, got %v", err)
	}
}

func TestPublishAuthorizationAndFilter(t *testing.T) {
	h := testHub()
	if _, err := h.CreateChannel("Tech", "", "alice"); err != nil {
		t.Fatal(err)
	}
	if err := h.Subscribe("Tech", "bob"); err != nil {
		t.Fatal(err)
	}

	if _, err := h.Publish("Tech", "intruder news", "bob"); !errors.Is(err, errNotCreator) {
		t.Fatalf("publish by non-creator: expected errNotCreator, got %v", err)
	}
	if _, err := h.Publish("Tech", "get rich quick SCAM", "alice"); !errors.Is(err, errContentRejected) {
		t.Fatalf("publish of filtered content: expected errContentRejected, got %v", err)
	}
	if news, _ := h.News("Tech"); len(news) != 0 {
		t.Fatalf("failed publishes must append nothing, log has %d items", len(news))
	}

	rcpt, err := h.Publish("Tech", "Breaking: X", "alice")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if rcpt.note.Type != notifNewNews || rcpt.note.News.Content != "Breaking: X" || rcpt.note.News.Author != "alice" {
		t.Errorf("publish receipt: %+v", rcpt.note)
	}
	if len(rcpt.targets) != 1 || rcpt.targets[0] != "bob" {
		t.Errorf("publish targets: got %v, want [bob]", rcpt.targets)
	}

	news, err := h.News("Tech")
	if err != nil || len(news) != 1 {
		t.Fatalf("news log: %v, %d items", err, len(news))
	}
	if news[0].Content != "Breaking: X" || news[0].Timestamp == "" {
		t.Errorf("news item: %+v", news[0])
	}
}

func TestPublishSnapshotExcludesUnsubscribed(t *testing.T) {
	h := testHub()
	if _, err := h.CreateChannel("Tech", "", "alice"); err != nil {
		t.Fatal(err)
	}
	for _, u := range []string{"bob", "carol"} {
		if err := h.Subscribe("Tech", u); err != nil {
			t.Fatal(err)
		}
	}
	if err := h.Unsubscribe("Tech", "bob"); err != nil {
		t.Fatal(err)
	}

	rcpt, err := h.Publish("Tech", "post-unsubscribe", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(rcpt.targets) != 1 || rcpt.targets[0] != "carol" {
		t.Errorf("snapshot after unsubscribe: got %v, want [carol]", rcpt.targets)
	}
}

func TestCreateAndDeleteBroadcastTargets(t *testing.T) {
	h := testHub()
	for _, u := range []string{"alice", "bob", "carol"} {
		if err := h.Register(u, "pw", "127.0.0.1", 9000); err != nil {
			t.Fatal(err)
		}
	}

	rcpt, err := h.CreateChannel("Tech", "", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(rcpt.targets) != 3 {
		t.Errorf("create broadcast: got %d targets, want 3", len(rcpt.targets))
	}

	rcpt, err = h.DeleteChannel("Tech", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(rcpt.targets) != 3 {
		t.Errorf("delete broadcast: got %d targets, want 3", len(rcpt.targets))
	}
	if rcpt.note.Type != notifChannelDeleted || rcpt.note.ChannelName != "Tech" {
		t.Errorf("delete receipt: %+v", rcpt.note)
	}
}

func TestSubscriptionsOf(t *testing.T) {
	h := testHub()
	for _, name := range []string{"one", "two", "three"} {
		if _, err := h.CreateChannel(name, "d", "alice"); err != nil {
			t.Fatal(err)
		}
	}
	for _, name := range []string{"one", "three"} {
		if err := h.Subscribe(name, "bob"); err != nil {
			t.Fatal(err)
		}
	}

	want := []ChannelInfo{
		{Name: "one", Description: "d", Creator: "alice", SubscriberCount: 1},
		{Name: "three", Description: "d", Creator: "alice", SubscriberCount: 1},
	}
	if diff := cmp.Diff(want, h.SubscriptionsOf("bob")); diff != "" {
		t.Errorf("SubscriptionsOf (-want +got):\n%s", diff)
	}
	if subs := h.SubscriptionsOf("nobody"); len(subs) != 0 {
		t.Errorf("SubscriptionsOf unknown client: got %v", subs)
	}
}
