/******************************************************************************
 *
 *  Description :
 *
 *    Hub is the broker's consistency boundary: it owns the user, client and
 *    channel tables and serializes every read and mutation through a single
 *    coarse lock. The hub never performs network I/O; operations with a
 *    fan-out side effect return a receipt for the push dispatcher, built
 *    from a snapshot taken while the lock was held.
 *
 *****************************************************************************/

package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/newshub/newshub/server/auth"
)

// Timestamp format of published news, kept wire-compatible with the
// original protocol.
const newsTimeLayout = "2006-01-02 15:04:05"

// User is a registered account.
type User struct {
	Username string
	// Secret in the verifier's storage form, never plaintext.
	Passhash []byte
}

// Client is the session record for one client identity: where the client
// last connected from and where it receives push notifications. A client
// record is never removed, even after disconnect; a reconnecting client
// with the same username takes the record over.
type Client struct {
	Username string
	// Host part of the client's address as seen by the broker.
	Host string
	// Port at Host where the client accepts framed push notifications.
	// Zero means no endpoint advertised; such a client is silently skipped
	// during fan-out.
	NotifyPort int
	LastSeen   time.Time
}

// Channel is a named topic: one creator, a subscriber set and an append-only
// news log.
type Channel struct {
	Name        string
	Description string
	Creator     string

	subscribers map[string]struct{}
	news        []NewsItem
}

// info returns a snapshot summary. Caller must hold the hub lock.
func (ch *Channel) info() ChannelInfo {
	return ChannelInfo{
		Name:            ch.Name,
		Description:     ch.Description,
		Creator:         ch.Creator,
		SubscriberCount: len(ch.subscribers),
	}
}

// Hub holds the shared broker state.
type Hub struct {
	mu sync.Mutex

	verifier auth.Verifier
	filter   *contentFilter

	// Registered accounts, by username.
	users map[string]*User
	// Session records, by username.
	clients map[string]*Client
	// Channels by name plus creation order for stable listing.
	channels map[string]*Channel
	order    []string
}

func newHub(verifier auth.Verifier, filter *contentFilter) *Hub {
	return &Hub{
		verifier: verifier,
		filter:   filter,
		users:    make(map[string]*User),
		clients:  make(map[string]*Client),
		channels: make(map[string]*Channel),
	}
}

// listLocked builds the ordered channel list. Caller must hold h.mu.
func (h *Hub) listLocked() []ChannelInfo {
	infos := make([]ChannelInfo, 0, len(h.order))
	for _, name := range h.order {
		infos = append(infos, h.channels[name].info())
	}
	return infos
}

// allClientsLocked snapshots every known client identity. Caller must hold
// h.mu.
func (h *Hub) allClientsLocked() []string {
	targets := make([]string, 0, len(h.clients))
	for name := range h.clients {
		targets = append(targets, name)
	}
	return targets
}

// ListChannels returns channel summaries in creation order.
func (h *Hub) ListChannels() []ChannelInfo {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.listLocked()
}

// CreateChannel registers a new channel and returns a broadcast receipt
// addressed to every known client.
func (h *Hub) CreateChannel(name, description, creator string) (*pushReceipt, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, found := h.channels[name]; found {
		return nil, errAlreadyExists
	}

	ch := &Channel{
		Name:        name,
		Description: description,
		Creator:     creator,
		subscribers: make(map[string]struct{}),
	}
	h.channels[name] = ch
	h.order = append(h.order, name)
	statsInc("LiveChannels", 1)

	info := ch.info()
	return &pushReceipt{
		note: Notification{
			Type:    notifNewChannel,
			Channel: &info,
			Message: fmt.Sprintf("New channel '%s' created by %s", name, creator),
		},
		targets: h.allClientsLocked(),
	}, nil
}

// DeleteChannel removes a channel. Only the creator may delete it. Returns
// a broadcast receipt addressed to every known client.
func (h *Hub) DeleteChannel(name, requester string) (*pushReceipt, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, found := h.channels[name]
	if !found {
		return nil, errNotFound
	}
	if ch.Creator != requester {
		return nil, errNotCreator
	}

	delete(h.channels, name)
	for i, n := range h.order {
		if n == name {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	statsInc("LiveChannels", -1)

	return &pushReceipt{
		note: Notification{
			Type:        notifChannelDeleted,
			ChannelName: name,
			Message:     fmt.Sprintf("Channel '%s' has been deleted by %s", name, requester),
		},
		targets: h.allClientsLocked(),
	}, nil
}

// Subscribe adds clientID to the channel's subscriber set. Subscribing an
// already-subscribed client is a no-op success.
func (h *Hub) Subscribe(name, clientID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, found := h.channels[name]
	if !found {
		return errNotFound
	}
	ch.subscribers[clientID] = struct{}{}
	return nil
}

// Unsubscribe removes clientID from the channel's subscriber set.
// Unsubscribing a non-subscriber is a no-op success. Once this returns, the
// client is guaranteed to be absent from any later publish snapshot.
func (h *Hub) Unsubscribe(name, clientID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, found := h.channels[name]
	if !found {
		return errNotFound
	}
	delete(ch.subscribers, clientID)
	return nil
}

// Publish appends a news item to the channel. Only the creator may publish.
// Content failing the filter is rejected with errContentRejected and no
// state change. Returns a receipt addressed to the subscriber snapshot
// taken at append time.
func (h *Hub) Publish(name, content, requester string) (*pushReceipt, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, found := h.channels[name]
	if !found {
		return nil, errNotFound
	}
	if ch.Creator != requester {
		return nil, errNotCreator
	}
	if !h.filter.allowed(content) {
		return nil, errContentRejected
	}

	item := NewsItem{
		Content:   content,
		Author:    requester,
		Timestamp: time.Now().Format(newsTimeLayout),
	}
	ch.news = append(ch.news, item)
	statsInc("TotalMessages", 1)

	targets := make([]string, 0, len(ch.subscribers))
	for sub := range ch.subscribers {
		targets = append(targets, sub)
	}

	return &pushReceipt{
		note: Notification{
			Type:        notifNewNews,
			ChannelName: name,
			News:        &item,
			Message:     fmt.Sprintf("New news in channel '%s'", name),
		},
		targets: targets,
	}, nil
}

// SubscriptionsOf returns summaries of the channels clientID is subscribed
// to, in channel creation order.
func (h *Hub) SubscriptionsOf(clientID string) []ChannelInfo {
	h.mu.Lock()
	defer h.mu.Unlock()

	var subs []ChannelInfo
	for _, name := range h.order {
		ch := h.channels[name]
		if _, ok := ch.subscribers[clientID]; ok {
			subs = append(subs, ch.info())
		}
	}
	return subs
}

// News returns a copy of the channel's news log.
func (h *Hub) News(name string) ([]NewsItem, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, found := h.channels[name]
	if !found {
		return nil, errNotFound
	}
	log := make([]NewsItem, len(ch.news))
	copy(log, ch.news)
	return log, nil
}

// endpointOf resolves the current notification endpoint of a client.
// Called by the push dispatcher at delivery time, not at snapshot time.
func (h *Hub) endpointOf(clientID string) (string, int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cl, found := h.clients[clientID]
	if !found || cl.NotifyPort == 0 {
		return "", 0, false
	}
	return cl.Host, cl.NotifyPort, true
}
