/******************************************************************************
 *
 *  Description :
 *
 *    Wire protocol structures and error kinds.
 *
 *****************************************************************************/

package main

// Response status values.
const (
	statusSuccess = "success"
	statusError   = "error"
)

// Client request type tags.
const (
	msgHello            = "hello"
	msgRegister         = "register"
	msgLogin            = "login"
	msgListChannels     = "list_channels"
	msgCreateChannel    = "create_channel"
	msgDeleteChannel    = "delete_channel"
	msgSubscribe        = "subscribe"
	msgUnsubscribe      = "unsubscribe"
	msgPublishNews      = "publish_news"
	msgGetSubscriptions = "get_subscriptions"
)

// Push notification type tags.
const (
	notifNewChannel     = "new_channel"
	notifChannelDeleted = "channel_deleted"
	notifNewNews        = "new_news"
)

// ClientComMessage is a single client request. The Type tag selects the
// variant; unused fields are left at their zero values.
type ClientComMessage struct {
	Type string `json:"type"`
	// Client identity. Required on all requests except hello/register/login
	// carry it too.
	Username string `json:"username,omitempty"`
	// Opaque secret, only for register and login.
	Password string `json:"password,omitempty"`
	// Port at the client's address where push notifications are delivered.
	NotificationPort int `json:"notification_port,omitempty"`

	ChannelName string `json:"channel_name,omitempty"`
	Description string `json:"description,omitempty"`
	Content     string `json:"content,omitempty"`
}

// ServerComMessage is a single response to a client request.
type ServerComMessage struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	// Channel list, set on login and list_channels responses.
	Channels []ChannelInfo `json:"channels,omitempty"`
	// Channels the requester is subscribed to, set on get_subscriptions.
	Subscriptions []ChannelInfo `json:"subscriptions,omitempty"`
}

// ChannelInfo is the public summary of a channel. The raw subscriber set is
// never exposed.
type ChannelInfo struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	Creator         string `json:"creator"`
	SubscriberCount int    `json:"subscriber_count"`
}

// NewsItem is one published message as seen on the wire.
type NewsItem struct {
	Content   string `json:"content"`
	Author    string `json:"author"`
	Timestamp string `json:"timestamp"`
}

// Notification is an asynchronous push event delivered to a client's
// notification endpoint.
type Notification struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	// Set for new_channel.
	Channel *ChannelInfo `json:"channel,omitempty"`
	// Set for channel_deleted and new_news.
	ChannelName string `json:"channel_name,omitempty"`
	// Set for new_news.
	News *NewsItem `json:"news,omitempty"`
}

// storeError is the sentinel error kind returned by hub and session table
// operations. The value doubles as a terse description; user-facing wire
// messages are mapped separately.
type storeError string

func (s storeError) Error() string {
	return string(s)
}

const (
	// errDuplicateUser: username is already registered.
	errDuplicateUser = storeError("duplicate user")
	// errInvalidCredentials: unknown username or secret mismatch.
	errInvalidCredentials = storeError("invalid credentials")
	// errAlreadyExists: channel name is taken.
	errAlreadyExists = storeError("already exists")
	// errNotFound: no channel with the given name.
	errNotFound = storeError("not found")
	// errNotCreator: requester is not the channel creator.
	errNotCreator = storeError("not creator")
	// errContentRejected: content failed the forbidden-word filter.
	errContentRejected = storeError("content rejected")
	// errFrameTooBig: inbound frame exceeds the configured bound.
	errFrameTooBig = storeError("frame too large")
)
